// Package password provides one-way credential hashing (argon2id, PHC
// digest format) and the stateless password strength policy. Hashing embeds
// per-call random salt and the work factors used, so verification is
// self-describing and factors can be strengthened without invalidating
// stored digests.
package password
