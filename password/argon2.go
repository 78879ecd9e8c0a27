package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// ErrMalformedDigest is returned when a stored digest cannot be parsed.
// Callers must treat it as a verification failure and raise a
// data-integrity alarm; it should never occur under correct operation.
var ErrMalformedDigest = errors.New("malformed password digest")

// Params are the argon2id work factors. Factors below the package minimums
// are rejected at construction.
type Params struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher produces and verifies self-describing argon2id digests. A Hasher
// is immutable after construction and safe for concurrent use.
type Hasher struct {
	params Params
}

type parsedDigest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewHasher validates the work factors and returns a ready Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if p.Memory < minMemoryKB {
		return nil, errors.New("password memory must be >= 8192 KB")
	}
	if p.Time < minTimeCost {
		return nil, errors.New("password time must be >= 1")
	}
	if p.Parallelism < minParallelism {
		return nil, errors.New("password parallelism must be >= 1")
	}
	if p.SaltLength < minSaltLength {
		return nil, errors.New("password salt length must be >= 16")
	}
	if p.KeyLength < minKeyLength {
		return nil, errors.New("password key length must be >= 16")
	}
	return &Hasher{params: p}, nil
}

// Hash derives a PHC-formatted digest from password with a freshly random
// salt. Two calls on the same input produce different digests.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Time,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest with the factors embedded in encoded and
// compares in constant time. The result is deterministic for a given
// (password, digest) pair. A digest that cannot be parsed yields
// [ErrMalformedDigest].
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	parsed, err := parseDigest(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.key)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker factors than
// the Hasher is configured with, so callers can transparently upgrade
// digests on the next successful login.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	parsed, err := parseDigest(encoded)
	if err != nil {
		return false, err
	}
	if h.params.Memory > parsed.memory {
		return true, nil
	}
	if h.params.Time > parsed.time {
		return true, nil
	}
	if h.params.Parallelism > parsed.parallelism {
		return true, nil
	}
	if h.params.KeyLength != uint32(len(parsed.key)) {
		return true, nil
	}
	return false, nil
}

func parseDigest(encoded string) (*parsedDigest, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedDigest
	}
	if parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm", ErrMalformedDigest)
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: missing version", ErrMalformedDigest)
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version", ErrMalformedDigest)
	}

	out := &parsedDigest{}
	if err := parseFactors(parts[3], out); err != nil {
		return nil, err
	}

	out.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || uint32(len(out.salt)) < minSaltLength {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedDigest)
	}
	out.key, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(out.key) == 0 {
		return nil, fmt.Errorf("%w: bad key", ErrMalformedDigest)
	}

	return out, nil
}

func parseFactors(part string, out *parsedDigest) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return fmt.Errorf("%w: bad factor list", ErrMalformedDigest)
	}

	var haveM, haveT, haveP bool
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("%w: bad factor entry", ErrMalformedDigest)
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return fmt.Errorf("%w: bad memory factor", ErrMalformedDigest)
			}
			out.memory = uint32(v)
			haveM = true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return fmt.Errorf("%w: bad time factor", ErrMalformedDigest)
			}
			out.time = uint32(v)
			haveT = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v == 0 {
				return fmt.Errorf("%w: bad parallelism factor", ErrMalformedDigest)
			}
			out.parallelism = uint8(v)
			haveP = true
		default:
			return fmt.Errorf("%w: unknown factor", ErrMalformedDigest)
		}
	}
	if !haveM || !haveT || !haveP {
		return fmt.Errorf("%w: missing factors", ErrMalformedDigest)
	}
	return nil
}
