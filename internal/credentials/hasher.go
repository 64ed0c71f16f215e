package credentials

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"github.com/khanghh/krealm/model"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const argon2Algorithm = "argon2id"

type HashResult struct {
	Hash           string
	Salt           string
	CredentialData model.CredentialData
}

// Hasher hashes and verifies secrets with a memory-hard function.
type Hasher interface {
	HashPassword(ctx context.Context, password string) (*HashResult, error)
	VerifyPassword(ctx context.Context, password string, hash string, salt string, data model.CredentialData) (bool, error)
}

type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2Hasher computes argon2id hashes encoded in the PHC string format. The
// number of hashes computed at once is bounded since each one holds Memory KiB.
type Argon2Hasher struct {
	params Argon2Params
	sem    *semaphore.Weighted
}

func (h *Argon2Hasher) acquire(ctx context.Context) (func(), error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { h.sem.Release(1) }, nil
}

func (h *Argon2Hasher) HashPassword(ctx context.Context, password string) (*HashResult, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashing, err)
	}
	release, err := h.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashing, err)
	}
	defer release()

	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	hash := fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm, argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		encodedSalt, base64.RawStdEncoding.EncodeToString(key))

	return &HashResult{
		Hash: hash,
		Salt: encodedSalt,
		CredentialData: model.CredentialData{
			HashIterations: p.Iterations,
			Algorithm:      argon2Algorithm,
		},
	}, nil
}

// VerifyPassword recomputes the hash with the parameters recorded in the PHC
// string. A mismatch is not an error.
func (h *Argon2Hasher) VerifyPassword(ctx context.Context, password string, hash string, _ string, data model.CredentialData) (bool, error) {
	if data.Algorithm != "" && data.Algorithm != argon2Algorithm {
		return false, fmt.Errorf("%w: unsupported algorithm %q", ErrVerification, data.Algorithm)
	}
	p, salt, expected, err := decodePHC(hash)
	if err != nil {
		return false, err
	}
	release, err := h.acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	defer release()

	actual := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

func decodePHC(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != argon2Algorithm {
		return p, nil, nil, fmt.Errorf("%w: malformed hash", ErrVerification)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported argon2 version", ErrVerification)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: malformed parameters", ErrVerification)
	}
	if p.Memory < 1 || p.Iterations < 1 || p.Parallelism < 1 {
		return p, nil, nil, fmt.Errorf("%w: invalid parameters", ErrVerification)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: malformed salt", ErrVerification)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: malformed key", ErrVerification)
	}
	return p, salt, key, nil
}

// NewArgon2Hasher creates a hasher. maxConcurrency <= 0 uses the number of CPUs.
func NewArgon2Hasher(params Argon2Params, maxConcurrency int) *Argon2Hasher {
	if maxConcurrency <= 0 {
		maxConcurrency = runtime.NumCPU()
	}
	return &Argon2Hasher{
		params: params,
		sem:    semaphore.NewWeighted(int64(maxConcurrency)),
	}
}
