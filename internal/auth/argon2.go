package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// phcParams mirrors the tunables baked into an Argon2id PHC-format hash
// string: $argon2id$v=19$m=<memory>,t=<time>,p=<parallelism>$<salt>$<hash>
type phcParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// defaultParams are used when hashing a new password (ratelmq-passwd).
var defaultParams = phcParams{memory: 64 * 1024, time: 3, parallelism: 2}

// HashPassword derives an Argon2id PHC-format hash string for password,
// suitable for one line of the colon-separated password file consumed by
// FileIdentityManager.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}

	p := defaultParams
	p.salt = salt
	p.hash = argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, 32)

	return encodePHC(p), nil
}

func encodePHC(p phcParams) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.hash),
	)
}

// parsePHC parses an Argon2id PHC-format hash string as produced by
// HashPassword.
func parsePHC(encoded string) (phcParams, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phcParams{}, ErrProvider
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return phcParams{}, ErrProvider
	}
	if version != argon2.Version {
		return phcParams{}, ErrProvider
	}

	var p phcParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil {
		return phcParams{}, ErrProvider
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return phcParams{}, ErrProvider
	}
	p.salt = salt

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return phcParams{}, ErrProvider
	}
	p.hash = hash

	return p, nil
}

// verifyPassword checks password against an Argon2id PHC-format hash
// string, in constant time.
func verifyPassword(password, encoded string) error {
	p, err := parsePHC(encoded)
	if err != nil {
		return err
	}

	candidate := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.hash)))
	if subtle.ConstantTimeCompare(candidate, p.hash) != 1 {
		return ErrInvalidPassword
	}
	return nil
}
