package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// Lengths of generated client credentials.
const (
	KeyLen    = 16
	SecretLen = 64
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// GenerateKey returns a new random client key.
func GenerateKey() string {
	return random(KeyLen)
}

// GenerateSecret returns a new random client secret.
func GenerateSecret() string {
	return random(SecretLen)
}

func random(n int) string {
	buf := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// Hasher hashes and verifies client secrets with bcrypt.
type Hasher struct {
	Cost int
}

// DefaultHasher uses bcrypt.DefaultCost.
var DefaultHasher = Hasher{Cost: bcrypt.DefaultCost}

// Hash returns the bcrypt hash of secret.
func (h Hasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", errors.Wrap(err, "hash secret")
	}
	return string(out), nil
}

// Verify reports whether secret matches hash.
func (h Hasher) Verify(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Digest returns the hex SHA-256 digest of a token, the form in which
// issued tokens are stored.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
