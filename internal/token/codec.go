// Package token issues and validates signed bearer tokens and generates the
// key/secret pairs clients use to obtain them.
package token

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/refitt/refitt-api/internal/apierr"
)

// MinSecretLen is the minimum length of the signing secret.
const MinSecretLen = 32

// Claims is the decoded content of a token. Expires is nil for tokens that
// never expire.
type Claims struct {
	Subject  int64
	IssuedAt time.Time
	Expires  *time.Time
}

// Codec signs and verifies HS256 tokens with a shared secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec returns a Codec using secret as the HMAC key.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, errors.Errorf("token secret must be at least %d bytes", MinSecretLen)
	}
	return &Codec{secret: secret, now: time.Now}, nil
}

// Issue returns a token for subject that expires after lifetime. A negative
// lifetime produces a token that is already expired.
func (c *Codec) Issue(subject int64, lifetime time.Duration) (string, Claims, error) {
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(lifetime)
	claims := Claims{Subject: subject, IssuedAt: now, Expires: &exp}
	s, err := c.Encode(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return s, claims, nil
}

// Encode signs claims as they are.
func (c *Codec) Encode(claims Claims) (string, error) {
	rc := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(claims.Subject, 10),
		IssuedAt: jwt.NewNumericDate(claims.IssuedAt),
	}
	if claims.Expires != nil {
		rc.ExpiresAt = jwt.NewNumericDate(*claims.Expires)
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rc).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}

// Decrypt verifies the token and returns its claims. It fails with
// apierr.TokenExpired for expired tokens and apierr.TokenInvalid for
// everything else.
func (c *Codec) Decrypt(s string) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(s, &rc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apierr.Wrap(apierr.TokenExpired, err, "Token expired")
		}
		return Claims{}, Invalid(s, err)
	}

	sub, err := strconv.ParseInt(rc.Subject, 10, 64)
	if err != nil {
		return Claims{}, Invalid(s, err)
	}

	claims := Claims{Subject: sub}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		exp := rc.ExpiresAt.Time
		claims.Expires = &exp
	}
	return claims, nil
}

// Invalid returns the TokenInvalid error reported for token s.
func Invalid(s string, cause error) *apierr.Error {
	return apierr.Wrap(apierr.TokenInvalid, cause, "Token invalid: '"+Preview(s)+"'")
}

// Preview shortens s to its first and last three characters so that it can
// be echoed back without revealing the token.
func Preview(s string) string {
	r := []rune(s)
	if len(r) <= 6 {
		return "..."
	}
	return string(r[:3]) + "..." + string(r[len(r)-3:])
}
