package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

// MaxNicknameLen matches the width of the bracket player columns.
const MaxNicknameLen = 64

type claims struct {
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens carrying a subject and a nickname claim.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	var c claims
	_, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Subject == "" || c.Nickname == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, errors.New("subject and nickname are required"))
	}
	if utf8.RuneCountInString(c.Nickname) > MaxNicknameLen {
		return Identity{}, fmt.Errorf("%w: nickname longer than %d characters", ErrInvalidToken, MaxNicknameLen)
	}
	return Identity{ID: c.Subject, Nickname: c.Nickname}, nil
}

// Sign issues a token the verifier accepts. ttl <= 0 means no expiry.
func Sign(secret []byte, id Identity, ttl time.Duration) (string, error) {
	c := claims{
		Nickname: id.Nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.ID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}
