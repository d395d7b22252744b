package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyToken   = errors.New("token is empty")
	ErrTokenInvalid = errors.New("token does not match")
	ErrNoTokenHash  = errors.New("no operator token configured")
)

// HashToken returns the bcrypt hash stored in OPERATOR_TOKEN_HASH.
func HashToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyToken(hash, token string) error {
	if hash == "" {
		return ErrNoTokenHash
	}
	if token == "" {
		return ErrEmptyToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return ErrTokenInvalid
	}
	return nil
}
