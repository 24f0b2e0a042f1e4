package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrVoidPINRequired      = errors.New("manager PIN required")
	ErrVoidPINInvalid       = errors.New("manager PIN invalid")
	ErrVoidPINNotConfigured = errors.New("manager PIN not configured")
)

// VerifyVoidPIN checks a manager PIN against its bcrypt hash.
func VerifyVoidPIN(hash string, pin string) error {
	hash = strings.TrimSpace(hash)
	pin = strings.TrimSpace(pin)
	if hash == "" {
		return ErrVoidPINNotConfigured
	}
	if pin == "" {
		return ErrVoidPINRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		return ErrVoidPINInvalid
	}
	return nil
}

func HashVoidPIN(pin string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(pin)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
