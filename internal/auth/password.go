package auth

import (
	"errors"
	"fmt"

	"fintrack/internal/core"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	var errs core.ValidationErrors
	switch {
	case len(password) < core.MinPasswordLength:
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", core.MinPasswordLength))
	case len(password) > maxPasswordBytes:
		errs.Add("password", fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	if err := errs.Err(); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Check reports core.ErrInvalidCredentials on mismatch.
func (h *PasswordHasher) Check(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return core.ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}
