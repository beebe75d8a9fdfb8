package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// UserService backs the settings pages.
type UserService struct {
	users  storage.UserStore
	hasher *auth.PasswordHasher
}

func NewUserService(users storage.UserStore, hasher *auth.PasswordHasher) *UserService {
	return &UserService{users: users, hasher: hasher}
}

func (s *UserService) Profile(ctx context.Context, userID int64) (core.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// UpdateProfile applies the patch; a changed email must still be unique.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, patch core.ProfilePatch) (core.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	if err := patch.Apply(&u); err != nil {
		return core.User{}, err
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if err := s.users.UpdateUser(ctx, &u); err != nil {
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Check(u.PasswordHash, current); err != nil {
		return core.ValidationErrors{{Field: "currentPassword", Message: "is incorrect"}}
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	slog.InfoContext(ctx, "Password changed", "user_id", userID)
	return nil
}

// Currencies lists the supported currencies.
func (s *UserService) Currencies() []core.Currency {
	return core.Currencies()
}
