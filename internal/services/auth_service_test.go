package services

import (
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func TestAuthService_RegisterSeedsDefaults(t *testing.T) {
	f := newFixture(t)
	s, err := f.svc.Auth.Register(f.ctx, RegisterInput{
		Email:    "  Jane@Example.COM ",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if s.Token == "" || s.User.Email != "jane@example.com" || s.User.Currency != core.DefaultCurrency {
		t.Fatalf("session = %+v", s)
	}
	cats, err := f.svc.Categories.List(f.ctx, s.User.ID, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cats) != len(core.DefaultCategories()) {
		t.Errorf("categories = %d, want %d", len(cats), len(core.DefaultCategories()))
	}
}

func TestAuthService_RegisterRejects(t *testing.T) {
	f := newFixture(t)
	f.user(t, "taken@example.com")

	tests := []struct {
		name    string
		in      RegisterInput
		wantErr error
		field   string
	}{
		{"duplicate email", RegisterInput{Email: "TAKEN@example.com", Password: "password123"}, core.ErrDuplicate, ""},
		{"short password", RegisterInput{Email: "new@example.com", Password: "short"}, nil, "password"},
		{"bad email", RegisterInput{Email: "nope", Password: "password123"}, nil, "email"},
		{"unknown currency", RegisterInput{Email: "c@example.com", Password: "password123", Currency: "XXX"}, nil, "currency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Auth.Register(f.ctx, tt.in)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var verrs core.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error = %v, want validation errors", err)
			}
			found := false
			for _, fe := range verrs {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no %q field error in %v", tt.field, verrs)
			}
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")

	if _, err := f.svc.Auth.Login(f.ctx, "a@example.com", "wrong-password"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := f.svc.Auth.Login(f.ctx, "ghost@example.com", "password123"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v", err)
	}

	cat := f.category(t, u.ID, "Rent", core.Expense)
	f.recurring(t, cat, "Rent", core.Monthly, "2024-02-01", nil)

	s, err := f.svc.Auth.Login(f.ctx, "A@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.User.ID != u.ID || s.Token == "" {
		t.Fatalf("session = %+v", s)
	}
	// today is 2024-03-15: February and March are caught up on login
	page, err := f.svc.Transactions.List(f.ctx, u.ID, storage.TransactionFilter{}, 1, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Pagination.Total != 2 {
		t.Errorf("transactions after login = %d, want 2", page.Pagination.Total)
	}
}

func TestUserService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "a@example.com")

	err := f.svc.Users.ChangePassword(f.ctx, u.ID, "not-it", "newpassword1")
	var verrs core.ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].Field != "currentPassword" {
		t.Fatalf("wrong current password error = %v", err)
	}
	if err := f.svc.Users.ChangePassword(f.ctx, u.ID, "password123", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := f.svc.Auth.Login(f.ctx, "a@example.com", "newpassword1"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}
