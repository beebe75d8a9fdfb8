package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	token, exp, err := m.Issue(core.User{ID: 42, Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 59*time.Minute {
		t.Errorf("expiry %v not about one hour ahead", exp)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != 42 || id.Email != "ada@example.com" {
		t.Errorf("identity = %+v", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	valid, _, _ := m.Issue(core.User{ID: 1, Email: "a@example.com"})

	expiredManager := NewTokenManager(testSecret, time.Hour)
	expiredManager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := expiredManager.Issue(core.User{ID: 1})

	otherKey, _, _ := NewTokenManager(strings.Repeat("x", 32), time.Hour).Issue(core.User{ID: 1})

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "iss": issuer, "exp": time.Now().Add(time.Hour).Unix()})
	noneToken, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": issuer, "exp": time.Now().Add(time.Hour).Unix()})
	noSubjectToken, _ := noSubject.SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"expired", expired},
		{"wrong key", otherKey},
		{"alg none", noneToken},
		{"missing subject", noSubjectToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Verify(tt.token); !errors.Is(err, core.ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the password")
	}
	if err := h.Check(hash, "correct horse"); err != nil {
		t.Errorf("Check(valid) = %v", err)
	}
	if err := h.Check(hash, "wrong horse"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Check(invalid) = %v, want ErrInvalidCredentials", err)
	}
}

func TestPasswordHasherValidation(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	for _, pw := range []string{"short", strings.Repeat("p", 73)} {
		_, err := h.Hash(pw)
		var verrs core.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Errorf("Hash(%d bytes) error = %v, want ValidationErrors", len(pw), err)
		}
	}
}
