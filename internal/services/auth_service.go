package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// loginSweepTimeout bounds the recurring catch-up run on login.
const loginSweepTimeout = 5 * time.Second

// RegisterInput is the body of a registration.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Currency  string `json:"currency"`
}

// Session is a freshly issued token with the user it belongs to.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      core.User `json:"user"`
}

type AuthService struct {
	users      storage.UserStore
	categories *CategoryService
	recurring  *RecurringService
	hasher     *auth.PasswordHasher
	tokens     *auth.TokenManager
	cal        calendar
}

func NewAuthService(users storage.UserStore, categories *CategoryService, recurring *RecurringService,
	hasher *auth.PasswordHasher, tokens *auth.TokenManager, cal calendar) *AuthService {
	return &AuthService{
		users:      users,
		categories: categories,
		recurring:  recurring,
		hasher:     hasher,
		tokens:     tokens,
		cal:        cal,
	}
}

// CreateAccount validates and stores a new user and seeds the default
// categories. It does not issue a token.
func (s *AuthService) CreateAccount(ctx context.Context, in RegisterInput) (core.User, error) {
	u := core.User{
		Email:     core.NormalizeEmail(in.Email),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Currency:  strings.ToUpper(strings.TrimSpace(in.Currency)),
	}
	if u.Currency == "" {
		u.Currency = core.DefaultCurrency
	}

	var errs core.ValidationErrors
	var verrs core.ValidationErrors
	if err := u.Validate(); errors.As(err, &verrs) {
		errs = append(errs, verrs...)
	}
	if len(in.Password) < core.MinPasswordLength {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", core.MinPasswordLength))
	}
	if err := errs.Err(); err != nil {
		return core.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return core.User{}, err
	}
	u.PasswordHash = hash
	if err := s.users.CreateUser(ctx, &u); err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	if _, err := s.categories.InitializeDefaults(ctx, u.ID); err != nil {
		return core.User{}, fmt.Errorf("seed default categories: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	return u, nil
}

// Register creates the account and signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	u, err := s.CreateAccount(ctx, in)
	if err != nil {
		return Session{}, err
	}
	return s.issue(u)
}

// Login checks the credentials, issues a token and catches up the user's
// due recurring transactions. The catch-up is best effort.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, core.NormalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if err := s.hasher.Check(u.PasswordHash, password); err != nil {
		slog.WarnContext(ctx, "Failed login attempt", "user_id", u.ID)
		return Session{}, err
	}

	session, err := s.issue(u)
	if err != nil {
		return Session{}, err
	}

	if s.recurring != nil {
		sweepCtx, cancel := context.WithTimeout(ctx, loginSweepTimeout)
		defer cancel()
		res, err := s.recurring.GenerateDue(sweepCtx, s.cal.today(), ForUser(u.ID))
		if err != nil {
			slog.ErrorContext(ctx, "Login recurring sweep failed", "user_id", u.ID, "error", err)
		} else if res.Generated > 0 || len(res.Errors) > 0 {
			slog.InfoContext(ctx, "Login recurring sweep",
				"user_id", u.ID,
				"generated", res.Generated,
				"errors", len(res.Errors))
		}
	}
	return session, nil
}

// Me returns the profile of the signed-in user.
func (s *AuthService) Me(ctx context.Context, userID int64) (core.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *AuthService) issue(u core.User) (Session, error) {
	if s.tokens == nil {
		return Session{}, errors.New("token issuing is not configured")
	}
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}
