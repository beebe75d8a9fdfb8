package services

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// fixedNow is 2024-03-15, a Friday.
var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type recordedEvent struct {
	typ amqp.EventType
	tx  core.Transaction
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, typ amqp.EventType, tx core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{typ: typ, tx: tx})
	return nil
}

func (p *recordingPublisher) count(typ amqp.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.typ == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	svc   *Services
	store *storage.SQLiteRepository
	pub   *recordingPublisher
	logs  *bytes.Buffer
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	pub := &recordingPublisher{}
	logs := &bytes.Buffer{}
	svc := New(repo, Options{
		Tokens:    auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour),
		Hasher:    auth.NewPasswordHasher(bcrypt.MinCost),
		Publisher: pub,
		Clock:     func() time.Time { return fixedNow },
		Logger:    applog.New(applog.Config{Format: "json", Output: logs, Component: applog.ComponentTransactions}),
	})
	return &fixture{svc: svc, store: repo, pub: pub, logs: logs, ctx: context.Background()}
}

func (f *fixture) user(t *testing.T, email string) core.User {
	t.Helper()
	u, err := f.svc.Auth.CreateAccount(f.ctx, RegisterInput{
		Email:     email,
		Password:  "password123",
		FirstName: "Test",
		LastName:  "User",
		Currency:  "EUR",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return u
}

func (f *fixture) category(t *testing.T, userID int64, name string, typ core.TransactionType) core.Category {
	t.Helper()
	c, err := f.svc.Categories.Create(f.ctx, userID, core.Category{Name: name, Type: typ, Color: "#22AA44", Icon: "tag"})
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return c
}

func (f *fixture) record(t *testing.T, cat core.Category, cents int64, date core.Date) core.Transaction {
	t.Helper()
	tx, err := f.svc.Transactions.Create(f.ctx, cat.UserID, core.Transaction{
		CategoryID:  cat.ID,
		Amount:      core.Money{Cents: cents},
		Type:        cat.Type,
		Description: "item",
		Date:        date,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func date(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *core.Date {
	d := date(s)
	return &d
}
