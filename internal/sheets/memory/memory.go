package memory

import (
	"context"
	"fmt"
	"sync"

	ports "fintrack/internal/sheets"
)

// Store is an in-process ledger used when no spreadsheet is configured and in tests.
type Store struct {
	mu    sync.Mutex
	index map[int64]int
	rows  []ports.LedgerRow
}

var (
	_ ports.LedgerWriter = (*Store)(nil)
	_ ports.LedgerReader = (*Store)(nil)
)

func New() *Store {
	return &Store{index: make(map[int64]int)}
}

// Upsert stores the row and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, row ports.LedgerRow) (string, error) {
	if row.TransactionID <= 0 {
		return "", fmt.Errorf("ledger row without transaction id")
	}
	row.Tags = append([]string(nil), row.Tags...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[row.TransactionID]; ok {
		s.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, row)
	s.index[row.TransactionID] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) MarkDeleted(_ context.Context, transactionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[transactionID]; ok {
		s.rows[i].Status = ports.StatusDeleted
	}
	return nil
}

// ListRows returns the rows in insertion order.
func (s *Store) ListRows(_ context.Context) ([]ports.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.LedgerRow(nil), s.rows...), nil
}
