package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"bilans/internal/core"
	"bilans/internal/sheets"
)

// Store keeps the ledger in process memory.
type Store struct {
	mu    sync.Mutex
	items []core.TransactionRecord
}

var (
	_ sheets.Ledger       = (*Store)(nil)
	_ sheets.RecordFinder = (*Store)(nil)
)

func New(seed ...core.TransactionRecord) *Store {
	s := &Store{}
	for _, r := range seed {
		s.items = append(s.items, r.Clone())
	}
	return s
}

// NewFromFile seeds the store from a CSV export of a ledger sheet. A missing
// file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	records, err := sheets.DecodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return New(records...), nil
}

// Append stores the record and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, r core.TransactionRecord) (string, error) {
	if !r.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKind, r.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r.Clone())
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// ReadAll returns copies of every record in append order.
func (s *Store) ReadAll(_ context.Context) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.TransactionRecord, len(s.items))
	for i, r := range s.items {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *Store) GetRecord(_ context.Context, id string) (core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.items {
		if id != "" && r.ID == id {
			return r.Clone(), nil
		}
	}
	return core.TransactionRecord{}, sheets.ErrRecordNotFound
}
