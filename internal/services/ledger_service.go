package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"bilans/internal/balance"
	"bilans/internal/core"
	"bilans/internal/metrics"
	"bilans/internal/sheets"
)

// ErrPersistence marks a failure of the ledger store. The store's own error
// is kept in the chain.
var ErrPersistence = errors.New("ledger store failure")

const balanceKey = "balance"

// LedgerService runs the balance engine against a ledger store: it shapes
// records, appends them and derives balances from the full history.
type LedgerService struct {
	group   core.Group
	store   sheets.Ledger
	metrics *metrics.Recorder
	now     func() time.Time
	newID   func() string

	// writeMu serializes read-decide-append so two settlements cannot spend
	// the same debt.
	writeMu sync.Mutex
	reads   singleflight.Group
}

type Option func(*LedgerService)

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *LedgerService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *LedgerService) { s.newID = newID }
}

func NewLedgerService(g core.Group, store sheets.Ledger, opts ...Option) *LedgerService {
	s := &LedgerService{
		group: g,
		store: store,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Second) },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Group returns the participants the ledger is shared by.
func (s *LedgerService) Group() core.Group { return s.group }

// AddExpense splits e and appends the resulting record. A zero timestamp is
// replaced with the current time.
func (s *LedgerService) AddExpense(ctx context.Context, e balance.Expense) (core.TransactionRecord, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	rec, err := balance.SplitExpense(s.group, e)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.append(ctx, &rec); err != nil {
		return core.TransactionRecord{}, err
	}
	slog.InfoContext(ctx, "Expense recorded",
		"id", rec.ID,
		"payer", rec.Actor,
		"amount", e.Amount.String(),
		"participants", len(e.Participants))
	return rec, nil
}

// Settle applies a settlement against the current balance. Only a result
// carrying a record is appended; OutcomeNothingOwed leaves the ledger as is.
func (s *LedgerService) Settle(ctx context.Context, req balance.Settlement) (balance.SettlementResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	history, err := s.store.ReadAll(ctx)
	if err != nil {
		return balance.SettlementResult{}, fmt.Errorf("%w: read ledger: %w", ErrPersistence, err)
	}

	res, err := balance.Settle(s.group, history, req, s.now())
	if err != nil {
		return balance.SettlementResult{}, err
	}
	if res.Record == nil {
		s.metrics.Settlement(string(res.Outcome))
		slog.InfoContext(ctx, "Settlement rejected, nothing owed",
			"payer", req.Payer,
			"receiver", req.Receiver)
		return res, nil
	}

	if err := s.append(ctx, res.Record); err != nil {
		return balance.SettlementResult{}, err
	}
	s.metrics.Settlement(string(res.Outcome))
	slog.InfoContext(ctx, "Settlement recorded",
		"id", res.Record.ID,
		"outcome", res.Outcome,
		"payer", res.Payer,
		"receiver", res.Receiver,
		"requested", res.Requested.String(),
		"applied", res.Applied.String())
	return res, nil
}

// Balance reads the whole ledger and aggregates it. Concurrent callers
// share one computation; each caller stops waiting when its own ctx ends.
func (s *LedgerService) Balance(ctx context.Context) (balance.Matrix, error) {
	// The shared read is not tied to whichever caller started it.
	readCtx := context.WithoutCancel(ctx)
	ch := s.reads.DoChan(balanceKey, func() (any, error) {
		start := time.Now()
		history, err := s.store.ReadAll(readCtx)
		if err != nil {
			return nil, fmt.Errorf("%w: read ledger: %w", ErrPersistence, err)
		}
		m := balance.CalculateBalance(s.group, history)
		s.metrics.BalanceComputed(time.Since(start))
		return m, nil
	})

	select {
	case <-ctx.Done():
		return balance.Matrix{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return balance.Matrix{}, res.Err
		}
		return res.Val.(balance.Matrix), nil
	}
}

// History returns every record in append order.
func (s *LedgerService) History(ctx context.Context) ([]core.TransactionRecord, error) {
	records, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read ledger: %w", ErrPersistence, err)
	}
	return records, nil
}

// Ping checks that the store can be read.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	_, err := s.store.ReadAll(ctx)
	return err
}

// append assigns an ID, validates and writes rec. Callers hold writeMu.
func (s *LedgerService) append(ctx context.Context, rec *core.TransactionRecord) error {
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if err := rec.Validate(s.group); err != nil {
		return err
	}

	ref, err := s.store.Append(ctx, *rec)
	if err != nil {
		s.metrics.AppendFailed()
		slog.ErrorContext(ctx, "Failed to append record", "id", rec.ID, "kind", rec.Kind, "error", err)
		return fmt.Errorf("%w: append %s: %w", ErrPersistence, rec.Kind, err)
	}
	// Readers arriving from now on must see this record.
	s.reads.Forget(balanceKey)
	s.metrics.RecordAppended(string(rec.Kind))
	slog.DebugContext(ctx, "Record appended", "id", rec.ID, "ref", ref)
	return nil
}
