package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindExpense    Kind = "expense"
	KindSettlement Kind = "settlement"
)

// TimestampLayout is the layout records are written with in spreadsheet rows.
const TimestampLayout = "2006-01-02 15:04:05"

type (
	Participant string

	Kind string

	// TransactionRecord is one immutable ledger row. Amounts[p] is how much p
	// owes Actor because of this record, for both expenses and settlements.
	TransactionRecord struct {
		ID        string
		Kind      Kind
		Timestamp time.Time
		Actor     Participant
		Amounts   map[Participant]Money
		Notes     string
	}
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrNoParticipants     = fmt.Errorf("%w: no participants", ErrInvalidInput)
	ErrUnknownParticipant = fmt.Errorf("%w: unknown participant", ErrInvalidInput)
	ErrSelfSettlement     = fmt.Errorf("%w: payer and receiver are the same person", ErrInvalidInput)
	ErrInvalidKind        = fmt.Errorf("%w: invalid record kind", ErrInvalidInput)
	ErrActorOwesSelf      = fmt.Errorf("%w: actor cannot owe themself", ErrInvalidInput)
	ErrMissingTimestamp   = fmt.Errorf("%w: missing timestamp", ErrInvalidInput)
)

func (k Kind) Valid() bool {
	switch k {
	case KindExpense, KindSettlement:
		return true
	default:
		return false
	}
}

// ParseKind accepts the canonical names case-insensitively. An empty value
// is read as an expense, which is what rows written before the kind column
// existed always were.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(KindExpense):
		return KindExpense, nil
	case string(KindSettlement):
		return KindSettlement, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Amount returns the amount p owes the actor, zero when p has no entry.
func (r TransactionRecord) Amount(p Participant) Money {
	return r.Amounts[p]
}

// Total sums every participant amount of the record.
func (r TransactionRecord) Total() Money {
	var total Money
	for _, m := range r.Amounts {
		total = total.Add(m)
	}
	return total
}

// Clone returns a copy that shares no map with r.
func (r TransactionRecord) Clone() TransactionRecord {
	out := r
	out.Amounts = make(map[Participant]Money, len(r.Amounts))
	for p, m := range r.Amounts {
		out.Amounts[p] = m
	}
	return out
}

// Validate checks a freshly built record against the group it belongs to.
func (r TransactionRecord) Validate(g Group) error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	}
	if r.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if !g.Contains(r.Actor) {
		return fmt.Errorf("%w: actor %q", ErrUnknownParticipant, r.Actor)
	}
	for p, m := range r.Amounts {
		if !g.Contains(p) {
			return fmt.Errorf("%w: %q", ErrUnknownParticipant, p)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("amount for %s: %w", p, err)
		}
	}
	if !r.Amount(r.Actor).IsZero() {
		return ErrActorOwesSelf
	}
	if len(r.Notes) > 500 {
		return fmt.Errorf("%w: notes too long (max 500 characters)", ErrInvalidInput)
	}
	return nil
}
