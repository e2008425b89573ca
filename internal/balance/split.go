package balance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bilans/internal/core"
)

// Expense is a raw cost paid by one member and shared by a subset of the group.
type Expense struct {
	Payer        core.Participant
	Amount       core.Money
	Participants []core.Participant
	Notes        string
	Timestamp    time.Time
}

// SplitExpense turns an expense into a transaction record. Every sharing
// participant other than the payer owes round(amount/n, 2); the payer and
// members outside the expense owe nothing. The rounding remainder is not
// redistributed, so the shares may miss the amount by up to (n-1) half cents.
func SplitExpense(g core.Group, e Expense) (core.TransactionRecord, error) {
	if err := e.Amount.Validate(); err != nil {
		return core.TransactionRecord{}, err
	}
	if !g.Contains(e.Payer) {
		return core.TransactionRecord{}, fmt.Errorf("%w: payer %q", core.ErrUnknownParticipant, e.Payer)
	}

	sharing := make(map[core.Participant]struct{}, len(e.Participants))
	for _, p := range e.Participants {
		if !g.Contains(p) {
			return core.TransactionRecord{}, fmt.Errorf("%w: %q", core.ErrUnknownParticipant, p)
		}
		sharing[p] = struct{}{}
	}
	if len(sharing) == 0 {
		return core.TransactionRecord{}, core.ErrNoParticipants
	}

	share := Share(e.Amount, len(sharing))
	amounts := make(map[core.Participant]core.Money, g.Len())
	for _, m := range g.Members() {
		_, shares := sharing[m]
		switch {
		case m == e.Payer:
			amounts[m] = core.Money{}
		case shares:
			amounts[m] = share
		default:
			amounts[m] = core.Money{}
		}
	}

	return core.TransactionRecord{
		Kind:      core.KindExpense,
		Timestamp: e.Timestamp,
		Actor:     e.Payer,
		Amounts:   amounts,
		Notes:     strings.TrimSpace(e.Notes),
	}, nil
}

// Share divides amount into n parts rounded to the cent, halves away from zero.
func Share(amount core.Money, n int) core.Money {
	if n <= 0 {
		return core.Money{}
	}
	d := decimal.New(amount.Cents, -2).
		Div(decimal.NewFromInt(int64(n))).
		Round(2)
	return core.Money{Cents: d.Shift(2).IntPart()}
}
