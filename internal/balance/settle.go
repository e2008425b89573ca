package balance

import (
	"fmt"
	"time"

	"bilans/internal/core"
)

// Outcome classifies what a settlement request did.
type Outcome string

const (
	// OutcomeSettled means the full requested amount was applied.
	OutcomeSettled Outcome = "settled"
	// OutcomeCapped means the request exceeded the debt and only the debt was applied.
	OutcomeCapped Outcome = "capped"
	// OutcomeNothingOwed means the payer owed the receiver nothing; no record was produced.
	OutcomeNothingOwed Outcome = "nothing_owed"
)

// Settlement is a request by Payer to pay back Amount of what they owe Receiver.
type Settlement struct {
	Payer    core.Participant
	Receiver core.Participant
	Amount   core.Money
}

// SettlementResult reports the decision. Record is nil exactly when the
// outcome is OutcomeNothingOwed.
type SettlementResult struct {
	Outcome   Outcome
	Payer     core.Participant
	Receiver  core.Participant
	Requested core.Money
	Debt      core.Money
	Applied   core.Money
	Record    *core.TransactionRecord
}

// Remaining is the debt left once the applied amount is aggregated.
func (r SettlementResult) Remaining() core.Money {
	return r.Debt.Sub(r.Applied)
}

// Message renders the outcome for people.
func (r SettlementResult) Message() string {
	switch r.Outcome {
	case OutcomeNothingOwed:
		return fmt.Sprintf("%s owes nothing to %s.", r.Payer, r.Receiver)
	case OutcomeCapped:
		return fmt.Sprintf("Payment %s exceeded the debt (%s). Only %s was applied.", r.Requested, r.Debt, r.Applied)
	default:
		return fmt.Sprintf("%s paid %s %s.", r.Payer, r.Receiver, r.Applied)
	}
}

// SettlementNote is the notes text of a settlement record.
func SettlementNote(receiver core.Participant) string {
	return fmt.Sprintf("settlement for %s", receiver)
}

// Settle decides a settlement against the balance derived from history.
// Payments are capped at the outstanding debt; when nothing is owed the
// request is rejected without a record. The returned record, once appended,
// leaves Owes(payer, receiver) at Debt - Applied.
func Settle(g core.Group, history []core.TransactionRecord, s Settlement, now time.Time) (SettlementResult, error) {
	if err := validateSettlement(g, s); err != nil {
		return SettlementResult{}, err
	}

	res := SettlementResult{
		Payer:     s.Payer,
		Receiver:  s.Receiver,
		Requested: s.Amount,
		Debt:      CalculateBalance(g, history).Owes(s.Payer, s.Receiver),
	}
	if !res.Debt.IsPositive() {
		res.Outcome = OutcomeNothingOwed
		return res, nil
	}

	res.Applied = s.Amount.Min(res.Debt)
	res.Outcome = OutcomeSettled
	if s.Amount.GreaterThan(res.Debt) {
		res.Outcome = OutcomeCapped
	}

	amounts := make(map[core.Participant]core.Money, g.Len())
	for _, m := range g.Members() {
		amounts[m] = core.Money{}
	}
	amounts[s.Receiver] = res.Applied

	res.Record = &core.TransactionRecord{
		Kind:      core.KindSettlement,
		Timestamp: now,
		Actor:     s.Payer,
		Amounts:   amounts,
		Notes:     SettlementNote(s.Receiver),
	}
	return res, nil
}

func validateSettlement(g core.Group, s Settlement) error {
	if !g.Contains(s.Payer) {
		return fmt.Errorf("%w: payer %q", core.ErrUnknownParticipant, s.Payer)
	}
	if !g.Contains(s.Receiver) {
		return fmt.Errorf("%w: receiver %q", core.ErrUnknownParticipant, s.Receiver)
	}
	if s.Payer == s.Receiver {
		return core.ErrSelfSettlement
	}
	if s.Amount.IsNegative() {
		return fmt.Errorf("%w: settlement amount must not be negative", core.ErrInvalidAmount)
	}
	return nil
}
