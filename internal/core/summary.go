package core

import "fmt"

// Debt is one non-zero net obligation between two participants.
type Debt struct {
	Debtor   Participant
	Creditor Participant
	Amount   Money
}

func (d Debt) String() string {
	return fmt.Sprintf("%s owes %s: %s", d.Debtor, d.Creditor, d.Amount)
}
