package balance

import "bilans/internal/core"

// Matrix is the netted debt view of a ledger: Owes(d, c) is what debtor d
// still owes creditor c after cancelling everything c owes d. For any pair
// at most one direction is non-zero and the diagonal is always zero.
type Matrix struct {
	group core.Group
	owed  map[core.Participant]map[core.Participant]core.Money
}

func newGrid(g core.Group) map[core.Participant]map[core.Participant]core.Money {
	grid := make(map[core.Participant]map[core.Participant]core.Money, g.Len())
	for _, p := range g.Members() {
		grid[p] = make(map[core.Participant]core.Money, g.Len())
	}
	return grid
}

// CalculateBalance folds the whole history into a Matrix. The result does
// not depend on record order. Records authored by someone outside the group,
// and amounts keyed by non-members, have no cell to land in and are skipped.
func CalculateBalance(g core.Group, records []core.TransactionRecord) Matrix {
	members := g.Members()

	owed := newGrid(g)
	for _, r := range records {
		if !g.Contains(r.Actor) {
			continue
		}
		for _, p := range members {
			if p == r.Actor {
				continue
			}
			owed[p][r.Actor] = owed[p][r.Actor].Add(r.Amount(p))
		}
	}

	final := newGrid(g)
	for i, p1 := range members {
		for _, p2 := range members[i+1:] {
			net := owed[p1][p2].Sub(owed[p2][p1])
			switch {
			case net.IsPositive():
				final[p1][p2] = net
			case net.IsNegative():
				final[p2][p1] = net.Neg()
			}
		}
	}

	return Matrix{group: g, owed: final}
}

// Group returns the participants the matrix is indexed by.
func (m Matrix) Group() core.Group { return m.group }

// Owes returns the net amount debtor owes creditor; zero for unknown
// participants and for the diagonal.
func (m Matrix) Owes(debtor, creditor core.Participant) core.Money {
	row, ok := m.owed[debtor]
	if !ok {
		return core.Money{}
	}
	return row[creditor]
}

// Debts lists the non-zero entries, debtor-major in group order.
func (m Matrix) Debts() []core.Debt {
	var out []core.Debt
	for _, d := range m.group.Members() {
		for _, c := range m.group.Members() {
			if amt := m.Owes(d, c); amt.IsPositive() {
				out = append(out, core.Debt{Debtor: d, Creditor: c, Amount: amt})
			}
		}
	}
	return out
}

// Table returns the matrix as rows of debtors and columns of creditors,
// both in group order.
func (m Matrix) Table() [][]core.Money {
	members := m.group.Members()
	table := make([][]core.Money, len(members))
	for i, d := range members {
		table[i] = make([]core.Money, len(members))
		for j, c := range members {
			table[i][j] = m.Owes(d, c)
		}
	}
	return table
}

// Settled reports whether nobody owes anybody anything.
func (m Matrix) Settled() bool {
	return len(m.Debts()) == 0
}

// Equal compares two matrices cell by cell.
func (m Matrix) Equal(o Matrix) bool {
	if m.group.String() != o.group.String() {
		return false
	}
	for _, d := range m.group.Members() {
		for _, c := range m.group.Members() {
			if m.Owes(d, c) != o.Owes(d, c) {
				return false
			}
		}
	}
	return true
}
