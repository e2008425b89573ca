package http

import (
	"slices"
	"time"

	"bilans/internal/balance"
	"bilans/internal/core"
)

// JSON shapes returned by the API. Money is rendered as "12.34" strings so
// clients never see float rounding.
type (
	recordDTO struct {
		ID        string            `json:"id"`
		Kind      core.Kind         `json:"kind"`
		Timestamp time.Time         `json:"timestamp"`
		Actor     string            `json:"actor"`
		Amounts   map[string]string `json:"amounts"`
		Total     string            `json:"total"`
		Notes     string            `json:"notes,omitempty"`
	}

	settlementDTO struct {
		Outcome   balance.Outcome `json:"outcome"`
		Message   string          `json:"message"`
		Payer     string          `json:"payer"`
		Receiver  string          `json:"receiver"`
		Requested string          `json:"requested"`
		Debt      string          `json:"debt"`
		Applied   string          `json:"applied"`
		Remaining string          `json:"remaining"`
		Record    *recordDTO      `json:"record,omitempty"`
	}

	debtDTO struct {
		Debtor   string `json:"debtor"`
		Creditor string `json:"creditor"`
		Amount   string `json:"amount"`
		Text     string `json:"text"`
	}

	balanceDTO struct {
		Participants []string   `json:"participants"`
		Matrix       [][]string `json:"matrix"`
		Debts        []debtDTO  `json:"debts"`
		Settled      bool       `json:"settled"`
	}
)

func newRecordDTO(g core.Group, r core.TransactionRecord) recordDTO {
	amounts := make(map[string]string, g.Len())
	for _, p := range g.Members() {
		amounts[string(p)] = r.Amount(p).String()
	}
	return recordDTO{
		ID:        r.ID,
		Kind:      r.Kind,
		Timestamp: r.Timestamp,
		Actor:     string(r.Actor),
		Amounts:   amounts,
		Total:     r.Total().String(),
		Notes:     r.Notes,
	}
}

func newSettlementDTO(g core.Group, res balance.SettlementResult) settlementDTO {
	out := settlementDTO{
		Outcome:   res.Outcome,
		Message:   res.Message(),
		Payer:     string(res.Payer),
		Receiver:  string(res.Receiver),
		Requested: res.Requested.String(),
		Debt:      res.Debt.String(),
		Applied:   res.Applied.String(),
		Remaining: res.Remaining().String(),
	}
	if res.Record != nil {
		rec := newRecordDTO(g, *res.Record)
		out.Record = &rec
	}
	return out
}

func newBalanceDTO(m balance.Matrix) balanceDTO {
	out := balanceDTO{Debts: []debtDTO{}, Settled: m.Settled()}
	for _, p := range m.Group().Members() {
		out.Participants = append(out.Participants, string(p))
	}
	for _, row := range m.Table() {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = c.String()
		}
		out.Matrix = append(out.Matrix, cells)
	}
	for _, d := range m.Debts() {
		out.Debts = append(out.Debts, debtDTO{
			Debtor:   string(d.Debtor),
			Creditor: string(d.Creditor),
			Amount:   d.Amount.String(),
			Text:     d.String(),
		})
	}
	return out
}

// Template data for the page and its partials.
type (
	balanceView struct {
		Participants []string
		Rows         []balanceRow
		Debts        []string
		Settled      bool
	}

	balanceRow struct {
		Debtor string
		Cells  []string
	}

	historyRow struct {
		When    string
		Kind    string
		Actor   string
		Amounts []string
		Total   string
		Notes   string
	}

	historyView struct {
		Participants []string
		Rows         []historyRow
	}

	indexView struct {
		Members []string
		Balance balanceView
		History historyView
	}
)

func newBalanceView(m balance.Matrix) balanceView {
	dto := newBalanceDTO(m)
	v := balanceView{Participants: dto.Participants, Settled: dto.Settled}
	for i, row := range dto.Matrix {
		v.Rows = append(v.Rows, balanceRow{Debtor: dto.Participants[i], Cells: row})
	}
	for _, d := range dto.Debts {
		v.Debts = append(v.Debts, d.Text)
	}
	return v
}

// newHistoryView lists the latest limit records, newest first.
func newHistoryView(g core.Group, records []core.TransactionRecord, limit int) historyView {
	v := historyView{}
	for _, p := range g.Members() {
		v.Participants = append(v.Participants, string(p))
	}
	records = slices.Clone(records)
	slices.Reverse(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	for _, r := range records {
		row := historyRow{
			When:  r.Timestamp.Format(core.TimestampLayout),
			Kind:  string(r.Kind),
			Actor: string(r.Actor),
			Total: r.Total().String(),
			Notes: r.Notes,
		}
		for _, p := range g.Members() {
			row.Amounts = append(row.Amounts, r.Amount(p).String())
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}
