package sheets

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bilans/internal/core"
)

// Column titles of the fixed part of a ledger row. Participant columns sit
// between Person and Notes, one per group member.
const (
	ColDate   = "Date"
	ColKind   = "Kind"
	ColPerson = "Person"
	ColNotes  = "Notes"
	ColID     = "ID"
)

var ErrMalformedRow = errors.New("malformed ledger row")

// Legacy sheets were kept in Polish.
var headerAliases = map[string]string{
	"date":      ColDate,
	"data":      ColDate,
	"timestamp": ColDate,
	"kind":      ColKind,
	"type":      ColKind,
	"person":    ColPerson,
	"osoba":     ColPerson,
	"payer":     ColPerson,
	"notes":     ColNotes,
	"uwagi":     ColNotes,
	"id":        ColID,
}

var timestampLayouts = []string{
	core.TimestampLayout,
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// Header returns the title row for a ledger shared by g.
func Header(g core.Group) []string {
	out := []string{ColDate, ColKind, ColPerson}
	for _, p := range g.Members() {
		out = append(out, string(p))
	}
	return append(out, ColNotes, ColID)
}

// EncodeRow renders r in Header(g) column order. Amounts are written with
// two decimals and a dot separator.
func EncodeRow(g core.Group, r core.TransactionRecord) []string {
	l, _, err := NewLayout(nil, g)
	if err != nil {
		// Header(g) always maps every member.
		panic(err)
	}
	return l.Encode(r)
}

// ReservedTitle reports whether name is read as a fixed column title, which
// rules it out as a participant name.
func ReservedTitle(name string) bool {
	_, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Layout places record fields under the titles of an existing header row.
type Layout struct {
	header  []string
	cols    map[string]int
	members map[core.Participant]int
}

// NewLayout maps header onto g. A blank header becomes Header(g). Kind and
// ID columns missing from a legacy header are added after its last title;
// extended reports whether the header changed and must be written back.
// Every member of g needs its own column.
func NewLayout(header []string, g core.Group) (l Layout, extended bool, err error) {
	for _, p := range g.Members() {
		if ReservedTitle(string(p)) {
			return Layout{}, false, fmt.Errorf("%w: participant %q clashes with a column title", ErrMalformedRow, p)
		}
	}

	if IsBlank(header) {
		header, extended = Header(g), true
	} else {
		header = append([]string(nil), header...)
		for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
			header = header[:len(header)-1]
		}
	}

	cols, participants, err := mapHeader(header)
	if err != nil {
		return Layout{}, false, err
	}
	for _, name := range []string{ColKind, ColID} {
		if _, ok := cols[name]; !ok {
			cols[name] = len(header)
			header = append(header, name)
			extended = true
		}
	}
	members := make(map[core.Participant]int, g.Len())
	for _, p := range g.Members() {
		idx, ok := participants[p]
		if !ok {
			return Layout{}, false, fmt.Errorf("%w: header has no column for %s", ErrMalformedRow, p)
		}
		members[p] = idx
	}
	return Layout{header: header, cols: cols, members: members}, extended, nil
}

// Header returns the title row the layout writes under.
func (l Layout) Header() []string {
	return append([]string(nil), l.header...)
}

// Encode renders r with one cell per header column. Columns of people
// outside the group are left empty.
func (l Layout) Encode(r core.TransactionRecord) []string {
	out := make([]string, len(l.header))
	put := func(name, v string) {
		if idx, ok := l.cols[name]; ok {
			out[idx] = v
		}
	}
	put(ColDate, r.Timestamp.Format(core.TimestampLayout))
	put(ColKind, string(r.Kind))
	put(ColPerson, string(r.Actor))
	put(ColNotes, r.Notes)
	put(ColID, r.ID)
	for p, idx := range l.members {
		out[idx] = r.Amount(p).String()
	}
	return out
}

// DecodeRows parses a sheet dump whose first non-blank row is the header.
// Columns are matched by title, so their order and any extra participant
// columns do not matter. Blank rows are skipped.
func DecodeRows(rows [][]string) ([]core.TransactionRecord, error) {
	start := -1
	for i, row := range rows {
		if !IsBlank(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, nil
	}

	cols, participants, err := mapHeader(rows[start])
	if err != nil {
		return nil, err
	}

	var out []core.TransactionRecord
	for i := start + 1; i < len(rows); i++ {
		if IsBlank(rows[i]) {
			continue
		}
		r, err := decodeRow(rows[i], cols, participants)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// CellStrings converts a row of API values to trimmed strings.
func CellStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// Cells converts an encoded row to API values.
func Cells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func mapHeader(header []string) (map[string]int, map[core.Participant]int, error) {
	cols := make(map[string]int)
	participants := make(map[core.Participant]int)
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if name, ok := headerAliases[strings.ToLower(h)]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
			continue
		}
		participants[core.Participant(h)] = i
	}
	for _, required := range []string{ColDate, ColPerson} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("%w: header has no %s column", ErrMalformedRow, required)
		}
	}
	return cols, participants, nil
}

func decodeRow(row []string, cols map[string]int, participants map[core.Participant]int) (core.TransactionRecord, error) {
	ts, err := parseTimestamp(cell(row, cols, ColDate))
	if err != nil {
		return core.TransactionRecord{}, err
	}
	kind, err := core.ParseKind(cell(row, cols, ColKind))
	if err != nil {
		return core.TransactionRecord{}, err
	}
	actor := core.Participant(cell(row, cols, ColPerson))
	if actor == "" {
		return core.TransactionRecord{}, fmt.Errorf("%w: empty %s", ErrMalformedRow, ColPerson)
	}

	amounts := make(map[core.Participant]core.Money, len(participants))
	for p, idx := range participants {
		var raw string
		if idx < len(row) {
			raw = strings.TrimSpace(row[idx])
		}
		m, err := parseAmount(raw)
		if err != nil {
			return core.TransactionRecord{}, fmt.Errorf("%s: %w", p, err)
		}
		amounts[p] = m
	}

	return core.TransactionRecord{
		ID:        cell(row, cols, ColID),
		Kind:      kind,
		Timestamp: ts,
		Actor:     actor,
		Amounts:   amounts,
		Notes:     cell(row, cols, ColNotes),
	}, nil
}

func cell(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty %s", ErrMalformedRow, ColDate)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedRow, s)
}

// parseAmount reads a cell as written by EncodeRow or typed by hand in the
// sheet. Empty cells are zero.
func parseAmount(s string) (core.Money, error) {
	if s == "" {
		return core.Money{}, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: bad amount %q", ErrMalformedRow, s)
	}
	if d.IsNegative() {
		return core.Money{}, fmt.Errorf("%w: negative amount %q", ErrMalformedRow, s)
	}
	return core.Money{Cents: d.Round(2).Shift(2).IntPart()}, nil
}

// IsBlank reports whether every cell of row is empty.
func IsBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
