package sheets

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"bilans/internal/core"
)

func TestHeader(t *testing.T) {
	g := core.MustGroup("Adam", "Jacek", "Patryk")
	want := []string{"Date", "Kind", "Person", "Adam", "Jacek", "Patryk", "Notes", "ID"}
	if got := Header(g); !reflect.DeepEqual(got, want) {
		t.Fatalf("Header() = %v, want %v", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := core.MustGroup("Adam", "Jacek", "Patryk")
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	in := []core.TransactionRecord{
		{
			ID: "a1", Kind: core.KindExpense, Timestamp: ts, Actor: "Adam", Notes: "groceries",
			Amounts: map[core.Participant]core.Money{"Adam": {}, "Jacek": core.Cents(1050), "Patryk": core.Cents(1050)},
		},
		{
			ID: "b2", Kind: core.KindSettlement, Timestamp: ts.Add(time.Hour), Actor: "Jacek", Notes: "settlement for Adam",
			Amounts: map[core.Participant]core.Money{"Adam": core.Cents(500), "Jacek": {}, "Patryk": {}},
		},
	}

	rows := [][]string{Header(g)}
	for _, r := range in {
		rows = append(rows, EncodeRow(g, r))
	}
	if rows[1][3] != "0.00" || rows[1][4] != "10.50" {
		t.Fatalf("unexpected encoded row: %v", rows[1])
	}

	out, err := DecodeRows(rows)
	if err != nil {
		t.Fatalf("DecodeRows: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip mismatch\n got: %+v\nwant: %+v", out, in)
	}
}

func TestDecodeRowsLegacyLayout(t *testing.T) {
	// Polish headers, no Kind or ID columns, shuffled participant columns,
	// comma decimals and a blank separator row.
	rows := [][]string{
		{},
		{"Data", "Osoba", "Patryk", "Adam", "Jacek", "Uwagi"},
		{"2024-11-02 18:00:00", "Adam", "3,5", "", "3.50", "pizza"},
		{"", "", "", "", "", ""},
		{"2024-11-03", "Jacek", "", "12", ""},
	}
	out, err := DecodeRows(rows)
	if err != nil {
		t.Fatalf("DecodeRows: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	first := out[0]
	if first.Kind != core.KindExpense || first.Actor != "Adam" || first.Notes != "pizza" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Amount("Patryk") != core.Cents(350) || first.Amount("Jacek") != core.Cents(350) || !first.Amount("Adam").IsZero() {
		t.Errorf("unexpected amounts: %v", first.Amounts)
	}
	second := out[1]
	if second.Amount("Adam") != core.Cents(1200) {
		t.Errorf("unexpected amount for Adam: %v", second.Amount("Adam"))
	}
	if !second.Timestamp.Equal(time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp: %v", second.Timestamp)
	}
}

func TestDecodeRowsErrors(t *testing.T) {
	header := []string{"Date", "Kind", "Person", "A", "B", "Notes", "ID"}
	tests := []struct {
		name string
		rows [][]string
		want error
	}{
		{"missing person column", [][]string{{"Date", "A", "B"}}, ErrMalformedRow},
		{"bad timestamp", [][]string{header, {"yesterday", "expense", "A", "0", "1", "", ""}}, ErrMalformedRow},
		{"empty person", [][]string{header, {"2024-01-01", "expense", "", "0", "1", "", ""}}, ErrMalformedRow},
		{"bad amount", [][]string{header, {"2024-01-01", "expense", "A", "0", "ten", "", ""}}, ErrMalformedRow},
		{"negative amount", [][]string{header, {"2024-01-01", "expense", "A", "0", "-1,50", "", ""}}, ErrMalformedRow},
		{"bad kind", [][]string{header, {"2024-01-01", "refund", "A", "0", "1", "", ""}}, core.ErrInvalidKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRows(tt.rows)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeRowsEmpty(t *testing.T) {
	out, err := DecodeRows(nil)
	if err != nil || out != nil {
		t.Fatalf("expected nil, nil; got %v, %v", out, err)
	}
	out, err = DecodeRows([][]string{Header(core.MustGroup("A", "B"))})
	if err != nil || len(out) != 0 {
		t.Fatalf("expected no records, got %v, %v", out, err)
	}
}

func TestCellStrings(t *testing.T) {
	got := CellStrings([]any{" 2024-01-01 ", 12.5, "A"})
	want := []string{"2024-01-01", "12.5", "A"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CellStrings() = %v, want %v", got, want)
	}
}

func TestNewLayout(t *testing.T) {
	g := core.MustGroup("Adam", "Jacek")
	r := core.TransactionRecord{
		ID: "r1", Kind: core.KindSettlement, Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Actor: "Jacek", Notes: "settlement for Adam",
		Amounts: map[core.Participant]core.Money{"Adam": core.Cents(250), "Jacek": {}},
	}

	tests := []struct {
		name         string
		header       []string
		wantHeader   []string
		wantExtended bool
		wantRow      []string
	}{
		{
			name:         "blank sheet",
			header:       nil,
			wantHeader:   []string{"Date", "Kind", "Person", "Adam", "Jacek", "Notes", "ID"},
			wantExtended: true,
			wantRow:      []string{"2025-01-02 03:04:05", "settlement", "Jacek", "2.50", "0.00", "settlement for Adam", "r1"},
		},
		{
			name:         "current layout in another order",
			header:       []string{"ID", "Person", "Jacek", "Adam", "Date", "Kind", "Notes"},
			wantHeader:   []string{"ID", "Person", "Jacek", "Adam", "Date", "Kind", "Notes"},
			wantExtended: false,
			wantRow:      []string{"r1", "Jacek", "0.00", "2.50", "2025-01-02 03:04:05", "settlement", "settlement for Adam"},
		},
		{
			name:         "legacy layout with a former member",
			header:       []string{"Data", "Osoba", "Patryk", "Adam", "Jacek", "Uwagi", ""},
			wantHeader:   []string{"Data", "Osoba", "Patryk", "Adam", "Jacek", "Uwagi", "Kind", "ID"},
			wantExtended: true,
			wantRow:      []string{"2025-01-02 03:04:05", "Jacek", "", "2.50", "0.00", "settlement for Adam", "settlement", "r1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, extended, err := NewLayout(tt.header, g)
			if err != nil {
				t.Fatalf("NewLayout: %v", err)
			}
			if extended != tt.wantExtended {
				t.Errorf("extended = %v, want %v", extended, tt.wantExtended)
			}
			if got := l.Header(); !reflect.DeepEqual(got, tt.wantHeader) {
				t.Errorf("Header() = %v, want %v", got, tt.wantHeader)
			}
			row := l.Encode(r)
			if !reflect.DeepEqual(row, tt.wantRow) {
				t.Errorf("Encode() = %v, want %v", row, tt.wantRow)
			}

			out, err := DecodeRows([][]string{l.Header(), row})
			if err != nil {
				t.Fatalf("DecodeRows: %v", err)
			}
			if len(out) != 1 || out[0].ID != "r1" || out[0].Kind != core.KindSettlement || out[0].Amount("Adam") != core.Cents(250) {
				t.Errorf("unexpected decoded record %+v", out)
			}
		})
	}
}

func TestNewLayoutErrors(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		group  core.Group
	}{
		{"member without column", []string{"Date", "Person", "Adam", "Notes"}, core.MustGroup("Adam", "Jacek")},
		{"member named like a column", nil, core.MustGroup("Adam", "Payer")},
		{"header without person", []string{"Date", "Adam", "Jacek"}, core.MustGroup("Adam", "Jacek")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := NewLayout(tt.header, tt.group); !errors.Is(err, ErrMalformedRow) {
				t.Fatalf("expected ErrMalformedRow, got %v", err)
			}
		})
	}
}

func TestReservedTitle(t *testing.T) {
	for _, name := range []string{"Date", "notes", " ID ", "Osoba", "Type", "Payer"} {
		if !ReservedTitle(name) {
			t.Errorf("ReservedTitle(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"Adam", "Idris", "Dates"} {
		if ReservedTitle(name) {
			t.Errorf("ReservedTitle(%q) = true, want false", name)
		}
	}
}
