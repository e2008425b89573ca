package core

import (
	"errors"
	"testing"
	"time"
)

func TestNewGroup(t *testing.T) {
	g, err := NewGroup(" Adam ", "Jacek", "", "Adam", "Patryk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("expected 3 members, got %v", g.Members())
	}
	if g.Index("Jacek") != 1 || g.Index("Nobody") != -1 {
		t.Fatalf("unexpected index: %v", g.Members())
	}
	if p, ok := g.Lookup("patryk"); !ok || p != "Patryk" {
		t.Fatalf("Lookup case-insensitive failed: %q %v", p, ok)
	}

	if _, err := NewGroup("Solo", " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for single member, got %v", err)
	}
}

func TestGroupMembersIsCopy(t *testing.T) {
	g := MustGroup("A", "B")
	m := g.Members()
	m[0] = "Z"
	if g.Members()[0] != "A" {
		t.Fatal("Members must not expose internal slice")
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"expense", KindExpense, true},
		{"Settlement", KindSettlement, true},
		{"", KindExpense, true},
		{"refund", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: got %q err=%v", tc.in, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidKind) {
			t.Fatalf("%q: expected ErrInvalidKind, got %v", tc.in, err)
		}
	}
}

func TestRecordValidate(t *testing.T) {
	g := MustGroup("A", "B", "C")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	good := TransactionRecord{
		Kind:      KindExpense,
		Timestamp: now,
		Actor:     "A",
		Amounts:   map[Participant]Money{"A": {}, "B": Cents(1000), "C": Cents(1000)},
	}
	if err := good.Validate(g); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(r *TransactionRecord)
		want   error
	}{
		{"bad kind", func(r *TransactionRecord) { r.Kind = "gift" }, ErrInvalidKind},
		{"zero timestamp", func(r *TransactionRecord) { r.Timestamp = time.Time{} }, ErrMissingTimestamp},
		{"unknown actor", func(r *TransactionRecord) { r.Actor = "X" }, ErrUnknownParticipant},
		{"unknown participant", func(r *TransactionRecord) { r.Amounts["X"] = Cents(1) }, ErrUnknownParticipant},
		{"negative amount", func(r *TransactionRecord) { r.Amounts["B"] = Cents(-1) }, ErrInvalidAmount},
		{"actor owes self", func(r *TransactionRecord) { r.Amounts["A"] = Cents(1) }, ErrActorOwesSelf},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := good.Clone()
			tc.mutate(&r)
			err := r.Validate(g)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected error to be ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRecordCloneAndTotal(t *testing.T) {
	r := TransactionRecord{Actor: "A", Amounts: map[Participant]Money{"B": Cents(333), "C": Cents(333)}}
	c := r.Clone()
	c.Amounts["B"] = Cents(1)
	if r.Amount("B") != Cents(333) {
		t.Fatal("Clone shares the amounts map")
	}
	if r.Total() != Cents(666) {
		t.Fatalf("Total = %v", r.Total())
	}
	if !r.Amount("Z").IsZero() {
		t.Fatal("missing participant should read as zero")
	}
}
