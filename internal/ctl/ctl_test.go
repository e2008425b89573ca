package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilans/internal/core"
	"bilans/internal/services"
	"bilans/internal/sheets/memory"
)

type harness struct {
	store  *memory.Store
	out    bytes.Buffer
	errOut bytes.Buffer
	closed int
	env    *Env
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: memory.New()}
	g := core.MustGroup("Ada", "Bob", "Cy")
	n := 0
	h.env = &Env{
		Open: func(context.Context) (*services.LedgerService, func() error, error) {
			svc := services.NewLedgerService(g, h.store,
				services.WithClock(func() time.Time { return time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC) }),
				services.WithIDGenerator(func() string { n++; return fmt.Sprintf("rec-%d", n) }),
			)
			return svc, func() error { h.closed++; return nil }, nil
		},
		Out: &h.out,
		Err: &h.errOut,
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) subcommands.ExitStatus {
	t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	fs := flag.NewFlagSet("bilansctl", flag.ContinueOnError)
	cmdr := subcommands.NewCommander(fs, "bilansctl")
	for _, c := range Commands(h.env) {
		cmdr.Register(c, "")
	}
	require.NoError(t, fs.Parse(args))
	return cmdr.Execute(context.Background())
}

func TestExpenseAndBalance(t *testing.T) {
	h := newHarness(t)

	status := h.run(t, "expense", "-payer", "ada", "-amount", "30,00", "-notes", "groceries")
	require.Equal(t, subcommands.ExitSuccess, status, h.errOut.String())
	assert.Contains(t, h.out.String(), "Recorded rec-1: Ada paid 30.00 for Ada, Bob, Cy")
	assert.Equal(t, 1, h.closed)

	status = h.run(t, "balance")
	require.Equal(t, subcommands.ExitSuccess, status, h.errOut.String())
	out := h.out.String()
	assert.Contains(t, out, "Bob owes Ada: 10.00")
	assert.Contains(t, out, "Cy owes Ada: 10.00")
	assert.NotContains(t, out, "All settled up.")
}

func TestExpenseSubset(t *testing.T) {
	h := newHarness(t)

	status := h.run(t, "expense", "-payer", "Bob", "-amount", "9", "-participants", "Bob, cy", "-d", "2026-04-30")
	require.Equal(t, subcommands.ExitSuccess, status, h.errOut.String())

	recs, err := h.store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.Cents(450), recs[0].Amount("Cy"))
	assert.True(t, recs[0].Amount("Ada").IsZero())
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), recs[0].Timestamp)
}

func TestExpenseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown payer", []string{"expense", "-payer", "Zed", "-amount", "1"}, "payer"},
		{"negative amount", []string{"expense", "-payer", "Ada", "-amount", "-1"}, "amount"},
		{"unknown participant", []string{"expense", "-payer", "Ada", "-amount", "1", "-participants", "Ada,Zed"}, "participants"},
		{"bad date", []string{"expense", "-payer", "Ada", "-amount", "1", "-d", "yesterday"}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			assert.Equal(t, subcommands.ExitUsageError, h.run(t, tt.args...))
			assert.Contains(t, h.errOut.String(), tt.want)

			recs, err := h.store.ReadAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, recs)
		})
	}
}

func TestSettle(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "expense", "-payer", "Ada", "-amount", "30"))

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "settle", "-payer", "Bob", "-receiver", "Ada", "-amount", "25"))
	assert.Contains(t, h.out.String(), "Only 10.00 was applied")

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "settle", "-payer", "Bob", "-receiver", "Ada", "-amount", "5"))
	assert.Contains(t, h.out.String(), "Bob owes nothing to Ada.")

	recs, err := h.store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "settle", "-payer", "Bob", "-receiver", "bob", "-amount", "5"))
}

func TestBalanceJSONAndSettled(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "balance"))
	assert.Contains(t, h.out.String(), "All settled up.")

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "expense", "-payer", "Cy", "-amount", "4", "-participants", "Ada,Cy"))
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "balance", "-json"))

	var debts []debtJSON
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &debts))
	assert.Equal(t, []debtJSON{{Debtor: "Ada", Creditor: "Cy", Amount: "2.00"}}, debts)
}

func TestLog(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "log"))
	assert.Contains(t, h.out.String(), "No records yet.")

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "expense", "-payer", "Ada", "-amount", "3", "-notes", "first"))
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "expense", "-payer", "Bob", "-amount", "6", "-notes", "second"))

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "log", "-tail", "1"))
	out := h.out.String()
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "first")
	assert.Contains(t, out, "2026-05-01 18:30:00")

	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "log", "-tail", "-2"))
}

func TestOpenFailure(t *testing.T) {
	h := newHarness(t)
	h.env.Open = func(context.Context) (*services.LedgerService, func() error, error) {
		return nil, nil, errors.New("no backend")
	}
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "balance"))
	assert.True(t, strings.HasPrefix(h.errOut.String(), "open ledger: no backend"))
}
