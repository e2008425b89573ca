package ctl

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"

	"bilans/internal/balance"
	"bilans/internal/core"
	"bilans/internal/services"
)

type expenseCmd struct {
	env *Env

	payer        string
	amount       string
	participants string
	notes        string
	date         string
}

func (*expenseCmd) Name() string     { return "expense" }
func (*expenseCmd) Synopsis() string { return "record an expense shared by some or all participants" }
func (*expenseCmd) Usage() string {
	return `bilansctl expense -payer <name> -amount <12.34> [-participants a,b] [-notes <text>] [-d <date>]

  Splits the amount equally among the participants and appends one record.
  Without -participants the expense is shared by the whole group.
`
}

func (c *expenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.payer, "payer", "", "Who paid.")
	f.StringVar(&c.amount, "amount", "", "Amount paid, dot or comma decimals.")
	f.StringVar(&c.participants, "participants", "", "Comma separated list of who shares the expense. Defaults to everybody.")
	f.StringVar(&c.notes, "notes", "", "Free text description.")
	f.StringVar(&c.date, "d", "", "Date of the expense (YYYY-MM-DD). Defaults to now.")
}

func (c *expenseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(svc *services.LedgerService) error {
		g := svc.Group()
		payer, err := lookup(g, c.payer)
		if err != nil {
			return fmt.Errorf("payer: %w", err)
		}
		participants, err := lookupList(g, c.participants)
		if err != nil {
			return fmt.Errorf("participants: %w", err)
		}
		amount, err := core.ParseMoney(c.amount)
		if err != nil {
			return fmt.Errorf("amount %q: %w", c.amount, err)
		}
		e := balance.Expense{
			Payer:        payer,
			Amount:       amount,
			Participants: participants,
			Notes:        strings.TrimSpace(c.notes),
		}
		if c.date != "" {
			ts, err := time.Parse("2006-01-02", c.date)
			if err != nil {
				return fmt.Errorf("%w: date %q: want YYYY-MM-DD", core.ErrInvalidInput, c.date)
			}
			e.Timestamp = ts.UTC()
		}

		rec, err := svc.AddExpense(ctx, e)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Out, "Recorded %s: %s paid %s for %s\n", rec.ID, rec.Actor, amount, joinNames(participants))
		return nil
	})
}

func joinNames(ps []core.Participant) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
