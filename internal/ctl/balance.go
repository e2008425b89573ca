package ctl

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"

	"bilans/internal/services"
)

type balanceCmd struct {
	env *Env

	asJSON bool
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show who owes whom" }
func (*balanceCmd) Usage() string {
	return `bilansctl balance [-json]

  Aggregates the whole ledger and prints the debt matrix, rows owing
  columns, followed by one line per outstanding debt.
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "Print the outstanding debts as JSON.")
}

type debtJSON struct {
	Debtor   string `json:"debtor"`
	Creditor string `json:"creditor"`
	Amount   string `json:"amount"`
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(svc *services.LedgerService) error {
		m, err := svc.Balance(ctx)
		if err != nil {
			return err
		}

		if c.asJSON {
			debts := make([]debtJSON, 0)
			for _, d := range m.Debts() {
				debts = append(debts, debtJSON{Debtor: string(d.Debtor), Creditor: string(d.Creditor), Amount: d.Amount.String()})
			}
			enc := json.NewEncoder(c.env.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(debts)
		}

		members := m.Group().Members()
		tw := tabwriter.NewWriter(c.env.Out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprint(tw, "owes\t")
		for _, cr := range members {
			fmt.Fprintf(tw, "%s\t", cr)
		}
		fmt.Fprintln(tw)
		for i, row := range m.Table() {
			fmt.Fprintf(tw, "%s\t", members[i])
			for _, amt := range row {
				fmt.Fprintf(tw, "%s\t", amt)
			}
			fmt.Fprintln(tw)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(c.env.Out)
		if m.Settled() {
			fmt.Fprintln(c.env.Out, "All settled up.")
			return nil
		}
		for _, d := range m.Debts() {
			fmt.Fprintln(c.env.Out, d)
		}
		return nil
	})
}
