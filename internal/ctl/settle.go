package ctl

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"bilans/internal/balance"
	"bilans/internal/core"
	"bilans/internal/services"
)

type settleCmd struct {
	env *Env

	payer    string
	receiver string
	amount   string
}

func (*settleCmd) Name() string     { return "settle" }
func (*settleCmd) Synopsis() string { return "record a repayment between two participants" }
func (*settleCmd) Usage() string {
	return `bilansctl settle -payer <name> -receiver <name> -amount <12.34>

  Pays back what payer owes receiver. A payment larger than the debt is
  capped at the debt; when nothing is owed no record is written.
`
}

func (c *settleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.payer, "payer", "", "Who pays back.")
	f.StringVar(&c.receiver, "receiver", "", "Who is paid back.")
	f.StringVar(&c.amount, "amount", "", "Amount paid back.")
}

func (c *settleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(svc *services.LedgerService) error {
		g := svc.Group()
		payer, err := lookup(g, c.payer)
		if err != nil {
			return fmt.Errorf("payer: %w", err)
		}
		receiver, err := lookup(g, c.receiver)
		if err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
		amount, err := core.ParseMoney(c.amount)
		if err != nil {
			return fmt.Errorf("amount %q: %w", c.amount, err)
		}

		res, err := svc.Settle(ctx, balance.Settlement{Payer: payer, Receiver: receiver, Amount: amount})
		if err != nil {
			return err
		}
		fmt.Fprintln(c.env.Out, res.Message())
		return nil
	})
}
