package ctl

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"

	"bilans/internal/core"
	"bilans/internal/services"
)

type logCmd struct {
	env *Env

	tail int
}

func (*logCmd) Name() string     { return "log" }
func (*logCmd) Synopsis() string { return "list ledger records in append order" }
func (*logCmd) Usage() string {
	return `bilansctl log [-tail <n>]

  Lists every record with its kind, actor, total and notes.
`
}

func (c *logCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.tail, "tail", 0, "Show only the last N records.")
}

func (c *logCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.tail < 0 {
		fmt.Fprintln(c.env.Err, "Error: -tail must not be negative.")
		return subcommands.ExitUsageError
	}
	return c.env.withLedger(ctx, func(svc *services.LedgerService) error {
		records, err := svc.History(ctx)
		if err != nil {
			return err
		}
		if c.tail > 0 && len(records) > c.tail {
			records = records[len(records)-c.tail:]
		}
		if len(records) == 0 {
			fmt.Fprintln(c.env.Out, "No records yet.")
			return nil
		}

		tw := tabwriter.NewWriter(c.env.Out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKIND\tACTOR\tTOTAL\tNOTES")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.Timestamp.UTC().Format(core.TimestampLayout), r.Kind, r.Actor, r.Total(), r.Notes)
		}
		return tw.Flush()
	})
}
