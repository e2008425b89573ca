// Package ctl implements the bilansctl subcommands.
package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/subcommands"

	"bilans/internal/core"
	"bilans/internal/services"
)

// Opener connects to the configured ledger. The returned func releases it.
type Opener func(ctx context.Context) (*services.LedgerService, func() error, error)

// Env is what every subcommand shares.
type Env struct {
	Open Opener
	Out  io.Writer
	Err  io.Writer
}

// Commands returns the subcommands in the order they are listed in help.
func Commands(env *Env) []subcommands.Command {
	return []subcommands.Command{
		&expenseCmd{env: env},
		&settleCmd{env: env},
		&balanceCmd{env: env},
		&logCmd{env: env},
	}
}

// withLedger opens the ledger, runs fn and maps its error to an exit status.
func (e *Env) withLedger(ctx context.Context, fn func(*services.LedgerService) error) subcommands.ExitStatus {
	svc, closeFn, err := e.Open(ctx)
	if err != nil {
		fmt.Fprintf(e.Err, "open ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if closeFn == nil {
			return
		}
		if err := closeFn(); err != nil {
			fmt.Fprintf(e.Err, "close ledger: %v\n", err)
		}
	}()

	if err := fn(svc); err != nil {
		fmt.Fprintln(e.Err, err)
		if errors.Is(err, core.ErrInvalidInput) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// lookup resolves a typed name against the group.
func lookup(g core.Group, name string) (core.Participant, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: missing name", core.ErrUnknownParticipant)
	}
	p, ok := g.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q is not one of %s", core.ErrUnknownParticipant, name, g)
	}
	return p, nil
}

// lookupList resolves a comma separated list; blank means the whole group.
func lookupList(g core.Group, list string) ([]core.Participant, error) {
	if strings.TrimSpace(list) == "" {
		return g.Members(), nil
	}
	var out []core.Participant
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p, err := lookup(g, name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, core.ErrNoParticipants
	}
	return out, nil
}
