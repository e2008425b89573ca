package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"bilans/internal/backend"
	"bilans/internal/cli"
	"bilans/internal/config"
	"bilans/internal/ctl"
	"bilans/internal/log"
	"bilans/internal/services"
)

func main() {
	// Logs go to stderr so command output stays pipeable
	logger := cli.SetupLogger(nil, log.ComponentCLI, os.Stderr)
	cli.LoadEnvFile(logger)

	env := &ctl.Env{
		Open: func(ctx context.Context) (*services.LedgerService, func() error, error) {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return nil, nil, err
			}
			logger = cli.SetupLogger(cfg, log.ComponentCLI, os.Stderr)
			bc, err := backend.FromAppConfig(cfg)
			if err != nil {
				return nil, nil, err
			}
			res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
			if err != nil {
				return nil, nil, err
			}
			return services.NewLedgerService(bc.Group, res.Ledger), res.Close, nil
		},
		Out: os.Stdout,
		Err: os.Stderr,
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range ctl.Commands(env) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
