// Command brokerctl administers the broker backend selected by the
// environment: it migrates and seeds Postgres and runs one-off queries
// and orders against either store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/efreitasn/minibroker/internal/app"
	"github.com/efreitasn/minibroker/internal/config"
	"github.com/google/subcommands"
)

// env is what every command runs against.
type env struct {
	cfg *config.Config
	out io.Writer
	log *slog.Logger
}

// withApp opens the configured backend for the duration of fn.
func (e *env) withApp(ctx context.Context, fn func(a *app.App) error) subcommands.ExitStatus {
	a, err := app.New(ctx, e.cfg, e.log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	if err := fn(a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func commands(e *env) []subcommands.Command {
	return []subcommands.Command{
		&migrateCmd{env: e},
		&seedCmd{env: e},
		&balanceCmd{env: e},
		&portfolioCmd{env: e},
		&submitCmd{env: e},
		&instrumentsCmd{env: e},
	}
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "help")
	commander.Register(commander.FlagsCommand(), "help")
	commander.Register(commander.CommandsCommand(), "help")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitUsageError))
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	for _, c := range commands(&env{cfg: cfg, out: os.Stdout, log: logger}) {
		commander.Register(c, "")
	}

	os.Exit(int(commander.Execute(context.Background())))
}
