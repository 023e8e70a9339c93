package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	flagEnvFile    = "env-file"
	flagMetricsOut = "metrics-out"
	defaultEnvFile = ".env"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "srquick: %v\n", err)
		os.Exit(1)
	}
}

// execute runs one command line and releases what it opened, even on failure.
func execute(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := &app{}
	cmd := newRootCommand(application)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, application.close())
}

func newRootCommand(application *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "srquick",
		Short:         "SR-Quick game companion client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return application.open(cmd)
		},
	}
	registerFlags(cmd)

	cmd.AddCommand(
		newHealthCommand(application),
		newDebugIPCommand(application),
		newUserCommand(application),
		newPlayerCommand(application),
		newLoginCommand(application),
		newLogoutCommand(application),
		newProfileCommand(application),
		newSettingsCommand(application),
		newAccountCommand(application),
		newSyncCommand(application),
		newCharactersCommand(application),
		newFavoriteCommand(application),
		newDeleteCharacterCommand(application),
		newSyncLogsCommand(application),
		newStatsCommand(application),
		newImageCommand(application),
	)
	return cmd
}
