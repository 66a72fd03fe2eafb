package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/jejernig/keyvault-to-appconfig/cmd/kv2appconfig/commands"
	"github.com/jejernig/keyvault-to-appconfig/internal/config"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	code := run()
	memguard.Purge()
	os.Exit(code)
}

func run() int {
	// Global flags
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	cfg := &config.Config{Logger: logging.New(false, false)}

	rootCmd := &cobra.Command{
		Use:   "kv2appconfig",
		Short: "Map Key Vault secrets into App Configuration settings",
		Long: `kv2appconfig maps secret names from a secret store onto configuration keys,
diffs the result against an App Configuration store and applies the changes
as Key Vault references or, when explicitly allowed, as copied values.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Non-interactive mode")

	rootCmd.AddCommand(
		commands.NewMappingCommand(cfg),
		commands.NewSecretsCommand(cfg),
		commands.NewDiffCommand(cfg),
		commands.NewPlanCommand(cfg),
		commands.NewApplyCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return dserrors.ExitSuccess
	}

	var exitErr dserrors.ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return dserrors.ExitCode(err)
}
