package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"BulletinDispatch/internal/app"
	"BulletinDispatch/internal/config"
	"BulletinDispatch/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "bulletindispatch",
	Short: "Generate and email trademark watch reports",
	Long: "bulletindispatch batches classified gazette bulletins into one PDF report\n" +
		"per client and importance, then emails each report to the client.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.Version = version
}

// openApp loads configuration and wires the application for one command.
func openApp(ctx context.Context) (*app.Application, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return application, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
