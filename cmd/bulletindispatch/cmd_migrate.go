package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the bulletin, client and dispatch log tables",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
	return nil
}
