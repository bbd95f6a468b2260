package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logFlags struct {
	client string
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List dispatch attempts in the order they were recorded",
	RunE:  runLog,
}

func init() {
	logCmd.Flags().StringVar(&logFlags.client, "client", "", "Only show one client key")
}

func runLog(cmd *cobra.Command, _ []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	entries, err := application.Outcomes(cmd.Context(), logFlags.client)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No dispatch attempts recorded.")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-12s %s/%s <%s> #%s",
			e.Timestamp.Format(time.RFC3339), e.Status, e.ClientKey, e.Importance, e.Email, e.BulletinNumber)
		if e.Error != "" {
			line += "  " + e.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
