package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/usecase"
)

var dispatchFlags struct {
	confirm bool
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Email generated reports; without --confirm only the plan is printed",
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().BoolVar(&dispatchFlags.confirm, "confirm", false, "Send the emails")
}

func runDispatch(cmd *cobra.Command, _ []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	result, runErr := application.Dispatch(cmd.Context(), dispatchFlags.confirm)
	out := cmd.OutOrStdout()

	var blocked *domain.BlockedError
	if errors.As(runErr, &blocked) {
		fmt.Fprintf(out, "Blocked: %d generated bulletin(s) still pending classification\n", blocked.Total())
		for _, key := range blocked.ClientKeys() {
			fmt.Fprintf(out, "  %s: %d\n", key, blocked.Counts[key])
		}
		return runErr
	}

	if !result.Confirmed {
		fmt.Fprintf(out, "Plan (%d email(s)); rerun with --confirm to send:\n", len(result.Planned))
		printOutcomes(out, result.Planned)
		return runErr
	}

	fmt.Fprintf(out, "Sent:         %d\n", len(result.Sent))
	fmt.Fprintf(out, "Failed:       %d\n", len(result.Failed))
	fmt.Fprintf(out, "No recipient: %d\n", len(result.NoRecipient))
	fmt.Fprintf(out, "No artifact:  %d\n", len(result.NoArtifact))
	printOutcomes(out, result.Failed)
	printOutcomes(out, result.NoRecipient)
	printOutcomes(out, result.NoArtifact)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "Not attempted: %d\n", len(result.Skipped))
	}
	return runErr
}

func printOutcomes(out io.Writer, outcomes []usecase.GroupOutcome) {
	for _, o := range outcomes {
		status := string(o.Status)
		if status == "" {
			status = "would be " + string(o.Expected)
		}
		line := fmt.Sprintf("  %s/%s <%s> %s [%s] %s",
			o.ClientKey, o.Importance, o.Email, o.Artifact, strings.Join(o.Bulletins, ", "), status)
		if o.Error != "" {
			line += ": " + o.Error
		}
		fmt.Fprintln(out, line)
	}
}
