package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var generateFlags struct {
	json bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render one report per client and importance for classified bulletins",
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&generateFlags.json, "json", false, "Print counts as JSON")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	result, runErr := application.Generate(cmd.Context())
	out := cmd.OutOrStdout()

	if generateFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
			Counts  any    `json:"counts"`
		}{result.Success, string(result.Message), result.Counts}); err != nil {
			return err
		}
		return runErr
	}

	fmt.Fprintf(out, "Result:   %s\n", result.Message)
	fmt.Fprintf(out, "Reports:  %d (%d bulletins)\n", result.Counts.Artifacts, result.Counts.Generated)
	fmt.Fprintf(out, "Pending:  %d excluded\n", result.Counts.ExcludedPending)
	fmt.Fprintf(out, "Errors:   %d\n", result.Counts.Errors)
	for _, a := range result.Artifacts {
		fmt.Fprintf(out, "  %s -> %s [%s]\n", a.Key, a.Artifact.Name, strings.Join(a.Bulletins, ", "))
	}
	for _, f := range result.Failures {
		fmt.Fprintf(out, "  error: %v\n", f)
	}
	return runErr
}
