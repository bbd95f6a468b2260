package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"BulletinDispatch/internal/domain"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <bulletin-id> <Low|Medium|High|Pending>",
	Short: "Set the importance of a bulletin that has not been generated yet",
	Args:  cobra.ExactArgs(2),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("bulletin id must be a positive integer, got %q", args[0])
	}
	importance, err := domain.ParseImportance(args[1])
	if err != nil {
		return err
	}

	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Classify(cmd.Context(), id, importance); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bulletin %d classified %s\n", id, importance)
	return nil
}
