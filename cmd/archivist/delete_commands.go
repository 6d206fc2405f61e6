package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var permanent bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recording",
		Long:  "Soft-deletes by default; --permanent also removes the files from disk.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.apiClient().DeleteRecording(cmd.Context(), id, permanent); err != nil {
				return err
			}
			if permanent {
				fmt.Fprintf(cmd.OutOrStdout(), "Recording %d permanently deleted\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Recording %d deleted (restore with `archivist restore %d`)\n", id, id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&permanent, "permanent", false, "Remove the recording and its files for good")
	return cmd
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a soft-deleted recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.apiClient().RestoreRecording(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recording %d restored\n", id)
			return nil
		},
	}
}
