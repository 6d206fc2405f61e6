package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTagCommand(ctx *commandContext) *cobra.Command {
	tagCmd := &cobra.Command{
		Use:     "tag",
		Aliases: []string{"tags"},
		Short:   "Manage tags",
	}
	tagCmd.AddCommand(newTagListCommand(ctx))
	tagCmd.AddCommand(newTagCreateCommand(ctx))
	tagCmd.AddCommand(newTagDeleteCommand(ctx))
	return tagCmd
}

func newTagListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := ctx.apiClient().ListTags(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, tags)
			}
			if len(tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tags")
				return nil
			}
			rows := make([][]string, 0, len(tags))
			for _, tag := range tags {
				rows = append(rows, []string{strconv.FormatInt(tag.ID, 10), tag.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name"}, rows, 0))
			return nil
		},
	}
}

func newTagCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := ctx.apiClient().CreateTag(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, tag)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created tag %d (%s)\n", tag.ID, tag.Name)
			return nil
		},
	}
}

func newTagDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tag everywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return fmt.Errorf("invalid tag id %q", args[0])
			}
			if err := ctx.apiClient().DeleteTag(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tag %d deleted\n", id)
			return nil
		},
	}
}
