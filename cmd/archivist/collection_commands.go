package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCollectionCommand(ctx *commandContext) *cobra.Command {
	collectionCmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"collections"},
		Short:   "Manage collections",
	}
	collectionCmd.AddCommand(newCollectionListCommand(ctx))
	collectionCmd.AddCommand(newCollectionCreateCommand(ctx))
	collectionCmd.AddCommand(newCollectionDeleteCommand(ctx))
	collectionCmd.AddCommand(newCollectionAddCommand(ctx))
	collectionCmd.AddCommand(newCollectionRemoveCommand(ctx))
	return collectionCmd
}

func newCollectionListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			collections, err := ctx.apiClient().ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, collections)
			}
			if len(collections) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No collections")
				return nil
			}
			rows := make([][]string, 0, len(collections))
			for _, col := range collections {
				rows = append(rows, []string{
					strconv.FormatInt(col.ID, 10),
					col.Name,
					orDash(col.Description),
					strconv.Itoa(col.ItemCount),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Description", "Items"}, rows, 0, 3))
			return nil
		},
	}
}

func newCollectionCreateCommand(ctx *commandContext) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := ctx.apiClient().CreateCollection(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, col)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created collection %d (%s)\n", col.ID, col.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Collection description")
	return cmd
}

func newCollectionDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a collection (recordings stay in the library)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return fmt.Errorf("invalid collection id %q", args[0])
			}
			if err := ctx.apiClient().DeleteCollection(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collection %d deleted\n", id)
			return nil
		},
	}
}

func newCollectionAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <collection-id> <recording-id>",
		Short: "Add a recording to a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionID, err := parseRecordingID(args[0])
			if err != nil {
				return fmt.Errorf("invalid collection id %q", args[0])
			}
			recordingID, err := parseRecordingID(args[1])
			if err != nil {
				return err
			}
			if err := ctx.apiClient().AddToCollection(cmd.Context(), collectionID, recordingID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recording %d added to collection %d\n", recordingID, collectionID)
			return nil
		},
	}
}

func newCollectionRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <collection-id> <recording-id>",
		Short: "Remove a recording from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionID, err := parseRecordingID(args[0])
			if err != nil {
				return fmt.Errorf("invalid collection id %q", args[0])
			}
			recordingID, err := parseRecordingID(args[1])
			if err != nil {
				return err
			}
			if err := ctx.apiClient().RemoveFromCollection(cmd.Context(), collectionID, recordingID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recording %d removed from collection %d\n", recordingID, collectionID)
			return nil
		},
	}
}
