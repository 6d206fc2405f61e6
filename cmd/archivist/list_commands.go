package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"archivist/internal/api"
	"archivist/internal/client"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses   []string
		tag        string
		collection int64
		sortBy     string
		ascending  bool
		deleted    string
		limit      int
		offset     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings in the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deleted != "" && deleted != "include" && deleted != "only" {
				return fmt.Errorf("invalid --deleted value %q (want include or only)", deleted)
			}
			recordings, err := ctx.apiClient().ListRecordings(cmd.Context(), client.ListParams{
				Statuses:     statuses,
				Tag:          tag,
				CollectionID: collection,
				SortBy:       sortBy,
				Ascending:    ascending,
				Deleted:      deleted,
				Limit:        limit,
				Offset:       offset,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, recordings)
			}
			renderRecordingTable(cmd, recordings)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by lifecycle status (repeatable)")
	cmd.Flags().StringVar(&tag, "tag", "", "Filter by tag name")
	cmd.Flags().Int64Var(&collection, "collection", 0, "Filter by collection id")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort field (created, updated, title)")
	cmd.Flags().BoolVar(&ascending, "asc", false, "Sort ascending instead of descending")
	cmd.Flags().StringVar(&deleted, "deleted", "", "Include soft-deleted recordings (include or only)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search recordings by title and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordings, err := ctx.apiClient().ListRecordings(cmd.Context(), client.ListParams{
				Search: args[0],
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, recordings)
			}
			if len(recordings) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No recordings match %q\n", args[0])
				return nil
			}
			renderRecordingTable(cmd, recordings)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to return")
	return cmd
}

func renderRecordingTable(cmd *cobra.Command, recordings []api.Recording) {
	if len(recordings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Library is empty")
		return
	}
	rows := make([][]string, 0, len(recordings))
	for _, rec := range recordings {
		progress := "-"
		if rec.Progress.Stage != "" {
			progress = fmt.Sprintf("%s %.0f%%", rec.Progress.Stage, rec.Progress.Percent)
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			truncate(rec.Title, 40),
			rec.ContentType,
			rec.Status,
			progress,
			orDash(rec.UpdatedAt),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Title", "Type", "Status", "Progress", "Updated"}, rows, 0))
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recording in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			rec, err := ctx.apiClient().GetRecording(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, rec)
			}
			renderRecordingDetail(cmd, rec)
			return nil
		},
	}
	return cmd
}

func renderRecordingDetail(cmd *cobra.Command, rec api.Recording) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Recording %d\n", rec.ID)
	fmt.Fprintf(stdout, "  Title:       %s\n", rec.Title)
	fmt.Fprintf(stdout, "  Type:        %s\n", rec.ContentType)
	fmt.Fprintf(stdout, "  Status:      %s\n", rec.Status)
	if rec.SourceFileName != "" {
		fmt.Fprintf(stdout, "  Source:      %s\n", rec.SourceFileName)
	}
	if rec.LibraryPath != "" {
		fmt.Fprintf(stdout, "  Library:     %s\n", rec.LibraryPath)
	}
	if rec.TranscriptPath != "" {
		fmt.Fprintf(stdout, "  Transcript:  %s\n", rec.TranscriptPath)
	}
	if rec.DocumentPath != "" {
		fmt.Fprintf(stdout, "  Document:    %s\n", rec.DocumentPath)
	}
	if rec.EmbeddingsPath != "" {
		fmt.Fprintf(stdout, "  Embeddings:  %s\n", rec.EmbeddingsPath)
	}
	if len(rec.Tags) > 0 {
		fmt.Fprintf(stdout, "  Tags:        %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.Progress.Stage != "" {
		fmt.Fprintf(stdout, "  Progress:    %s %.0f%% %s\n",
			rec.Progress.Stage, rec.Progress.Percent, rec.Progress.Message)
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(stdout, "  Error:       [%s] %s\n", orDash(rec.ErrorCategory), rec.ErrorMessage)
	}
	fmt.Fprintf(stdout, "  Created:     %s\n", orDash(rec.CreatedAt))
	fmt.Fprintf(stdout, "  Updated:     %s\n", orDash(rec.UpdatedAt))
	if rec.DeletedAt != "" {
		fmt.Fprintf(stdout, "  Deleted:     %s\n", rec.DeletedAt)
	}
	if len(rec.Metadata) > 0 {
		fmt.Fprintf(stdout, "  Metadata:    %s\n", string(rec.Metadata))
	}
}
