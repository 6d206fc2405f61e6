package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archivist/internal/api"
	"archivist/internal/client"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow bool
		limit  int
		itemID int64
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := ctx.apiClient()
			resp, err := apiClient.Logs(cmd.Context(), client.LogParams{
				Limit:  limit,
				ItemID: itemID,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() && !follow {
				return writeJSON(cmd, resp.Events)
			}
			printLogEvents(cmd, resp.Events)
			if !follow {
				return nil
			}

			// Advance past the last delivered event rather than trusting the
			// server cursor, so a truncated page is never skipped over.
			since := resp.Next
			if n := len(resp.Events); n > 0 {
				since = resp.Events[n-1].Sequence
			}
			for {
				resp, err := apiClient.Logs(cmd.Context(), client.LogParams{
					Since:  since,
					Follow: true,
					ItemID: itemID,
				})
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				printLogEvents(cmd, resp.Events)
				if n := len(resp.Events); n > 0 {
					since = resp.Events[n-1].Sequence
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	cmd.Flags().IntVar(&limit, "limit", 200, "Number of buffered lines to show first")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only show lines for one recording")
	return cmd
}

func printLogEvents(cmd *cobra.Command, events []api.LogEvent) {
	stdout := cmd.OutOrStdout()
	for _, evt := range events {
		prefix := evt.Timestamp
		if evt.Component != "" {
			prefix += " [" + evt.Component + "]"
		}
		if evt.ItemID != 0 {
			prefix += fmt.Sprintf(" item=%d", evt.ItemID)
		}
		fmt.Fprintf(stdout, "%s %s %s\n", prefix, evt.Level, evt.Message)
	}
}
