package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"archivist/internal/client"
)

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	var (
		step     string
		noFollow bool
	)
	cmd := &cobra.Command{
		Use:   "reprocess <id>",
		Short: "Rerun processing for a recording",
		Long:  "Rolls the recording back to the given step and reruns the pipeline from there.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			api := ctx.apiClient()
			if noFollow {
				rec, err := api.Reprocess(cmd.Context(), id, step)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording %d queued from step %q (status %s)\n",
					rec.ID, step, rec.Status)
				return nil
			}

			rec, err := api.GetRecording(cmd.Context(), id)
			if err != nil {
				return err
			}
			return followProcessing(cmd, ctx, id, rec.ContentType,
				func(streamCtx context.Context) (*client.Transport, error) {
					return api.FollowReprocess(streamCtx, id, step)
				})
		},
	}
	cmd.Flags().StringVar(&step, "step", "all", "First step to rerun: extract, transcribe, document, embeddings, or all")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "Queue the rerun without streaming progress")
	return cmd
}
