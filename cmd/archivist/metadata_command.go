package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"archivist/internal/api"
)

func newMetadataCommand(ctx *commandContext) *cobra.Command {
	var (
		title    string
		tags     []string
		metaJSON string
	)
	cmd := &cobra.Command{
		Use:   "metadata <id>",
		Short: "Set title, tags, and metadata on a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			req := api.MetadataRequest{Title: strings.TrimSpace(title), Tags: tags}
			if metaJSON != "" {
				if !json.Valid([]byte(metaJSON)) {
					return fmt.Errorf("--meta must be valid JSON")
				}
				req.Metadata = json.RawMessage(metaJSON)
			}
			if req.Title == "" && len(req.Tags) == 0 && len(req.Metadata) == 0 {
				return fmt.Errorf("nothing to set, pass --title, --tag, or --meta")
			}

			rec, err := ctx.apiClient().SetMetadata(cmd.Context(), id, req)
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
	cmd.Flags().StringVar(&title, "title", "", "New recording title")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag to attach (repeatable)")
	cmd.Flags().StringVar(&metaJSON, "meta", "", "Free-form metadata as a JSON object")
	return cmd
}
