package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"archivist/internal/client"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var (
		title       string
		contentType string
		noFollow    bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file and process it into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("source file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			fileName := filepath.Base(path)
			resolvedType := contentType
			if resolvedType == "" {
				resolvedType = contentTypeForFile(path)
			}
			if resolvedType == "" {
				return fmt.Errorf("cannot infer content type for %s, pass --type", fileName)
			}
			resolvedTitle := title
			if resolvedTitle == "" {
				resolvedTitle = strings.TrimSuffix(fileName, filepath.Ext(fileName))
			}

			api := ctx.apiClient()
			created, err := api.CreateRecording(cmd.Context(), resolvedTitle, resolvedType, fileName)
			if err != nil {
				return err
			}
			id := created.Recording.ID
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Created recording %d (%s, %s)\n", id, resolvedTitle, resolvedType)

			source, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open source file: %w", err)
			}
			defer source.Close()

			uploaded, err := api.Upload(cmd.Context(), id, fileName, source)
			if err != nil {
				return fmt.Errorf("upload %s: %w", fileName, err)
			}
			fmt.Fprintf(stdout, "Uploaded %s (%s)\n", fileName, formatBytes(uploaded.BytesSize))

			if noFollow {
				if _, err := api.Finalize(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Recording %d queued for processing\n", id)
				return nil
			}
			return followProcessing(cmd, ctx, id, resolvedType,
				func(streamCtx context.Context) (*client.Transport, error) {
					return api.FollowFinalize(streamCtx, id, true)
				})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Recording title (defaults to the file name)")
	cmd.Flags().StringVar(&contentType, "type", "", "Content type: video, audio, document, or text")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "Queue processing without streaming progress")
	return cmd
}
