package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/felixgeelhaar/studycoach/internal/app"
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var (
		docs    string
		rebuild bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the notes folder for retrieval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, app.Options{SkipEvents: true})
			if err != nil {
				return err
			}
			defer a.Close()
			return ingestNotes(ctx, a, firstNonEmpty(docs, a.NotesDir()), rebuild, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&docs, "docs", "", "folder with course notes (default from config)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "drop the index and re-embed every note")
	return cmd
}

// ingestNotes brings the index in line with dir and reports what changed
func ingestNotes(ctx context.Context, a *app.App, dir string, rebuild bool, out io.Writer) error {
	if a.Notes == nil {
		return errors.New("notes index not available")
	}

	fmt.Fprintf(out, "Indexing notes in %s...\n", dir)
	index := a.Notes.IndexDirectory
	if rebuild {
		index = a.Notes.Rebuild
	}
	result, err := index(ctx, dir)
	if err != nil {
		return fmt.Errorf("index notes: %w", err)
	}
	if result.NotesFound == 0 {
		return fmt.Errorf("no notes found in %q; add .md or .txt files and rerun", dir)
	}

	fmt.Fprintf(out, "Notes: %d found, %d indexed, %d unchanged, %d removed; %d chunks embedded\n",
		result.NotesFound, result.NotesIndexed, result.NotesSkipped, result.NotesRemoved, result.ChunksEmbedded)
	if result.Errors > 0 {
		fmt.Fprintf(out, "⚠ %d notes could not be indexed (see log)\n", result.Errors)
	}
	return nil
}
