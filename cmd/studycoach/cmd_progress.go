package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/studycoach/internal/app"
	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/spf13/cobra"
)

func newProgressCmd() *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show logged quiz sessions and accuracy per topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgress(cmd, func(ctx context.Context, svc progress.ProgressService) error {
				return printProgress(ctx, cmd.OutOrStdout(), svc, topic)
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "only show this topic")
	return cmd
}

func newMissedCmd() *cobra.Command {
	var (
		topic       string
		limit       int
		minAttempts int
	)
	cmd := &cobra.Command{
		Use:   "missed",
		Short: "List the questions answered wrong most often",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgress(cmd, func(ctx context.Context, svc progress.ProgressService) error {
				missed, err := svc.FrequentlyMissed(ctx, topic, minAttempts, limit)
				if err != nil {
					return err
				}
				header := "Frequently missed questions:"
				if topic != "" {
					header = fmt.Sprintf("Frequently missed questions (%s):", topic)
				}
				printMissed(cmd.OutOrStdout(), missed, header)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "only consider this topic")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum questions to list")
	cmd.Flags().IntVar(&minAttempts, "min-attempts", 1, "minimum attempts for a question to qualify")
	return cmd
}

func newDifficultyCmd() *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "difficulty",
		Short: "Show the adaptive difficulty for a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgress(cmd, func(ctx context.Context, svc progress.ProgressService) error {
				accuracy, err := svc.TopicAccuracy(ctx, topic)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Topic:      %s\nAccuracy:   %s %.0f%%\nDifficulty: %s\n",
					topic, renderProgressBar(accuracy, 20), accuracy*100, progress.DifficultyFor(accuracy))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic to assess (required)")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

// withProgress opens only the progress ledger and runs fn against it
func withProgress(cmd *cobra.Command, fn func(context.Context, progress.ProgressService) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{SkipNotes: true, SkipEvents: true})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Progress)
}

func printProgress(ctx context.Context, w io.Writer, svc progress.ProgressService, topic string) error {
	sessions, err := svc.Sessions(ctx, topic)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions logged yet. Run 'studycoach quiz --topic <topic>' to start.")
		return nil
	}

	fmt.Fprintln(w, "Sessions")
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, s := range sessions {
		raw, _ := s.Details["raw"].(string)
		difficulty, _ := s.Details["difficulty"].(string)
		fmt.Fprintf(w, "%-20s  %-18s %5.0f%%  %-6s %s\n", s.Timestamp, truncate(s.Topic, 18), s.Score, raw, difficulty)
	}

	topics := []string{topic}
	if topic == "" {
		if topics, err = svc.Topics(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Accuracy")
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, t := range topics {
		accuracy, err := svc.TopicAccuracy(ctx, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-18s %s %3.0f%%  next: %s\n",
			truncate(t, 18), renderProgressBar(accuracy, 20), accuracy*100, progress.DifficultyFor(accuracy))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
