package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/felixgeelhaar/studycoach/internal/config"
	"github.com/felixgeelhaar/studycoach/internal/events"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Work with published progress events",
	}

	var brokerURL string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print progress events from the broker as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLocalConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return tailEvents(cmd.Context(), firstNonEmpty(brokerURL, cfg.Events.URL), cmd.OutOrStdout())
		},
	}
	tail.Flags().StringVar(&brokerURL, "url", "", "AMQP URL (default from config)")
	cmd.AddCommand(tail)
	return cmd
}

func tailEvents(ctx context.Context, brokerURL string, out io.Writer) error {
	conn, err := events.NewConnection(brokerURL, cliLogger("warn"))
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(out, "Listening on %s (Ctrl-C to stop)\n", events.ProgressQueue)
	err = conn.Consume(ctx, func(_ context.Context, e *events.Event) error {
		printEvent(out, e)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printEvent(w io.Writer, e *events.Event) {
	fmt.Fprintf(w, "%s  %-18s %s\n", e.OccurredAt.Format("2006-01-02 15:04:05"), e.Type, e.Payload)
}
