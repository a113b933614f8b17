package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "studycoachd.pid"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studycoach",
		Short: "Study Coach - adaptive quizzes from your notes",
		Long: `Study Coach generates quizzes from your notes, grades your answers
and remembers what you got wrong so the next quiz adapts.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddGroup(
		&cobra.Group{ID: "study", Title: "Study Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
		&cobra.Group{ID: "daemon", Title: "Daemon Commands:"},
	)

	for _, cmd := range []*cobra.Command{
		newQuizCmd(), newProgressCmd(), newMissedCmd(), newDifficultyCmd(), newIngestCmd(),
	} {
		cmd.GroupID = "study"
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{
		newInitCmd(), newConfigCmd(), newDoctorCmd(), newMCPCmd(), newEventsCmd(),
	} {
		cmd.GroupID = "setup"
		root.AddCommand(cmd)
	}
	for _, cmd := range newDaemonCmds() {
		cmd.GroupID = "daemon"
		root.AddCommand(cmd)
	}
	return root
}

// renderProgressBar creates a visual progress bar for a value in [0,1]
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
