package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/felixgeelhaar/studycoach/internal/app"
	"github.com/felixgeelhaar/studycoach/internal/coach"
	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/felixgeelhaar/studycoach/internal/quiz"
	"github.com/spf13/cobra"
)

type quizOptions struct {
	topic    string
	n        int
	avoid    string
	feedback string
	missed   bool
	docs     string
	rebuild  bool
}

func newQuizCmd() *cobra.Command {
	var opts quizOptions
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Take an interactive quiz on a topic",
		Example: `  studycoach quiz --topic thermodynamics
  studycoach quiz --topic osmosis --n 6 --avoid correct --feedback end --missed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuizCmd(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.topic, "topic", "", "topic to quiz (required)")
	f.IntVar(&opts.n, "n", 0, "number of questions (default from config)")
	f.StringVar(&opts.avoid, "avoid", "", "avoid repeating 'all' past prompts or only 'correct' ones")
	f.StringVar(&opts.feedback, "feedback", "", "show feedback 'immediate'ly or at the 'end'")
	f.BoolVar(&opts.missed, "missed", false, "show frequently missed questions at the end")
	f.StringVar(&opts.docs, "docs", "", "folder with course notes (default from config)")
	f.BoolVar(&opts.rebuild, "rebuild", false, "rebuild the notes index from scratch")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func runQuizCmd(cmd *cobra.Command, opts quizOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Quizzes == nil {
		return errors.New("no LLM provider configured (run 'studycoach init' or set OPENAI_API_KEY)")
	}

	if err := ingestNotes(ctx, a, firstNonEmpty(opts.docs, a.NotesDir()), opts.rebuild, out); err != nil {
		return err
	}

	avoid, err := progress.ParseAvoidMode(firstNonEmpty(opts.avoid, a.Config.Quiz.Avoid))
	if err != nil {
		return err
	}
	feedback, err := coach.ParseFeedbackMode(firstNonEmpty(opts.feedback, a.Config.Quiz.Feedback))
	if err != nil {
		return err
	}
	n := opts.n
	if n <= 0 {
		n = a.Config.Quiz.Questions
	}

	fmt.Fprintf(out, "Generating quiz on %q...\n", opts.topic)
	session, err := a.Quizzes.Start(ctx, coach.StartRequest{
		Topic:      opts.topic,
		Count:      n,
		Avoid:      avoid,
		Feedback:   feedback,
		ShowMissed: opts.missed || a.Config.Quiz.ShowMissed,
	})
	switch {
	case errors.Is(err, coach.ErrNoContext):
		return errors.New("no relevant context retrieved; check the notes folder and try --rebuild")
	case errors.Is(err, coach.ErrNoQuestions):
		return errors.New("quiz generation returned no questions; try refining the topic")
	case err != nil:
		return err
	}

	runner := &quizRunner{
		quizzes: a.Quizzes,
		in:      bufio.NewReader(cmd.InOrStdin()),
		out:     out,
		now:     time.Now,
	}
	return runner.run(ctx, session)
}

// quizRunner drives one session over a line-oriented terminal
type quizRunner struct {
	quizzes coach.QuizService
	in      *bufio.Reader
	out     io.Writer
	now     func() time.Time
}

func (r *quizRunner) run(ctx context.Context, session *coach.QuizSession) error {
	fmt.Fprintf(r.out, "Difficulty: %s\n\n=== QUIZ ===\n", session.Difficulty)

	for i, q := range session.Questions {
		printQuestion(r.out, i, q)

		start := r.now()
		line, readErr := r.in.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read answer: %w", readErr)
		}
		if readErr == io.EOF && line == "" {
			fmt.Fprintln(r.out, "\nInput closed, finishing quiz.")
			break
		}
		ms := r.now().Sub(start).Milliseconds()

		answer, err := r.quizzes.Answer(ctx, session.ID, i, strings.TrimSpace(line), &ms)
		if err != nil {
			return err
		}
		if answer.Graded {
			printVerdict(r.out, i, answer)
		}
	}

	summary, err := r.quizzes.Finish(ctx, session.ID)
	if err != nil {
		return err
	}

	if session.FeedbackMode == coach.FeedbackEnd {
		fmt.Fprintln(r.out, "\n=== FEEDBACK ===")
		for _, a := range summary.Results {
			fmt.Fprintln(r.out)
			printVerdict(r.out, a.Index, a)
		}
	}
	printSummary(r.out, summary, session.ShowMissed)
	return nil
}

func printQuestion(w io.Writer, i int, q quiz.Question) {
	fmt.Fprintf(w, "\nQ%d. %s\n", i+1, q.Prompt)
	if q.Type == quiz.TypeMCQ {
		for _, opt := range q.Options {
			fmt.Fprintf(w, "  %s\n", opt)
		}
	}
	fmt.Fprintf(w, "Answer Q%d: ", i+1)
}

func printVerdict(w io.Writer, i int, a *coach.Answer) {
	status := "✗ Incorrect"
	if a.Correct {
		status = "✓ Correct"
	}
	if a.ResponseMs != nil {
		fmt.Fprintf(w, "Q%d: %s (response: %d ms)\n", i+1, status, *a.ResponseMs)
	} else {
		fmt.Fprintf(w, "Q%d: %s\n", i+1, status)
	}
	if a.Feedback != "" {
		fmt.Fprintf(w, "Feedback: %s\n", a.Feedback)
	}
}

func printSummary(w io.Writer, s *coach.Summary, showMissed bool) {
	fmt.Fprintf(w, "\nScore: %s (%.0f%%)\n", s.Raw(), s.Percent)
	fmt.Fprintln(w, s.Message)

	if showMissed {
		printMissed(w, s.Missed, "\nFrequently missed questions (for this topic):")
	}
	fmt.Fprintln(w, "Progress saved.")
}

func printMissed(w io.Writer, missed []progress.MissedQuestion, header string) {
	if len(missed) == 0 {
		fmt.Fprintln(w, "\nNo frequently missed questions yet for this topic.")
		return
	}
	fmt.Fprintln(w, header)
	for i, m := range missed {
		tail := ""
		if m.AvgResponseMs != nil {
			tail = fmt.Sprintf(" | avg time: %d ms", *m.AvgResponseMs)
		}
		fmt.Fprintf(w, "  %d. (%.0f%% wrong over %d attempts)%s\n     %s\n",
			i+1, m.ErrorRate*100, m.Attempts, tail, m.Prompt)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
