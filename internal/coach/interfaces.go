package coach

import (
	"context"

	"github.com/felixgeelhaar/studycoach/internal/docindex"
	"github.com/felixgeelhaar/studycoach/internal/quiz"
)

// ContextRetriever returns note passages relevant to a topic
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, topic string, k int) (string, error)
}

// QuestionGenerator produces quiz questions
type QuestionGenerator interface {
	Generate(ctx context.Context, req quiz.GenerateRequest) (*quiz.Quiz, error)
}

// AnswerGrader judges one answer
type AnswerGrader interface {
	Grade(ctx context.Context, question, reference, answer string) (*quiz.GradeResult, error)
}

// QuizService defines the quiz run operations used by the daemon and the CLI
type QuizService interface {
	Start(ctx context.Context, req StartRequest) (*QuizSession, error)
	Get(ctx context.Context, id string) (*QuizSession, error)
	Answer(ctx context.Context, id string, index int, answer string, responseMs *int64) (*Answer, error)
	Finish(ctx context.Context, id string) (*Summary, error)
	Stop(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*QuizSession, error)
}

var (
	_ ContextRetriever  = (*docindex.Service)(nil)
	_ QuestionGenerator = (*quiz.Generator)(nil)
	_ AnswerGrader      = (*quiz.Grader)(nil)
	_ QuizService       = (*Service)(nil)
)
