package coach

import "errors"

var (
	ErrTopicRequired       = errors.New("topic is required")
	ErrNoContext           = errors.New("no relevant context retrieved for topic")
	ErrNoQuestions         = errors.New("quiz generation returned no questions")
	ErrSessionNotFound     = errors.New("quiz session not found")
	ErrSessionNotActive    = errors.New("quiz session is not active")
	ErrQuestionOutOfRange  = errors.New("question index out of range")
	ErrAlreadyAnswered     = errors.New("question already answered")
	ErrInvalidFeedbackMode = errors.New("invalid feedback mode")
)
