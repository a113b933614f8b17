package progress

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// Top-level keys of the persisted document
const (
	keySessions  = "sessions"
	keyAttempts  = "attempts"
	keyQuestions = "questions"
)

// timestampLayout renders UTC instants with microsecond precision and a Z suffix
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Document is the whole persisted progress state. Every operation reads
// and writes it as a unit.
type Document struct {
	Sessions  []SessionRecord            `json:"sessions"`
	Attempts  []AttemptRecord            `json:"attempts"`
	Questions map[string]*QuestionRecord `json:"questions"`

	// Extra holds unknown top-level keys written by other producers so
	// they survive a rewrite.
	Extra map[string]json.RawMessage `json:"-"`
}

// AttemptRecord is one graded answer. It is never modified once appended.
type AttemptRecord struct {
	Timestamp     string `json:"timestamp"`
	Topic         string `json:"topic"`
	QuestionID    string `json:"question_id"`
	Prompt        string `json:"prompt"`
	StudentAnswer string `json:"student_answer"`
	Correct       bool   `json:"correct"`
	ResponseMs    *int64 `json:"response_ms,omitempty"`
}

// QuestionRecord aggregates every attempt that shares a question id
type QuestionRecord struct {
	Prompt         string   `json:"prompt"`
	TimesAsked     int      `json:"times_asked"`
	LastAnswer     string   `json:"last_answer"`
	LastCorrect    bool     `json:"last_correct"`
	LastTimestamp  string   `json:"last_timestamp"`
	Topics         []string `json:"topics"`
	LastResponseMs *int64   `json:"last_response_ms"`
	AvgResponseMs  *int64   `json:"avg_response_ms"`

	// TimedCount and TotalResponseMs cover only attempts that carried a
	// response time; AvgResponseMs is derived from them.
	TimedCount      int   `json:"timed_count"`
	TotalResponseMs int64 `json:"total_response_ms"`
}

// SessionRecord summarizes one completed quiz run
type SessionRecord struct {
	Timestamp string         `json:"timestamp"`
	Topic     string         `json:"topic"`
	Score     float64        `json:"score"`
	Details   map[string]any `json:"details"`
}

// SessionDetails is the metadata recorded alongside a session score
type SessionDetails struct {
	Raw          string
	AvoidMode    AvoidMode
	Difficulty   Difficulty
	FeedbackMode string
	ShowMissed   *bool
}

// Map renders the details in their persisted form
func (d SessionDetails) Map() map[string]any {
	m := map[string]any{
		"raw":           d.Raw,
		"avoid_mode":    string(d.AvoidMode),
		"difficulty":    string(d.Difficulty),
		"feedback_mode": d.FeedbackMode,
	}
	if d.ShowMissed != nil {
		m["show_missed"] = *d.ShowMissed
	}
	return m
}

// NewDocument returns the canonical empty document
func NewDocument() *Document {
	return &Document{
		Sessions:  []SessionRecord{},
		Attempts:  []AttemptRecord{},
		Questions: map[string]*QuestionRecord{},
	}
}

// normalize replaces nil containers so they encode as [] and {} rather than null
func (d *Document) normalize() {
	if d.Sessions == nil {
		d.Sessions = []SessionRecord{}
	}
	if d.Attempts == nil {
		d.Attempts = []AttemptRecord{}
	}
	if d.Questions == nil {
		d.Questions = map[string]*QuestionRecord{}
	}
	for i := range d.Sessions {
		if d.Sessions[i].Details == nil {
			d.Sessions[i].Details = map[string]any{}
		}
	}
	for _, q := range d.Questions {
		if q != nil && q.Topics == nil {
			q.Topics = []string{}
		}
	}
}

// EncodeDocument renders the document as indented UTF-8 JSON
func EncodeDocument(doc *Document) ([]byte, error) {
	doc.normalize()

	out := make(map[string]any, 3+len(doc.Extra))
	for k, v := range doc.Extra {
		out[k] = v
	}
	out[keySessions] = doc.Sessions
	out[keyAttempts] = doc.Attempts
	out[keyQuestions] = doc.Questions

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newQuestionRecord(prompt string) *QuestionRecord {
	return &QuestionRecord{Prompt: prompt, Topics: []string{}}
}

// recordAttempt folds one attempt into the aggregate
func (q *QuestionRecord) recordAttempt(a AttemptRecord) {
	q.Prompt = a.Prompt
	q.TimesAsked++
	q.LastAnswer = a.StudentAnswer
	q.LastCorrect = a.Correct
	q.LastTimestamp = a.Timestamp
	q.Topics = mergeTopic(q.Topics, a.Topic)

	if a.ResponseMs == nil {
		return
	}
	ms := *a.ResponseMs
	q.LastResponseMs = &ms
	q.TimedCount++
	q.TotalResponseMs += ms
	avg := roundedMean(q.TotalResponseMs, q.TimedCount)
	q.AvgResponseMs = &avg
}

// HasTopic reports whether the question was ever asked under topic
func (q *QuestionRecord) HasTopic(topic string) bool {
	i := sort.SearchStrings(q.Topics, topic)
	return i < len(q.Topics) && q.Topics[i] == topic
}

// mergeTopic inserts topic into a sorted, deduplicated slice
func mergeTopic(topics []string, topic string) []string {
	i := sort.SearchStrings(topics, topic)
	if i < len(topics) && topics[i] == topic {
		return topics
	}
	topics = append(topics, "")
	copy(topics[i+1:], topics[i:])
	topics[i] = topic
	return topics
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
