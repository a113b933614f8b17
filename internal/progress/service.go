package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Service records learner progress and answers policy queries. It holds no
// state between calls; every operation reads the store afresh.
type Service struct {
	store     DocumentStore
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a progress service over store
func NewService(store DocumentStore) *Service {
	return &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SetPublisher sets the publisher notified after successful writes
func (s *Service) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// SetLogger replaces the service logger
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Sessions returns logged sessions in append order. An empty topic returns all.
func (s *Service) Sessions(ctx context.Context, topic string) ([]SessionRecord, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		return doc.Sessions, nil
	}

	sessions := []SessionRecord{}
	for _, sess := range doc.Sessions {
		if sess.Topic == topic {
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

// Topics returns the sorted set of topics found in sessions and attempts
func (s *Service) Topics(ctx context.Context) ([]string, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, sess := range doc.Sessions {
		seen[sess.Topic] = true
	}
	for _, a := range doc.Attempts {
		seen[a.Topic] = true
	}
	delete(seen, "")

	topics := make([]string, 0, len(seen))
	for t := range seen {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics, nil
}

// Question returns the aggregate for id, or nil when it has never been asked
func (s *Service) Question(ctx context.Context, id string) (*QuestionRecord, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Questions[id], nil
}

func (s *Service) read(ctx context.Context) (*Document, error) {
	doc, err := s.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	return doc, nil
}

func (s *Service) timestamp() string {
	return formatTimestamp(s.now())
}
