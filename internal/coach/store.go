package coach

import (
	"errors"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/studycoach/internal/storage/local"
)

const collectionQuizzes = "quizzes"

// Store handles quiz session persistence
type Store struct {
	store *local.Store
}

// NewStore creates a quiz session store under basePath
func NewStore(basePath string) (*Store, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &Store{store: store}, nil
}

// Save persists a session
func (s *Store) Save(session *QuizSession) error {
	return s.store.Save(collectionQuizzes, session.ID, session)
}

// Get retrieves a session by ID
func (s *Store) Get(id string) (*QuizSession, error) {
	var session QuizSession
	if err := s.store.Load(collectionQuizzes, id, &session); err != nil {
		if errors.Is(err, local.ErrNotFound) || errors.Is(err, local.ErrInvalidID) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Delete removes a session
func (s *Store) Delete(id string) error {
	if err := s.store.Delete(collectionQuizzes, id); err != nil {
		if errors.Is(err, local.ErrNotFound) || errors.Is(err, local.ErrInvalidID) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// ListActive returns sessions still being answered, oldest first.
// Unreadable session files are skipped.
func (s *Store) ListActive() ([]*QuizSession, error) {
	ids, err := s.store.List(collectionQuizzes)
	if err != nil {
		return nil, err
	}

	active := []*QuizSession{}
	for _, id := range ids {
		if session, err := s.Get(id); err == nil && session.Status == StatusActive {
			active = append(active, session)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}
