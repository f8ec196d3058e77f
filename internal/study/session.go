package study

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/domain"
	"github.com/lectern-app/lectern/internal/fsrs"
)

// session tracks one in-memory study run. Nothing here is persisted;
// the durable truth lives in the store and the review log.
type session struct {
	deckID    uuid.UUID
	queue     []uuid.UUID
	pos       int
	startedAt time.Time
	ratings   map[fsrs.Rating]int
	reviewed  int
}

// SessionState is a snapshot of the active session for callers.
type SessionState struct {
	Active    bool                `json:"active"`
	DeckID    uuid.UUID           `json:"deck_id,omitempty"`
	Remaining int                 `json:"remaining"`
	Reviewed  int                 `json:"reviewed"`
	Ratings   map[fsrs.Rating]int `json:"ratings,omitempty"`
	StartedAt time.Time           `json:"started_at,omitempty"`
}

// StartSession begins a session over the deck's current queue. Starting
// a session on a different deck, or restarting on the same deck, resets
// all counters.
func (s *Service) StartSession(ctx context.Context, deckID uuid.UUID, limit int) (Queue, SessionState, error) {
	queue, err := s.GetDueCards(ctx, deckID, limit)
	if err != nil {
		return Queue{}, SessionState{}, err
	}

	ids := make([]uuid.UUID, len(queue.Cards))
	for i, card := range queue.Cards {
		ids[i] = card.ID
	}

	s.mu.Lock()
	if s.session != nil && s.session.deckID != deckID {
		s.logger.Debug("deck switch, session counters reset",
			zap.String("previous_deck", s.session.deckID.String()),
			zap.String("deck_id", deckID.String()))
	}
	s.session = &session{
		deckID:    deckID,
		queue:     ids,
		startedAt: s.now(),
		ratings:   make(map[fsrs.Rating]int),
	}
	state := s.sessionStateLocked()
	s.mu.Unlock()

	return queue, state, nil
}

// SessionStatus reports the active session, if any.
func (s *Service) SessionStatus() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionStateLocked()
}

// EndSession drops the active session and returns its final counters.
func (s *Service) EndSession() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.sessionStateLocked()
	s.session = nil
	return state
}

// advanceSession updates session counters after a committed review. A
// review of a card from another deck implicitly ends the session, since
// the user has moved on. Cards rated Again (or still due within the
// session) re-enter the back of the queue.
func (s *Service) advanceSession(card domain.Card, rating fsrs.Rating) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess == nil {
		return s.sessionStateLocked()
	}
	if sess.deckID != card.DeckID {
		s.logger.Debug("deck switch, session ended",
			zap.String("session_deck", sess.deckID.String()),
			zap.String("deck_id", card.DeckID.String()))
		s.session = nil
		return s.sessionStateLocked()
	}

	sess.reviewed++
	sess.ratings[rating]++

	if sess.pos < len(sess.queue) && sess.queue[sess.pos] == card.ID {
		sess.pos++
	}
	// Learning and relearning steps come back within the same sitting.
	if card.FSRS.Due.Before(NextDayStart(s.now(), s.loc)) &&
		(card.FSRS.State == fsrs.StateLearning || card.FSRS.State == fsrs.StateRelearning) {
		sess.queue = append(sess.queue, card.ID)
	}

	return s.sessionStateLocked()
}

func (s *Service) sessionStateLocked() SessionState {
	if s.session == nil {
		return SessionState{}
	}
	ratings := make(map[fsrs.Rating]int, len(s.session.ratings))
	for k, v := range s.session.ratings {
		ratings[k] = v
	}
	return SessionState{
		Active:    true,
		DeckID:    s.session.deckID,
		Remaining: len(s.session.queue) - s.session.pos,
		Reviewed:  s.session.reviewed,
		Ratings:   ratings,
		StartedAt: s.session.startedAt,
	}
}
