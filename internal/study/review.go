package study

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/domain"
	"github.com/lectern-app/lectern/internal/fsrs"
	"github.com/lectern-app/lectern/internal/storage"
)

// ReviewResult is the outcome of a committed review: the card with its
// new scheduling state, the interval the chosen rating produced and the
// previews of all four ratings as they were at submit time.
type ReviewResult struct {
	Card     domain.Card
	Interval time.Duration
	Previews map[fsrs.Rating]fsrs.Outcome
	Session  SessionState
}

// SubmitReview validates the rating, schedules the card and commits the
// new state together with a review-log entry in one transaction. The
// previews are computed from the same instant as the commit, so the
// committed outcome always equals its preview.
func (s *Service) SubmitReview(ctx context.Context, cardID uuid.UUID, rating fsrs.Rating) (ReviewResult, error) {
	if !rating.IsValid() {
		return ReviewResult{}, fmt.Errorf("%w: rating %d", fsrs.ErrInvalidRating, rating)
	}

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return ReviewResult{}, err
	}
	deck, err := s.store.GetDeck(ctx, card.DeckID)
	if err != nil {
		return ReviewResult{}, err
	}

	now := s.now()
	previews, err := fsrs.Preview(s.params, card.FSRS, now)
	if err != nil {
		return ReviewResult{}, err
	}
	outcome := previews[rating]

	entry := domain.ReviewLog{
		ID:            uuid.New(),
		CardID:        card.ID,
		DeckID:        card.DeckID,
		Rating:        rating,
		ReviewedAt:    now.UTC(),
		ScheduledDays: card.FSRS.ScheduledDays,
		ElapsedDays:   outcome.Card.ElapsedDays,
		State:         card.FSRS.State,
	}
	guard := storage.QuotaGuard{
		DayStart:    DayStart(now, s.loc),
		DailyNew:    deck.DailyNewCards,
		DailyReview: deck.DailyReviewCards,
	}
	if err := s.store.CommitReview(ctx, card.ID, outcome.Card, entry, guard); err != nil {
		return ReviewResult{}, err
	}

	s.logger.Debug("review committed",
		zap.String("card_id", card.ID.String()),
		zap.String("rating", rating.String()),
		zap.String("state", outcome.Card.State.String()),
		zap.Duration("interval", outcome.Interval),
		zap.Time("due", outcome.Card.Due))

	card.FSRS = outcome.Card
	session := s.advanceSession(card, rating)

	return ReviewResult{
		Card:     card,
		Interval: outcome.Interval,
		Previews: previews,
		Session:  session,
	}, nil
}

// PreviewIntervals returns what each of the four ratings would do to
// the card right now. It is side-effect free; submitting any of the
// ratings afterwards commits exactly the previewed outcome, provided
// the scheduler sees the same instant.
func (s *Service) PreviewIntervals(ctx context.Context, cardID uuid.UUID) (map[fsrs.Rating]fsrs.Outcome, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return fsrs.Preview(s.params, card.FSRS, s.now())
}

// CardHistory returns the most recent review-log entries for a card.
func (s *Service) CardHistory(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.ReviewLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if _, err := s.store.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	return s.store.CardLogs(ctx, cardID, limit)
}
