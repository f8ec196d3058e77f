package study

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/domain"
)

// Queue is the study queue for one deck at one instant.
type Queue struct {
	Cards []domain.Card

	// Remaining budgets after this queue, for UI display.
	NewRemaining    int
	ReviewRemaining int
}

// GetDueCards builds the study queue for a deck: due non-new cards
// first (ordered by due time), then unseen new cards (oldest first),
// both capped by the deck's daily quotas. Cards already rated today are
// re-presentations and never count against a cap. limit <= 0 means no
// overall limit.
//
// All reads happen in one store snapshot, so concurrent commits cannot
// produce a queue that mixes two quota states.
func (s *Service) GetDueCards(ctx context.Context, deckID uuid.UUID, limit int) (Queue, error) {
	deck, err := s.store.GetDeck(ctx, deckID)
	if err != nil {
		return Queue{}, err
	}

	now := s.now()
	snap, err := s.store.LoadQueueSnapshot(ctx, deckID, now, DayStart(now, s.loc))
	if err != nil {
		return Queue{}, err
	}

	reviewBudget := max(0, deck.DailyReviewCards-snap.ReviewToday)
	newBudget := max(0, deck.DailyNewCards-snap.NewToday)

	var cards []domain.Card
	for _, card := range snap.DueReview {
		if _, seen := snap.SeenToday[card.ID]; seen {
			cards = append(cards, card)
			continue
		}
		if reviewBudget == 0 {
			continue
		}
		reviewBudget--
		cards = append(cards, card)
	}
	for _, card := range snap.DueNew {
		if newBudget == 0 {
			break
		}
		newBudget--
		cards = append(cards, card)
	}

	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}

	s.logger.Debug("queue built",
		zap.String("deck_id", deckID.String()),
		zap.Int("cards", len(cards)),
		zap.Int("new_remaining", newBudget),
		zap.Int("review_remaining", reviewBudget))

	return Queue{Cards: cards, NewRemaining: newBudget, ReviewRemaining: reviewBudget}, nil
}
