// Package main provides the lectern MCP server: the scheduling engine
// of a desktop PDF study tool, exposed as tools over stdio.
package main

import (
	"time"

	"github.com/lectern-app/lectern/internal/domain"
	"github.com/lectern-app/lectern/internal/fsrs"
	"github.com/lectern-app/lectern/internal/study"
)

// CardResponse is the wire shape of a card. Scheduling state is
// flattened and retrievability is computed at response time; it is
// never stored as ground truth.
type CardResponse struct {
	ID             string    `json:"id"`
	DeckID         string    `json:"deck_id"`
	Front          string    `json:"front"`
	Back           string    `json:"back"`
	CardType       string    `json:"card_type"`
	ClozeData      string    `json:"cloze_data,omitempty"`
	SourcePage     *int      `json:"source_page,omitempty"`
	State          string    `json:"state"`
	Due            time.Time `json:"due"`
	Stability      float64   `json:"stability"`
	Difficulty     float64   `json:"difficulty"`
	Retrievability float64   `json:"retrievability"`
	Reps           int       `json:"reps"`
	Lapses         int       `json:"lapses"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newCardResponse(card domain.Card, now time.Time) CardResponse {
	return CardResponse{
		ID:             card.ID.String(),
		DeckID:         card.DeckID.String(),
		Front:          card.Front,
		Back:           card.Back,
		CardType:       string(card.CardType),
		ClozeData:      card.ClozeData,
		SourcePage:     card.SourcePage,
		State:          card.FSRS.State.String(),
		Due:            card.FSRS.Due,
		Stability:      card.FSRS.Stability,
		Difficulty:     card.FSRS.Difficulty,
		Retrievability: card.FSRS.Retrievability(now),
		Reps:           card.FSRS.Reps,
		Lapses:         card.FSRS.Lapses,
		CreatedAt:      card.CreatedAt,
		UpdatedAt:      card.UpdatedAt,
	}
}

func newCardResponses(cards []domain.Card, now time.Time) []CardResponse {
	out := make([]CardResponse, len(cards))
	for i, card := range cards {
		out[i] = newCardResponse(card, now)
	}
	return out
}

// DeckResponse is a deck with its current counts.
type DeckResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	DailyNewCards    int       `json:"daily_new_cards"`
	DailyReviewCards int       `json:"daily_review_cards"`
	TotalCards       int       `json:"total_cards"`
	NewCards         int       `json:"new_cards"`
	DueCards         int       `json:"due_cards"`
	CreatedAt        time.Time `json:"created_at"`
}

func newDeckResponse(s study.DeckSummary) DeckResponse {
	return DeckResponse{
		ID:               s.Deck.ID.String(),
		Name:             s.Deck.Name,
		DailyNewCards:    s.Deck.DailyNewCards,
		DailyReviewCards: s.Deck.DailyReviewCards,
		TotalCards:       s.Counts.Total,
		NewCards:         s.Counts.New,
		DueCards:         s.Counts.Due,
		CreatedAt:        s.Deck.CreatedAt,
	}
}

// PreviewResponse shows what one rating would do to a card.
type PreviewResponse struct {
	Rating       string    `json:"rating"`
	State        string    `json:"state"`
	Due          time.Time `json:"due"`
	IntervalDays float64   `json:"interval_days"`
	Interval     string    `json:"interval"`
}

func newPreviewResponses(previews map[fsrs.Rating]fsrs.Outcome) []PreviewResponse {
	out := make([]PreviewResponse, 0, len(previews))
	for _, rating := range fsrs.AllRatings {
		outcome, ok := previews[rating]
		if !ok {
			continue
		}
		out = append(out, PreviewResponse{
			Rating:       rating.String(),
			State:        outcome.Card.State.String(),
			Due:          outcome.Card.Due,
			IntervalDays: outcome.Interval.Hours() / 24,
			Interval:     outcome.Interval.String(),
		})
	}
	return out
}

// ReviewResponse is the result of a committed review.
type ReviewResponse struct {
	Card     CardResponse       `json:"card"`
	Interval string             `json:"interval"`
	Previews []PreviewResponse  `json:"previews"`
	Session  study.SessionState `json:"session"`
}

// QueueResponse is the study queue for a deck.
type QueueResponse struct {
	Cards           []CardResponse `json:"cards"`
	NewRemaining    int            `json:"new_remaining"`
	ReviewRemaining int            `json:"review_remaining"`
}

// ErrorResponse carries a declined operation back to the caller with a
// stable reason code.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
