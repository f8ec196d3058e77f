// Package domain holds the entities shared by the store, the study service
// and the transport layer: decks, cards, scheduling state and review-log
// entries.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/lectern-app/lectern/internal/fsrs"
)

// CardType distinguishes plain front/back cards from cloze deletions.
type CardType string

const (
	CardTypeBasic CardType = "basic"
	CardTypeCloze CardType = "cloze"
)

// IsValid reports whether t is a known card type.
func (t CardType) IsValid() bool {
	return t == CardTypeBasic || t == CardTypeCloze
}

// Card is a flashcard: user-visible content plus its scheduling state.
// Content edits never touch the FSRS fields; only a committed review does.
type Card struct {
	ID         uuid.UUID  `json:"id"`
	DeckID     uuid.UUID  `json:"deck_id"`
	Front      string     `json:"front"`
	Back       string     `json:"back"`
	CardType   CardType   `json:"card_type"`
	ClozeData  string     `json:"cloze_data,omitempty"`  // mask/answer payload for cloze cards
	SourcePage *int       `json:"source_page,omitempty"` // page of the source PDF highlight, if any
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FSRS       fsrs.Card  `json:"fsrs"`
}

// Deck is a named collection of cards with independent daily quotas.
type Deck struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	DailyNewCards    int       `json:"daily_new_cards"`
	DailyReviewCards int       `json:"daily_review_cards"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReviewLog is one append-only review record. The scheduling fields capture
// the card's state as it was immediately before the update, so the log can
// reconstruct history without the mutable card row.
type ReviewLog struct {
	ID            uuid.UUID   `json:"id"`
	CardID        uuid.UUID   `json:"card_id"`
	DeckID        uuid.UUID   `json:"deck_id"`
	Rating        fsrs.Rating `json:"rating"`
	ReviewedAt    time.Time   `json:"reviewed_at"`
	ScheduledDays int         `json:"scheduled_days"` // pre-review
	ElapsedDays   int         `json:"elapsed_days"`   // computed at review time
	State         fsrs.State  `json:"state"`          // pre-review
}
