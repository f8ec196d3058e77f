// Package study implements the scheduling engine's service layer: the
// due-card selector, the review session coordinator and the review
// statistics aggregator, on top of the store and the FSRS scheduler.
package study

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/domain"
	"github.com/lectern-app/lectern/internal/fsrs"
	"github.com/lectern-app/lectern/internal/storage"
)

// Store is the persistence surface the service needs. *storage.DB
// satisfies it; tests substitute their own.
type Store interface {
	CreateDeck(ctx context.Context, deck domain.Deck) error
	GetDeck(ctx context.Context, id uuid.UUID) (domain.Deck, error)
	GetDeckByName(ctx context.Context, name string) (domain.Deck, error)
	ListDecks(ctx context.Context) ([]domain.Deck, error)
	UpdateDeckQuotas(ctx context.Context, id uuid.UUID, dailyNew, dailyReview int) error

	CreateCard(ctx context.Context, card domain.Card) error
	GetCard(ctx context.Context, id uuid.UUID) (domain.Card, error)
	UpdateCardContent(ctx context.Context, card domain.Card) error
	DeleteCard(ctx context.Context, id uuid.UUID) error
	ListCards(ctx context.Context, deckID uuid.UUID) ([]domain.Card, error)
	CountCards(ctx context.Context, deckID uuid.UUID, now time.Time) (storage.DeckCounts, error)

	LoadQueueSnapshot(ctx context.Context, deckID uuid.UUID, now, dayStart time.Time) (storage.QueueSnapshot, error)
	CommitReview(ctx context.Context, cardID uuid.UUID, updated fsrs.Card, entry domain.ReviewLog, guard storage.QuotaGuard) error
	ReviewTimes(ctx context.Context, deckID *uuid.UUID, from, to time.Time) ([]time.Time, error)
	CardLogs(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.ReviewLog, error)
}

// Service coordinates decks, cards, reviews and statistics. Scheduling
// math lives in internal/fsrs; Service owns quotas, sessions and the
// day boundary.
type Service struct {
	store  Store
	params fsrs.Parameters
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	session *session
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. loc defines the day boundary for quotas and
// the heatmap; a nil loc means UTC.
func New(store Store, params fsrs.Parameters, loc *time.Location, logger *zap.Logger, opts ...Option) (*Service, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler parameters: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		params: params,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateDeck creates a deck with the given daily caps. Caps of zero or
// below fall back to the provided defaults.
func (s *Service) CreateDeck(ctx context.Context, name string, dailyNew, dailyReview int) (domain.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Deck{}, fmt.Errorf("%w: deck name is required", domain.ErrInvalidInput)
	}
	if dailyNew < 0 || dailyReview < 0 {
		return domain.Deck{}, fmt.Errorf("%w: daily caps must not be negative", domain.ErrInvalidInput)
	}

	deck := domain.Deck{
		ID:               uuid.New(),
		Name:             name,
		DailyNewCards:    dailyNew,
		DailyReviewCards: dailyReview,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreateDeck(ctx, deck); err != nil {
		return domain.Deck{}, err
	}

	s.logger.Info("deck created",
		zap.String("deck_id", deck.ID.String()),
		zap.String("name", deck.Name),
		zap.Int("daily_new", deck.DailyNewCards),
		zap.Int("daily_review", deck.DailyReviewCards))
	return deck, nil
}

// DeckSummary is a deck with its current card counts.
type DeckSummary struct {
	Deck   domain.Deck
	Counts storage.DeckCounts
}

// ListDecks returns every deck with total, new and due card counts.
func (s *Service) ListDecks(ctx context.Context) ([]DeckSummary, error) {
	decks, err := s.store.ListDecks(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	summaries := make([]DeckSummary, 0, len(decks))
	for _, deck := range decks {
		counts, err := s.store.CountCards(ctx, deck.ID, now)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, DeckSummary{Deck: deck, Counts: counts})
	}
	return summaries, nil
}

// CreateCardInput carries the content of a new card.
type CreateCardInput struct {
	DeckID     uuid.UUID
	Front      string
	Back       string
	CardType   domain.CardType
	ClozeData  string
	SourcePage *int
}

// CreateCard creates a card in the New state. Scheduling fields are
// initialized here; callers never set them.
func (s *Service) CreateCard(ctx context.Context, in CreateCardInput) (domain.Card, error) {
	if strings.TrimSpace(in.Front) == "" || strings.TrimSpace(in.Back) == "" {
		return domain.Card{}, fmt.Errorf("%w: front and back are required", domain.ErrInvalidInput)
	}
	if in.CardType == "" {
		in.CardType = domain.CardTypeBasic
	}
	if !in.CardType.IsValid() {
		return domain.Card{}, fmt.Errorf("%w: unknown card type %q", domain.ErrInvalidInput, in.CardType)
	}
	if _, err := s.store.GetDeck(ctx, in.DeckID); err != nil {
		return domain.Card{}, err
	}

	now := s.now().UTC()
	card := domain.Card{
		ID:         uuid.New(),
		DeckID:     in.DeckID,
		Front:      in.Front,
		Back:       in.Back,
		CardType:   in.CardType,
		ClozeData:  in.ClozeData,
		SourcePage: in.SourcePage,
		CreatedAt:  now,
		UpdatedAt:  now,
		FSRS:       fsrs.NewCard(now),
	}
	if err := s.store.CreateCard(ctx, card); err != nil {
		return domain.Card{}, err
	}

	s.logger.Debug("card created",
		zap.String("card_id", card.ID.String()),
		zap.String("deck_id", card.DeckID.String()),
		zap.String("card_type", string(card.CardType)))
	return card, nil
}

// UpdateCardInput carries a content edit. Nil fields are left as-is.
type UpdateCardInput struct {
	CardID     uuid.UUID
	Front      *string
	Back       *string
	ClozeData  *string
	SourcePage *int
}

// UpdateCard edits card content. Scheduling state is never touched by
// an edit.
func (s *Service) UpdateCard(ctx context.Context, in UpdateCardInput) (domain.Card, error) {
	card, err := s.store.GetCard(ctx, in.CardID)
	if err != nil {
		return domain.Card{}, err
	}

	if in.Front != nil {
		if strings.TrimSpace(*in.Front) == "" {
			return domain.Card{}, fmt.Errorf("%w: front must not be empty", domain.ErrInvalidInput)
		}
		card.Front = *in.Front
	}
	if in.Back != nil {
		if strings.TrimSpace(*in.Back) == "" {
			return domain.Card{}, fmt.Errorf("%w: back must not be empty", domain.ErrInvalidInput)
		}
		card.Back = *in.Back
	}
	if in.ClozeData != nil {
		card.ClozeData = *in.ClozeData
	}
	if in.SourcePage != nil {
		card.SourcePage = in.SourcePage
	}
	card.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateCardContent(ctx, card); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// DeleteCard removes a card. Its review history stays in the log.
func (s *Service) DeleteCard(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return err
	}
	s.logger.Debug("card deleted", zap.String("card_id", id.String()))
	return nil
}

// ListCards returns all cards of a deck.
func (s *Service) ListCards(ctx context.Context, deckID uuid.UUID) ([]domain.Card, error) {
	if _, err := s.store.GetDeck(ctx, deckID); err != nil {
		return nil, err
	}
	return s.store.ListCards(ctx, deckID)
}
