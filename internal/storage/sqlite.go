// Package storage persists decks, flashcards, scheduling state and the
// append-only review log in a single SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lectern-app/lectern/internal/domain"
	"github.com/lectern-app/lectern/internal/fsrs"
)

// DB wraps the SQLite handle. All exported methods are safe for
// concurrent use; the connection pool is capped at one connection so
// every method observes a consistent snapshot.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an in-memory database in tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer. Capping the pool avoids
	// SQLITE_BUSY under concurrent tool calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database handle.
func (s *DB) Close() error {
	return s.db.Close()
}

// CreateDeck inserts a new deck. Returns domain.ErrDeckExists when the
// name is already taken.
func (s *DB) CreateDeck(ctx context.Context, deck domain.Deck) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decks (id, name, daily_new_cards, daily_review_cards, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		deck.ID.String(), deck.Name, deck.DailyNewCards, deck.DailyReviewCards, deck.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDeckExists
		}
		return fmt.Errorf("failed to insert deck: %w", err)
	}
	return nil
}

// GetDeck loads a deck by id.
func (s *DB) GetDeck(ctx context.Context, id uuid.UUID) (domain.Deck, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, daily_new_cards, daily_review_cards, created_at
		 FROM decks WHERE id = ?`, id.String())
	return scanDeck(row)
}

// GetDeckByName loads a deck by its unique name.
func (s *DB) GetDeckByName(ctx context.Context, name string) (domain.Deck, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, daily_new_cards, daily_review_cards, created_at
		 FROM decks WHERE name = ?`, name)
	return scanDeck(row)
}

// ListDecks returns all decks ordered by creation time.
func (s *DB) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, daily_new_cards, daily_review_cards, created_at
		 FROM decks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, err
		}
		decks = append(decks, deck)
	}
	return decks, rows.Err()
}

// UpdateDeckQuotas sets the per-day caps for a deck.
func (s *DB) UpdateDeckQuotas(ctx context.Context, id uuid.UUID, dailyNew, dailyReview int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE decks SET daily_new_cards = ?, daily_review_cards = ? WHERE id = ?`,
		dailyNew, dailyReview, id.String())
	if err != nil {
		return fmt.Errorf("failed to update deck quotas: %w", err)
	}
	return requireAffected(res, domain.ErrDeckNotFound)
}

// CreateCard inserts the card together with its initial scheduling row
// in one transaction so a card can never exist without FSRS state.
func (s *DB) CreateCard(ctx context.Context, card domain.Card) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO flashcards (id, deck_id, front, back, card_type, cloze_data, source_page, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID.String(), card.DeckID.String(), card.Front, card.Back,
		string(card.CardType), card.ClozeData, card.SourcePage,
		card.CreatedAt.UTC(), card.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}

	if err := upsertFSRS(ctx, tx, card.ID, card.FSRS); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit card insert: %w", err)
	}
	return nil
}

// GetCard loads a card with its scheduling state.
func (s *DB) GetCard(ctx context.Context, id uuid.UUID) (domain.Card, error) {
	row := s.db.QueryRowContext(ctx, selectCardSQL+` WHERE c.id = ?`, id.String())
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return card, err
}

// UpdateCardContent changes the editable fields of a card without
// touching its scheduling state.
func (s *DB) UpdateCardContent(ctx context.Context, card domain.Card) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE flashcards
		 SET front = ?, back = ?, card_type = ?, cloze_data = ?, source_page = ?, updated_at = ?
		 WHERE id = ?`,
		card.Front, card.Back, string(card.CardType), card.ClozeData,
		card.SourcePage, card.UpdatedAt.UTC(), card.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return requireAffected(res, domain.ErrCardNotFound)
}

// DeleteCard removes a card and its scheduling row. Review-log rows are
// kept so historical statistics survive the deletion.
func (s *DB) DeleteCard(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM flashcard_fsrs WHERE flashcard_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete scheduling state: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM flashcards WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if err := requireAffected(res, domain.ErrCardNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit card delete: %w", err)
	}
	return nil
}

// ListCards returns every card of a deck, newest first.
func (s *DB) ListCards(ctx context.Context, deckID uuid.UUID) ([]domain.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCardSQL+` WHERE c.deck_id = ? ORDER BY c.created_at DESC, c.id`, deckID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// QueueSnapshot is one consistent read of everything the due-card
// selector needs: the due review cards, the available new cards and the
// number of distinct cards already introduced or reviewed since
// dayStart.
type QueueSnapshot struct {
	DueReview   []domain.Card
	DueNew      []domain.Card
	NewToday    int
	ReviewToday int

	// SeenToday holds every card rated at least once since dayStart.
	// Cards in this set are re-presentations and bypass the daily caps.
	SeenToday map[uuid.UUID]struct{}
}

// LoadQueueSnapshot reads due cards and today's distinct-card counts
// for one deck inside a single transaction.
func (s *DB) LoadQueueSnapshot(ctx context.Context, deckID uuid.UUID, now, dayStart time.Time) (QueueSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QueueSnapshot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var snap QueueSnapshot

	rows, err := tx.QueryContext(ctx,
		selectCardSQL+` WHERE c.deck_id = ? AND f.state != ? AND f.due <= ?
		 ORDER BY f.due, c.id`,
		deckID.String(), int(fsrs.StateNew), now.UTC())
	if err != nil {
		return QueueSnapshot{}, fmt.Errorf("failed to query due cards: %w", err)
	}
	snap.DueReview, err = collectCards(rows)
	if err != nil {
		return QueueSnapshot{}, err
	}

	rows, err = tx.QueryContext(ctx,
		selectCardSQL+` WHERE c.deck_id = ? AND f.state = ?
		 ORDER BY c.created_at, c.id`,
		deckID.String(), int(fsrs.StateNew))
	if err != nil {
		return QueueSnapshot{}, fmt.Errorf("failed to query new cards: %w", err)
	}
	snap.DueNew, err = collectCards(rows)
	if err != nil {
		return QueueSnapshot{}, err
	}

	snap.NewToday, snap.ReviewToday, err = dailyCounts(ctx, tx, deckID, dayStart)
	if err != nil {
		return QueueSnapshot{}, err
	}

	snap.SeenToday, err = seenSince(ctx, tx, deckID, dayStart)
	if err != nil {
		return QueueSnapshot{}, err
	}

	return snap, tx.Commit()
}

// QuotaGuard carries the deck caps CommitReview enforces for fresh
// presentations. A card that already has a log row since DayStart is
// not fresh and always commits.
type QuotaGuard struct {
	DayStart    time.Time
	DailyNew    int
	DailyReview int
}

// CommitReview writes the post-review scheduling state and appends the
// review-log entry in one transaction. The log entry records the card's
// pre-review state. When the card is a fresh presentation and the
// matching daily cap is already exhausted, nothing is written and
// domain.ErrQuotaExceeded is returned.
func (s *DB) CommitReview(ctx context.Context, cardID uuid.UUID, updated fsrs.Card, entry domain.ReviewLog, guard QuotaGuard) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fresh, err := isFreshToday(ctx, tx, cardID, guard.DayStart)
	if err != nil {
		return err
	}
	if fresh {
		newToday, reviewToday, err := dailyCounts(ctx, tx, entry.DeckID, guard.DayStart)
		if err != nil {
			return err
		}
		if entry.State == fsrs.StateNew {
			if newToday >= guard.DailyNew {
				return domain.ErrQuotaExceeded
			}
		} else if reviewToday >= guard.DailyReview {
			return domain.ErrQuotaExceeded
		}
	}

	if err := upsertFSRS(ctx, tx, cardID, updated); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO flashcard_reviews (id, flashcard_id, deck_id, rating, reviewed_at, scheduled_days, elapsed_days, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), cardID.String(), entry.DeckID.String(),
		int(entry.Rating), entry.ReviewedAt.UTC(), entry.ScheduledDays,
		entry.ElapsedDays, int(entry.State))
	if err != nil {
		return fmt.Errorf("failed to insert review log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

// ReviewTimes returns the timestamps of all review-log rows in
// [from, to), optionally restricted to one deck. Aggregation into
// calendar days happens in the caller, which knows the timezone.
func (s *DB) ReviewTimes(ctx context.Context, deckID *uuid.UUID, from, to time.Time) ([]time.Time, error) {
	query := `SELECT reviewed_at FROM flashcard_reviews WHERE reviewed_at >= ? AND reviewed_at < ?`
	args := []any{from.UTC(), to.UTC()}
	if deckID != nil {
		query += ` AND deck_id = ?`
		args = append(args, deckID.String())
	}
	query += ` ORDER BY reviewed_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan review time: %w", err)
		}
		times = append(times, t.UTC())
	}
	return times, rows.Err()
}

// CardLogs returns the review history of one card, newest first.
func (s *DB) CardLogs(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.ReviewLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, flashcard_id, deck_id, rating, reviewed_at, scheduled_days, elapsed_days, state
		 FROM flashcard_reviews WHERE flashcard_id = ?
		 ORDER BY reviewed_at DESC LIMIT ?`,
		cardID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query review logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			entry              domain.ReviewLog
			id, cardID, deckID string
			rating, state      int
		)
		err := rows.Scan(&id, &cardID, &deckID, &rating, &entry.ReviewedAt,
			&entry.ScheduledDays, &entry.ElapsedDays, &state)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review log: %w", err)
		}
		if entry.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse log id: %w", err)
		}
		if entry.CardID, err = uuid.Parse(cardID); err != nil {
			return nil, fmt.Errorf("failed to parse log card id: %w", err)
		}
		if entry.DeckID, err = uuid.Parse(deckID); err != nil {
			return nil, fmt.Errorf("failed to parse log deck id: %w", err)
		}
		entry.Rating = fsrs.Rating(rating)
		entry.State = fsrs.State(state)
		entry.ReviewedAt = entry.ReviewedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// DeckCounts summarizes a deck for listings.
type DeckCounts struct {
	Total int
	New   int
	Due   int
}

// CountCards returns card totals for one deck. Due counts cards past
// their due time that are no longer new.
func (s *DB) CountCards(ctx context.Context, deckID uuid.UUID, now time.Time) (DeckCounts, error) {
	var counts DeckCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN f.state = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN f.state != ? AND f.due <= ? THEN 1 ELSE 0 END), 0)
		 FROM flashcards c
		 JOIN flashcard_fsrs f ON f.flashcard_id = c.id
		 WHERE c.deck_id = ?`,
		int(fsrs.StateNew), int(fsrs.StateNew), now.UTC(), deckID.String()).
		Scan(&counts.Total, &counts.New, &counts.Due)
	if err != nil {
		return DeckCounts{}, fmt.Errorf("failed to count cards: %w", err)
	}
	return counts, nil
}

const selectCardSQL = `
	SELECT c.id, c.deck_id, c.front, c.back, c.card_type, c.cloze_data, c.source_page,
	       c.created_at, c.updated_at,
	       f.state, f.step, f.stability, f.difficulty, f.due, f.last_review,
	       f.reps, f.lapses, f.scheduled_days, f.elapsed_days
	FROM flashcards c
	JOIN flashcard_fsrs f ON f.flashcard_id = c.id`

func upsertFSRS(ctx context.Context, tx *sql.Tx, cardID uuid.UUID, state fsrs.Card) error {
	var lastReview any
	if state.LastReview != nil {
		lastReview = state.LastReview.UTC()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO flashcard_fsrs (flashcard_id, state, step, stability, difficulty, due, last_review, reps, lapses, scheduled_days, elapsed_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (flashcard_id) DO UPDATE SET
		   state = excluded.state, step = excluded.step,
		   stability = excluded.stability, difficulty = excluded.difficulty,
		   due = excluded.due, last_review = excluded.last_review,
		   reps = excluded.reps, lapses = excluded.lapses,
		   scheduled_days = excluded.scheduled_days, elapsed_days = excluded.elapsed_days`,
		cardID.String(), int(state.State), state.Step, state.Stability, state.Difficulty,
		state.Due.UTC(), lastReview, state.Reps, state.Lapses,
		state.ScheduledDays, state.ElapsedDays)
	if err != nil {
		return fmt.Errorf("failed to write scheduling state: %w", err)
	}
	return nil
}

// dailyCounts returns how many distinct cards were introduced (first
// rated while new) and how many distinct previously-seen cards were
// reviewed since dayStart. Repeat ratings of the same card, such as
// learning steps within a session, never inflate either count, and a
// card introduced today does not also count against the review cap.
func dailyCounts(ctx context.Context, tx *sql.Tx, deckID uuid.UUID, dayStart time.Time) (newToday, reviewToday int, err error) {
	start := dayStart.UTC()
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT flashcard_id) FROM flashcard_reviews
		 WHERE deck_id = ? AND reviewed_at >= ? AND state = ?`,
		deckID.String(), start, int(fsrs.StateNew)).Scan(&newToday)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count new cards: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT flashcard_id) FROM flashcard_reviews
		 WHERE deck_id = ? AND reviewed_at >= ? AND state != ?
		   AND flashcard_id NOT IN (
		     SELECT flashcard_id FROM flashcard_reviews
		     WHERE deck_id = ? AND reviewed_at >= ? AND state = ?)`,
		deckID.String(), start, int(fsrs.StateNew),
		deckID.String(), start, int(fsrs.StateNew)).Scan(&reviewToday)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count reviewed cards: %w", err)
	}
	return newToday, reviewToday, nil
}

func seenSince(ctx context.Context, tx *sql.Tx, deckID uuid.UUID, dayStart time.Time) (map[uuid.UUID]struct{}, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT flashcard_id FROM flashcard_reviews
		 WHERE deck_id = ? AND reviewed_at >= ?`,
		deckID.String(), dayStart.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query cards seen today: %w", err)
	}
	defer rows.Close()

	seen := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan seen card id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse seen card id: %w", err)
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}

func isFreshToday(ctx context.Context, tx *sql.Tx, cardID uuid.UUID, dayStart time.Time) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flashcard_reviews WHERE flashcard_id = ? AND reviewed_at >= ?`,
		cardID.String(), dayStart.UTC()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check prior reviews: %w", err)
	}
	return n == 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeck(row rowScanner) (domain.Deck, error) {
	var (
		deck domain.Deck
		id   string
	)
	err := row.Scan(&id, &deck.Name, &deck.DailyNewCards, &deck.DailyReviewCards, &deck.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Deck{}, domain.ErrDeckNotFound
	}
	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to scan deck: %w", err)
	}
	if deck.ID, err = uuid.Parse(id); err != nil {
		return domain.Deck{}, fmt.Errorf("failed to parse deck id: %w", err)
	}
	deck.CreatedAt = deck.CreatedAt.UTC()
	return deck, nil
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		card       domain.Card
		id, deckID string
		cardType   string
		sourcePage sql.NullInt64
		state      int
		lastReview sql.NullTime
	)
	err := row.Scan(&id, &deckID, &card.Front, &card.Back, &cardType, &card.ClozeData,
		&sourcePage, &card.CreatedAt, &card.UpdatedAt,
		&state, &card.FSRS.Step, &card.FSRS.Stability, &card.FSRS.Difficulty,
		&card.FSRS.Due, &lastReview, &card.FSRS.Reps, &card.FSRS.Lapses,
		&card.FSRS.ScheduledDays, &card.FSRS.ElapsedDays)
	if err != nil {
		return domain.Card{}, err
	}
	if card.ID, err = uuid.Parse(id); err != nil {
		return domain.Card{}, fmt.Errorf("failed to parse card id: %w", err)
	}
	if card.DeckID, err = uuid.Parse(deckID); err != nil {
		return domain.Card{}, fmt.Errorf("failed to parse card deck id: %w", err)
	}
	card.CardType = domain.CardType(cardType)
	if sourcePage.Valid {
		page := int(sourcePage.Int64)
		card.SourcePage = &page
	}
	card.FSRS.State = fsrs.State(state)
	if lastReview.Valid {
		t := lastReview.Time.UTC()
		card.FSRS.LastReview = &t
	}
	card.CreatedAt = card.CreatedAt.UTC()
	card.UpdatedAt = card.UpdatedAt.UTC()
	card.FSRS.Due = card.FSRS.Due.UTC()
	return card, nil
}

func collectCards(rows *sql.Rows) ([]domain.Card, error) {
	defer rows.Close()
	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures through the error
	// string; there is no exported sentinel for them.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
