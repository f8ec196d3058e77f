package storage

// schema is applied on every Open. All statements are idempotent so an
// existing database passes through unchanged.
//
// flashcard_reviews is append-only and carries no foreign key on purpose:
// review history outlives the card it belongs to so that streaks and the
// heatmap stay accurate after deletions.
const schema = `
CREATE TABLE IF NOT EXISTS decks (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL UNIQUE,
	daily_new_cards    INTEGER NOT NULL,
	daily_review_cards INTEGER NOT NULL,
	created_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS flashcards (
	id          TEXT PRIMARY KEY,
	deck_id     TEXT NOT NULL,
	front       TEXT NOT NULL,
	back        TEXT NOT NULL,
	card_type   TEXT NOT NULL DEFAULT 'basic',
	cloze_data  TEXT NOT NULL DEFAULT '',
	source_page INTEGER,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	FOREIGN KEY (deck_id) REFERENCES decks (id)
);

CREATE INDEX IF NOT EXISTS idx_flashcards_deck ON flashcards (deck_id);

CREATE TABLE IF NOT EXISTS flashcard_fsrs (
	flashcard_id   TEXT PRIMARY KEY,
	state          INTEGER NOT NULL DEFAULT 0,
	step           INTEGER NOT NULL DEFAULT 0,
	stability      REAL NOT NULL DEFAULT 0,
	difficulty     REAL NOT NULL DEFAULT 0,
	due            DATETIME NOT NULL,
	last_review    DATETIME,
	reps           INTEGER NOT NULL DEFAULT 0,
	lapses         INTEGER NOT NULL DEFAULT 0,
	scheduled_days INTEGER NOT NULL DEFAULT 0,
	elapsed_days   INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (flashcard_id) REFERENCES flashcards (id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_flashcard_fsrs_due ON flashcard_fsrs (due);

CREATE TABLE IF NOT EXISTS flashcard_reviews (
	id             TEXT PRIMARY KEY,
	flashcard_id   TEXT NOT NULL,
	deck_id        TEXT NOT NULL,
	rating         INTEGER NOT NULL,
	reviewed_at    DATETIME NOT NULL,
	scheduled_days INTEGER NOT NULL,
	elapsed_days   INTEGER NOT NULL,
	state          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_deck_time ON flashcard_reviews (deck_id, reviewed_at);
CREATE INDEX IF NOT EXISTS idx_reviews_card_time ON flashcard_reviews (flashcard_id, reviewed_at);
`
