package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lectern-app/lectern/internal/config"
	"github.com/lectern-app/lectern/internal/storage"
	"github.com/lectern-app/lectern/internal/study"
)

const serverVersion = "1.0.0"

const serverInstructions = `
This server is the scheduling engine of a spaced-repetition study tool.
Cards belong to decks; each deck has daily caps for new and review cards.

Study workflow:
1. Call start_session (or get_due_cards) for a deck to obtain the queue.
2. Present one card at a time, front side first.
3. After the student answers, call submit_review with a rating:
   1=Again (failed), 2=Hard, 3=Good, 4=Easy.
4. Cards rated Again come back later in the same session; keep going
   until the queue is empty.
5. Use preview_intervals to show what each rating would schedule before
   the student commits to one.

get_heatmap reports per-day review activity and the current streak for
progress displays.
`

func main() {
	configPath := flag.String("config", "", "Path to config file (falls back to $CONFIG_PATH)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("path", cfg.Storage.Path), zap.Error(err))
	}
	defer store.Close()

	params, err := cfg.SchedulerParameters()
	if err != nil {
		logger.Fatal("invalid scheduler config", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid timezone config", zap.Error(err))
	}

	svc, err := study.New(store, params, loc, logger)
	if err != nil {
		logger.Fatal("failed to build study service", zap.Error(err))
	}

	s := server.NewMCPServer(
		"Lectern Scheduler",
		serverVersion,
		server.WithInstructions(serverInstructions),
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)
	registerTools(s, newHandler(svc, logger, cfg.Decks.DefaultDailyNew, cfg.Decks.DefaultDailyReview))

	logger.Info("serving",
		zap.String("storage", cfg.Storage.Path),
		zap.String("timezone", loc.String()),
		zap.Float64("desired_retention", params.DesiredRetention))

	if err := server.ServeStdio(s); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func registerTools(s *server.MCPServer, h *handler) {
	s.AddTool(mcp.NewTool("create_deck",
		mcp.WithDescription("Create a deck. Daily caps default from config when omitted."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique deck name")),
		mcp.WithNumber("daily_new_cards", mcp.Description("Max distinct new cards introduced per day")),
		mcp.WithNumber("daily_review_cards", mcp.Description("Max distinct previously-seen cards reviewed per day")),
	), h.handleCreateDeck)

	s.AddTool(mcp.NewTool("list_decks",
		mcp.WithDescription("List all decks with total, new and due card counts."),
	), h.handleListDecks)

	s.AddTool(mcp.NewTool("create_card",
		mcp.WithDescription("Create a flashcard in a deck. The card starts unscheduled (new state); scheduling fields are never set by callers."),
		mcp.WithString("deck_id", mcp.Required(), mcp.Description("Deck to add the card to")),
		mcp.WithString("front", mcp.Required(), mcp.Description("Question side")),
		mcp.WithString("back", mcp.Required(), mcp.Description("Answer side")),
		mcp.WithString("card_type", mcp.Description("'basic' (default) or 'cloze'")),
		mcp.WithString("cloze_data", mcp.Description("Mask/answer payload for cloze cards")),
		mcp.WithNumber("source_page", mcp.Description("Page of the source PDF highlight")),
	), h.handleCreateCard)

	s.AddTool(mcp.NewTool("update_card",
		mcp.WithDescription("Edit a card's content. Scheduling state is untouched by edits."),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("Card to update")),
		mcp.WithString("front", mcp.Description("New question side")),
		mcp.WithString("back", mcp.Description("New answer side")),
		mcp.WithString("cloze_data", mcp.Description("New cloze payload")),
		mcp.WithNumber("source_page", mcp.Description("New source page")),
	), h.handleUpdateCard)

	s.AddTool(mcp.NewTool("delete_card",
		mcp.WithDescription("Delete a card. Its review history is retained for statistics."),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("Card to delete")),
	), h.handleDeleteCard)

	s.AddTool(mcp.NewTool("list_cards",
		mcp.WithDescription("List every card in a deck with scheduling state."),
		mcp.WithString("deck_id", mcp.Required(), mcp.Description("Deck to list")),
	), h.handleListCards)

	s.AddTool(mcp.NewTool("get_due_cards",
		mcp.WithDescription("Build the study queue for a deck: due cards first, then new cards, both capped by the deck's daily quotas."),
		mcp.WithString("deck_id", mcp.Required(), mcp.Description("Deck to query")),
		mcp.WithNumber("limit", mcp.Description("Max cards to return (0 = no limit)")),
	), h.handleGetDueCards)

	s.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a study session over the deck's current queue. Starting on another deck resets the session counters."),
		mcp.WithString("deck_id", mcp.Required(), mcp.Description("Deck to study")),
		mcp.WithNumber("limit", mcp.Description("Max cards in the session (0 = no limit)")),
	), h.handleStartSession)

	s.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("End the active study session and return its final counters."),
	), h.handleEndSession)

	s.AddTool(mcp.NewTool("submit_review",
		mcp.WithDescription("Commit a review: updates the card's schedule and appends to the review log atomically. Returns the new state plus what every other rating would have done."),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("Card being reviewed")),
		mcp.WithNumber("rating", mcp.Required(), mcp.Description("1=Again, 2=Hard, 3=Good, 4=Easy")),
	), h.handleSubmitReview)

	s.AddTool(mcp.NewTool("preview_intervals",
		mcp.WithDescription("Show what each of the four ratings would schedule for a card, without committing anything."),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("Card to preview")),
	), h.handlePreviewIntervals)

	s.AddTool(mcp.NewTool("get_heatmap",
		mcp.WithDescription("Per-day review counts over a window ending today, with streak, max and total. Includes reviews of since-deleted cards."),
		mcp.WithString("deck_id", mcp.Description("Restrict to one deck; omit for all decks")),
		mcp.WithNumber("days", mcp.Description("Window length in days (default 365)")),
	), h.handleGetHeatmap)
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = cfg.Encoding
	// stdout carries the MCP protocol; logs must go elsewhere.
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if cfg.Encoding == "console" {
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zcfg.Build()
}
