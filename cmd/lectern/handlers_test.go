package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/fsrs"
	"github.com/lectern-app/lectern/internal/storage"
	"github.com/lectern-app/lectern/internal/study"
)

var handlerNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	params := fsrs.DefaultParameters()
	params.EnableFuzz = false
	svc, err := study.New(db, params, time.UTC, zap.NewNop(),
		study.WithClock(func() time.Time { return handlerNow }))
	require.NoError(t, err)

	h := newHandler(svc, zap.NewNop(), 20, 200)
	h.now = func() time.Time { return handlerNow }
	return h
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultJSON decodes the tool result text into out and fails the test on
// an error payload unless wantErr is set.
func resultJSON(t *testing.T, res *mcp.CallToolResult, out interface{}) {
	t.Helper()
	textContent, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), out))
}

func resultError(t *testing.T, res *mcp.CallToolResult) ErrorResponse {
	t.Helper()
	var errResp ErrorResponse
	resultJSON(t, res, &errResp)
	require.NotEmpty(t, errResp.Code, "expected an error payload")
	return errResp
}

func createDeck(t *testing.T, h *handler, name string) DeckResponse {
	t.Helper()
	res, err := h.handleCreateDeck(context.Background(), callRequest(map[string]interface{}{
		"name": name,
	}))
	require.NoError(t, err)
	var deck DeckResponse
	resultJSON(t, res, &deck)
	require.NotEmpty(t, deck.ID)
	return deck
}

func createCard(t *testing.T, h *handler, deckID, front, back string) CardResponse {
	t.Helper()
	res, err := h.handleCreateCard(context.Background(), callRequest(map[string]interface{}{
		"deck_id": deckID,
		"front":   front,
		"back":    back,
	}))
	require.NoError(t, err)
	var card CardResponse
	resultJSON(t, res, &card)
	require.NotEmpty(t, card.ID)
	return card
}

func TestCreateDeckHandler(t *testing.T) {
	h := newTestHandler(t)

	deck := createDeck(t, h, "anatomy")
	assert.Equal(t, "anatomy", deck.Name)
	assert.Equal(t, 20, deck.DailyNewCards, "config default applied")
	assert.Equal(t, 200, deck.DailyReviewCards)

	res, err := h.handleCreateDeck(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, "invalid_input", resultError(t, res).Code)

	res, err = h.handleCreateDeck(context.Background(), callRequest(map[string]interface{}{
		"name": "anatomy",
	}))
	require.NoError(t, err)
	assert.Equal(t, "already_exists", resultError(t, res).Code)
}

func TestCardLifecycleHandlers(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	deck := createDeck(t, h, "anatomy")

	card := createCard(t, h, deck.ID, "femur", "longest bone")
	assert.Equal(t, "New", card.State)
	assert.Equal(t, "basic", card.CardType)

	res, err := h.handleUpdateCard(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
		"front":   "the longest bone?",
	}))
	require.NoError(t, err)
	var updated CardResponse
	resultJSON(t, res, &updated)
	assert.Equal(t, "the longest bone?", updated.Front)
	assert.Equal(t, "longest bone", updated.Back)

	res, err = h.handleListCards(ctx, callRequest(map[string]interface{}{
		"deck_id": deck.ID,
	}))
	require.NoError(t, err)
	var listing struct {
		Cards []CardResponse `json:"cards"`
	}
	resultJSON(t, res, &listing)
	assert.Len(t, listing.Cards, 1)

	res, err = h.handleDeleteCard(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
	}))
	require.NoError(t, err)

	res, err = h.handleDeleteCard(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
	}))
	require.NoError(t, err)
	assert.Equal(t, "not_found", resultError(t, res).Code)
}

func TestSubmitReviewHandler(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	deck := createDeck(t, h, "anatomy")
	card := createCard(t, h, deck.ID, "femur", "longest bone")

	res, err := h.handleSubmitReview(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
		"rating":  float64(3),
	}))
	require.NoError(t, err)

	var review ReviewResponse
	resultJSON(t, res, &review)
	assert.Equal(t, "Learning", review.Card.State)
	require.Len(t, review.Previews, 4)
	assert.Equal(t, "Again", review.Previews[0].Rating)
	assert.Equal(t, "Easy", review.Previews[3].Rating)

	res, err = h.handleSubmitReview(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
		"rating":  float64(9),
	}))
	require.NoError(t, err)
	assert.Equal(t, "invalid_rating", resultError(t, res).Code)

	res, err = h.handleSubmitReview(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
	}))
	require.NoError(t, err)
	assert.Equal(t, "invalid_input", resultError(t, res).Code)
}

func TestPreviewIntervalsHandlerMatchesSubmit(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	deck := createDeck(t, h, "anatomy")
	card := createCard(t, h, deck.ID, "femur", "longest bone")

	res, err := h.handlePreviewIntervals(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
	}))
	require.NoError(t, err)
	var preview struct {
		Previews []PreviewResponse `json:"previews"`
	}
	resultJSON(t, res, &preview)
	require.Len(t, preview.Previews, 4)

	res, err = h.handleSubmitReview(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
		"rating":  float64(3),
	}))
	require.NoError(t, err)
	var review ReviewResponse
	resultJSON(t, res, &review)

	// Same pinned clock: the committed outcome equals its preview.
	assert.Equal(t, preview.Previews[2].Due, review.Card.Due)
	assert.Equal(t, preview.Previews[2].State, review.Card.State)
}

func TestGetDueCardsHandler(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	deck := createDeck(t, h, "anatomy")
	createCard(t, h, deck.ID, "femur", "longest bone")
	createCard(t, h, deck.ID, "tibia", "shin bone")

	res, err := h.handleGetDueCards(ctx, callRequest(map[string]interface{}{
		"deck_id": deck.ID,
	}))
	require.NoError(t, err)
	var queue QueueResponse
	resultJSON(t, res, &queue)
	assert.Len(t, queue.Cards, 2)

	res, err = h.handleGetDueCards(ctx, callRequest(map[string]interface{}{
		"deck_id": "not-a-uuid",
	}))
	require.NoError(t, err)
	assert.Equal(t, "invalid_input", resultError(t, res).Code)
}

func TestGetHeatmapHandler(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	deck := createDeck(t, h, "anatomy")
	card := createCard(t, h, deck.ID, "femur", "longest bone")

	_, err := h.handleSubmitReview(ctx, callRequest(map[string]interface{}{
		"card_id": card.ID,
		"rating":  float64(3),
	}))
	require.NoError(t, err)

	res, err := h.handleGetHeatmap(ctx, callRequest(map[string]interface{}{
		"deck_id": deck.ID,
		"days":    float64(7),
	}))
	require.NoError(t, err)
	var heatmap struct {
		Days         []map[string]interface{} `json:"days"`
		TotalReviews int                      `json:"total_reviews"`
	}
	resultJSON(t, res, &heatmap)
	assert.Len(t, heatmap.Days, 7)
	assert.Equal(t, 1, heatmap.TotalReviews)
}

func TestSessionHandlers(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	deck := createDeck(t, h, "anatomy")
	createCard(t, h, deck.ID, "femur", "longest bone")

	res, err := h.handleStartSession(ctx, callRequest(map[string]interface{}{
		"deck_id": deck.ID,
	}))
	require.NoError(t, err)
	var started struct {
		Queue   QueueResponse      `json:"queue"`
		Session study.SessionState `json:"session"`
	}
	resultJSON(t, res, &started)
	assert.True(t, started.Session.Active)
	assert.Len(t, started.Queue.Cards, 1)

	res, err = h.handleEndSession(ctx, callRequest(nil))
	require.NoError(t, err)
	var ended struct {
		Session study.SessionState `json:"session"`
	}
	resultJSON(t, res, &ended)
	assert.True(t, ended.Session.Active, "final counters of the just-ended session")
}
