package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/domain"
	"github.com/lectern-app/lectern/internal/fsrs"
	"github.com/lectern-app/lectern/internal/study"
)

// handler wires tool requests to the study service.
type handler struct {
	svc    *study.Service
	logger *zap.Logger
	now    func() time.Time

	// caps applied when create_deck omits them
	defaultDailyNew    int
	defaultDailyReview int
}

func newHandler(svc *study.Service, logger *zap.Logger, defaultDailyNew, defaultDailyReview int) *handler {
	return &handler{
		svc:                svc,
		logger:             logger,
		now:                time.Now,
		defaultDailyNew:    defaultDailyNew,
		defaultDailyReview: defaultDailyReview,
	}
}

func (h *handler) handleCreateDeck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, ok := request.Params.Arguments["name"].(string)
	if !ok {
		return missingParam("name"), nil
	}
	dailyNew := intArg(request, "daily_new_cards", h.defaultDailyNew)
	dailyReview := intArg(request, "daily_review_cards", h.defaultDailyReview)

	deck, err := h.svc.CreateDeck(ctx, name, dailyNew, dailyReview)
	if err != nil {
		return h.errorResult("create_deck", err), nil
	}
	return jsonResult(newDeckResponse(study.DeckSummary{Deck: deck}))
}

func (h *handler) handleListDecks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := h.svc.ListDecks(ctx)
	if err != nil {
		return h.errorResult("list_decks", err), nil
	}
	decks := make([]DeckResponse, len(summaries))
	for i, s := range summaries {
		decks[i] = newDeckResponse(s)
	}
	return jsonResult(map[string]any{"decks": decks})
}

func (h *handler) handleCreateCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID, res := uuidParam(request, "deck_id")
	if res != nil {
		return res, nil
	}
	front, ok := request.Params.Arguments["front"].(string)
	if !ok {
		return missingParam("front"), nil
	}
	back, ok := request.Params.Arguments["back"].(string)
	if !ok {
		return missingParam("back"), nil
	}

	in := study.CreateCardInput{
		DeckID: deckID,
		Front:  front,
		Back:   back,
	}
	if cardType, ok := request.Params.Arguments["card_type"].(string); ok {
		in.CardType = domain.CardType(cardType)
	}
	if clozeData, ok := request.Params.Arguments["cloze_data"].(string); ok {
		in.ClozeData = clozeData
	}
	if pageFloat, ok := request.Params.Arguments["source_page"].(float64); ok {
		page := int(pageFloat)
		in.SourcePage = &page
	}

	card, err := h.svc.CreateCard(ctx, in)
	if err != nil {
		return h.errorResult("create_card", err), nil
	}
	return jsonResult(newCardResponse(card, h.now()))
}

func (h *handler) handleUpdateCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID, res := uuidParam(request, "card_id")
	if res != nil {
		return res, nil
	}

	in := study.UpdateCardInput{CardID: cardID}
	if front, ok := request.Params.Arguments["front"].(string); ok {
		in.Front = &front
	}
	if back, ok := request.Params.Arguments["back"].(string); ok {
		in.Back = &back
	}
	if clozeData, ok := request.Params.Arguments["cloze_data"].(string); ok {
		in.ClozeData = &clozeData
	}
	if pageFloat, ok := request.Params.Arguments["source_page"].(float64); ok {
		page := int(pageFloat)
		in.SourcePage = &page
	}

	card, err := h.svc.UpdateCard(ctx, in)
	if err != nil {
		return h.errorResult("update_card", err), nil
	}
	return jsonResult(newCardResponse(card, h.now()))
}

func (h *handler) handleDeleteCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID, res := uuidParam(request, "card_id")
	if res != nil {
		return res, nil
	}
	if err := h.svc.DeleteCard(ctx, cardID); err != nil {
		return h.errorResult("delete_card", err), nil
	}
	return jsonResult(map[string]any{"deleted": cardID.String()})
}

func (h *handler) handleListCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID, res := uuidParam(request, "deck_id")
	if res != nil {
		return res, nil
	}
	cards, err := h.svc.ListCards(ctx, deckID)
	if err != nil {
		return h.errorResult("list_cards", err), nil
	}
	return jsonResult(map[string]any{"cards": newCardResponses(cards, h.now())})
}

func (h *handler) handleGetDueCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID, res := uuidParam(request, "deck_id")
	if res != nil {
		return res, nil
	}
	limit := intArg(request, "limit", 0)

	queue, err := h.svc.GetDueCards(ctx, deckID, limit)
	if err != nil {
		return h.errorResult("get_due_cards", err), nil
	}
	return jsonResult(QueueResponse{
		Cards:           newCardResponses(queue.Cards, h.now()),
		NewRemaining:    queue.NewRemaining,
		ReviewRemaining: queue.ReviewRemaining,
	})
}

func (h *handler) handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID, res := uuidParam(request, "deck_id")
	if res != nil {
		return res, nil
	}
	limit := intArg(request, "limit", 0)

	queue, session, err := h.svc.StartSession(ctx, deckID, limit)
	if err != nil {
		return h.errorResult("start_session", err), nil
	}
	return jsonResult(map[string]any{
		"queue": QueueResponse{
			Cards:           newCardResponses(queue.Cards, h.now()),
			NewRemaining:    queue.NewRemaining,
			ReviewRemaining: queue.ReviewRemaining,
		},
		"session": session,
	})
}

func (h *handler) handleEndSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"session": h.svc.EndSession()})
}

func (h *handler) handleSubmitReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID, res := uuidParam(request, "card_id")
	if res != nil {
		return res, nil
	}
	ratingFloat, ok := request.Params.Arguments["rating"].(float64)
	if !ok {
		return missingParam("rating"), nil
	}
	rating := fsrs.Rating(int(ratingFloat))
	if !rating.IsValid() {
		return errorJSON("rating must be between 1 and 4", "invalid_rating"), nil
	}

	result, err := h.svc.SubmitReview(ctx, cardID, rating)
	if err != nil {
		return h.errorResult("submit_review", err), nil
	}
	return jsonResult(ReviewResponse{
		Card:     newCardResponse(result.Card, h.now()),
		Interval: result.Interval.String(),
		Previews: newPreviewResponses(result.Previews),
		Session:  result.Session,
	})
}

func (h *handler) handlePreviewIntervals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID, res := uuidParam(request, "card_id")
	if res != nil {
		return res, nil
	}
	previews, err := h.svc.PreviewIntervals(ctx, cardID)
	if err != nil {
		return h.errorResult("preview_intervals", err), nil
	}
	return jsonResult(map[string]any{"previews": newPreviewResponses(previews)})
}

func (h *handler) handleGetHeatmap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var deckID *uuid.UUID
	if raw, ok := request.Params.Arguments["deck_id"].(string); ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errorJSON(fmt.Sprintf("invalid deck_id: %v", err), "invalid_input"), nil
		}
		deckID = &id
	}
	days := intArg(request, "days", 365)

	heatmap, err := h.svc.GetHeatmap(ctx, deckID, days)
	if err != nil {
		return h.errorResult("get_heatmap", err), nil
	}
	return jsonResult(heatmap)
}

// errorResult maps service errors to a stable reason code and logs the
// failure. Declined operations are responses, not protocol errors, so
// the Go error stays nil.
func (h *handler) errorResult(tool string, err error) *mcp.CallToolResult {
	code := "internal"
	switch {
	case errors.Is(err, domain.ErrCardNotFound), errors.Is(err, domain.ErrDeckNotFound):
		code = "not_found"
	case errors.Is(err, domain.ErrDeckExists):
		code = "already_exists"
	case errors.Is(err, domain.ErrQuotaExceeded):
		code = "quota_exceeded"
	case errors.Is(err, domain.ErrInvalidInput):
		code = "invalid_input"
	case errors.Is(err, fsrs.ErrInvalidRating):
		code = "invalid_rating"
	}

	if code == "internal" {
		h.logger.Error("tool failed", zap.String("tool", tool), zap.Error(err))
	} else {
		h.logger.Debug("tool declined", zap.String("tool", tool), zap.String("code", code), zap.Error(err))
	}
	return errorJSON(err.Error(), code)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func errorJSON(msg, code string) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(ErrorResponse{Error: msg, Code: code})
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": %q, "code": %q}`, msg, code))
	}
	return mcp.NewToolResultText(string(jsonBytes))
}

func missingParam(name string) *mcp.CallToolResult {
	return errorJSON("missing required parameter: "+name, "invalid_input")
}

func uuidParam(request mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, ok := request.Params.Arguments[name].(string)
	if !ok {
		return uuid.Nil, missingParam(name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errorJSON(fmt.Sprintf("invalid %s: %v", name, err), "invalid_input")
	}
	return id, nil
}

func intArg(request mcp.CallToolRequest, name string, fallback int) int {
	if f, ok := request.Params.Arguments[name].(float64); ok {
		return int(f)
	}
	return fallback
}
