package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/gelotto/lottery-engine/internal/bank"
	"github.com/gelotto/lottery-engine/internal/engine"
	"github.com/gelotto/lottery-engine/internal/events"
	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/pkg/common/logger"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type APIErrorResponse struct {
	Status    string    `json:"status"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type BuyTicketsRequest struct {
	Sender      string `json:"sender"`
	TicketCount uint32 `json:"ticket_count"`
	LuckyPhrase string `json:"lucky_phrase,omitempty"`
	// AttachedAmount is the exact native payment accompanying the call.
	// Ignored for token-asset games.
	AttachedAmount string `json:"attached_amount,omitempty"`
}

type EndGameRequest struct {
	Sender      string `json:"sender"`
	LuckyPhrase string `json:"lucky_phrase,omitempty"`
}

type ClaimPrizeRequest struct {
	Sender    string   `json:"sender"`
	Positions []uint32 `json:"positions"`
}

type TxResponse struct {
	Status       string             `json:"status"`
	Instructions []bank.Instruction `json:"instructions,omitempty"`
}

type HTTPHandler struct {
	engine  *engine.Engine
	emitter events.Emitter
	clock   clockwork.Clock
	version string
}

func NewHTTPHandler(eng *engine.Engine, emitter events.Emitter, clock clockwork.Clock, version string) *HTTPHandler {
	return &HTTPHandler{
		engine:  eng,
		emitter: emitter,
		clock:   clock,
		version: version,
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /v1/tx/buy-tickets", h.handleBuyTickets)
	mux.HandleFunc("POST /v1/tx/end-game", h.handleEndGame)
	mux.HandleFunc("POST /v1/tx/claim-prize", h.handleClaimPrize)
	mux.HandleFunc("GET /v1/winners", h.handleGetWinners)
	mux.HandleFunc("GET /v1/players", h.handleGetPlayers)
	mux.HandleFunc("GET /v1/players/{addr}/tickets", h.handleGetPlayerTicketCount)
	mux.HandleFunc("GET /v1/round", h.handleGetRound)
}

func (h *HTTPHandler) txContext(sender string) engine.TxContext {
	now := h.clock.Now()
	return engine.TxContext{
		Sender:      sender,
		BlockHeight: hostHeight(now),
		BlockTime:   now,
	}
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.clock.Now().UTC(),
		Version:   h.version,
	})
}

func (h *HTTPHandler) handleBuyTickets(w http.ResponseWriter, r *http.Request) {
	var req BuyTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &game.Error{Kind: game.KindValidation, Msg: "malformed request body"})
		return
	}

	attached := decimal.Zero
	if req.AttachedAmount != "" {
		var err error
		attached, err = decimal.NewFromString(req.AttachedAmount)
		if err != nil {
			h.writeError(w, &game.Error{Kind: game.KindValidation, Msg: "malformed attached_amount"})
			return
		}
	}

	result, err := h.engine.BuyTickets(h.txContext(req.Sender), req.TicketCount, req.LuckyPhrase, attached)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Registry notification is fire-and-forget, after commit.
	go h.emitter.EmitAll(result.Notifications)
	writeJSON(w, http.StatusOK, TxResponse{Status: "ok", Instructions: result.Instructions})
}

func (h *HTTPHandler) handleEndGame(w http.ResponseWriter, r *http.Request) {
	var req EndGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &game.Error{Kind: game.KindValidation, Msg: "malformed request body"})
		return
	}

	result, err := h.engine.EndGame(h.txContext(req.Sender), req.LuckyPhrase)
	if err != nil {
		h.writeError(w, err)
		return
	}

	go h.emitter.EmitAll(result.Notifications)
	writeJSON(w, http.StatusOK, TxResponse{Status: "ok", Instructions: result.Instructions})
}

func (h *HTTPHandler) handleClaimPrize(w http.ResponseWriter, r *http.Request) {
	var req ClaimPrizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &game.Error{Kind: game.KindValidation, Msg: "malformed request body"})
		return
	}

	result, err := h.engine.ClaimPrize(h.txContext(req.Sender), req.Positions)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TxResponse{Status: "ok", Instructions: result.Instructions})
}

func (h *HTTPHandler) handleGetWinners(w http.ResponseWriter, r *http.Request) {
	winners, err := h.engine.Winners()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"winners": winners})
}

func (h *HTTPHandler) handleGetPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.engine.Players()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

func (h *HTTPHandler) handleGetPlayerTicketCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.engine.PlayerTicketCount(r.PathValue("addr"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket_count": count})
}

func (h *HTTPHandler) handleGetRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.engine.Round()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	kind := game.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case game.KindValidation:
		status = http.StatusBadRequest
	case game.KindAuthorization:
		status = http.StatusForbidden
	case game.KindState:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, APIErrorResponse{
		Status:    "error",
		Kind:      kind.String(),
		Error:     err.Error(),
		Timestamp: h.clock.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
