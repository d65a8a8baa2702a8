package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"

	"github.com/LeventeLantos/outbound-router/internal/directory"
	"github.com/LeventeLantos/outbound-router/internal/model"
	"github.com/LeventeLantos/outbound-router/internal/routing"
	"github.com/LeventeLantos/outbound-router/internal/store"
	"github.com/LeventeLantos/outbound-router/internal/sweep"
)

// ReceiptRecorder accepts delivery receipts reported by channel gateways.
type ReceiptRecorder interface {
	Record(ctx context.Context, messageID, remoteID string) error
}

type Handler struct {
	queue      *store.Queue
	dir        directory.Store
	receipts   ReceiptRecorder
	sweeper    *sweep.Sweeper
	clk        clock.Clock
	contentMax int
	expiry     time.Duration
}

func NewHandler(
	queue *store.Queue,
	dir directory.Store,
	receipts ReceiptRecorder,
	sweeper *sweep.Sweeper,
	clk clock.Clock,
	contentMax int,
	expiryWindow time.Duration,
) *Handler {
	return &Handler{
		queue:      queue,
		dir:        dir,
		receipts:   receipts,
		sweeper:    sweeper,
		clk:        clk,
		contentMax: contentMax,
		expiry:     expiryWindow,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createMessageRequest struct {
	Recipient string            `json:"recipient"`
	Text      string            `json:"text"`
	Priority  int               `json:"priority"`
	Metadata  map[string]string `json:"metadata"`
}

type messageResponse struct {
	ID      string        `json:"id"`
	State   model.State   `json:"state"`
	Channel model.Channel `json:"channel,omitempty"`
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Recipient == "" || req.Text == "" {
		http.Error(w, "recipient and text are required", http.StatusBadRequest)
		return
	}
	if utf8.RuneCountInString(req.Text) > h.contentMax {
		http.Error(w, fmt.Sprintf("text exceeds %d chars", h.contentMax), http.StatusBadRequest)
		return
	}

	caps, err := h.dir.LookupCapabilities(r.Context(), req.Recipient)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := h.clk.Now()
	m := model.New(req.Recipient, req.Text, now)
	if req.Priority > 0 {
		m.Priority = req.Priority
	}
	m.Metadata = req.Metadata

	if !routing.Route(m, caps, now) {
		writeJSON(w, http.StatusUnprocessableEntity, messageResponse{ID: m.ID, State: m.State})
		return
	}

	m.ExpiresAt = now.Add(h.expiry)
	if err := h.queue.Enqueue(r.Context(), m); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{ID: m.ID, State: m.State, Channel: m.Channel})
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	m, err := h.queue.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

type recordReceiptRequest struct {
	RemoteID string `json:"remoteId"`
}

func (h *Handler) RecordReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req recordReceiptRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
	}

	if err := h.receipts.Record(r.Context(), id, req.RemoteID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertContactRequest struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	Phone                string        `json:"phone"`
	Email                string        `json:"email"`
	RichChatCapable      bool          `json:"richChatCapable"`
	RichMessagingCapable bool          `json:"richMessagingCapable"`
	PreferredChannel     model.Channel `json:"preferredChannel"`
	OptedIn              bool          `json:"optedIn"`
	Blocked              bool          `json:"blocked"`
}

func (h *Handler) UpsertContact(w http.ResponseWriter, r *http.Request) {
	var req upsertContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	err := h.dir.Upsert(r.Context(), directory.Contact{
		ID:                   req.ID,
		Name:                 req.Name,
		Phone:                req.Phone,
		Email:                req.Email,
		RichChatCapable:      req.RichChatCapable,
		RichMessagingCapable: req.RichMessagingCapable,
		Preferred:            req.PreferredChannel,
		OptedIn:              req.OptedIn,
		Blocked:              req.Blocked,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) OptOutContact(w http.ResponseWriter, r *http.Request) {
	recipient := r.PathValue("recipient")
	if err := h.dir.SetOptIn(r.Context(), recipient, false); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SweeperStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sweeper.IsRunning()})
}

func (h *Handler) SweeperStart(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sweeper.IsRunning()})
}

func (h *Handler) SweeperStop(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sweeper.IsRunning()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
