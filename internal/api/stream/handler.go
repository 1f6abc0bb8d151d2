// Package stream serves the live progress stream: an SSE endpoint for
// watchers and a push endpoint the remote agent posts progress frames to.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"autopilot/internal/api/respond"
	"autopilot/internal/events"
	"autopilot/pkg/logger"
)

// Handler serves stream endpoints
type Handler struct {
	broadcaster *events.Broadcaster
	maxLifetime time.Duration
	log         *logger.Logger
}

// NewHandler creates the stream handler
func NewHandler(broadcaster *events.Broadcaster, maxLifetime time.Duration) *Handler {
	if maxLifetime <= 0 {
		maxLifetime = 15 * time.Minute
	}
	return &Handler{
		broadcaster: broadcaster,
		maxLifetime: maxLifetime,
		log:         logger.Get().With("component", "stream_api"),
	}
}

// Register wires the handler's routes into the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /stream/{investmentId}", h.HandleStream)
	mux.HandleFunc("POST /investments/{investmentId}/events", h.HandlePush)
}

// HandleStream opens a long-lived SSE connection for one investment.
// The connection closes on client disconnect or after the maximum
// lifetime. Late joiners only see events emitted after they joined.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	investmentID, err := uuid.Parse(r.PathValue("investmentId"))
	if err != nil {
		respond.BadRequest(w, "investmentId must be a valid uuid")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.BadRequest(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.broadcaster.Subscribe(investmentID)
	defer h.broadcaster.Unsubscribe(investmentID, sub)

	writeFrame(w, events.Event{Type: events.TypeConnected})
	flusher.Flush()

	h.log.Debugw("Stream opened", "investment_id", investmentID)

	lifetime := time.NewTimer(h.maxLifetime)
	defer lifetime.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debugw("Stream client disconnected", "investment_id", investmentID)
			return
		case <-lifetime.C:
			h.log.Debugw("Stream lifetime reached", "investment_id", investmentID)
			return
		case e, open := <-sub.Events():
			if !open {
				return
			}
			writeFrame(w, e)
			flusher.Flush()
		}
	}
}

// HandlePush ingests a progress frame from the remote agent and fans it
// out to current subscribers. Frames are observational only; nothing in
// the ledger depends on them.
func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	investmentID, err := uuid.Parse(r.PathValue("investmentId"))
	if err != nil {
		respond.BadRequest(w, "investmentId must be a valid uuid")
		return
	}

	var e events.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respond.BadRequest(w, "invalid event body")
		return
	}
	if !events.ValidType(e.Type) {
		respond.BadRequest(w, fmt.Sprintf("unknown event type %q", e.Type))
		return
	}

	h.broadcaster.Publish(investmentID, e)
	respond.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeFrame(w http.ResponseWriter, e events.Event) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, e.Payload())
}
