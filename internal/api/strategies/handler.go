// Package strategies serves the read-only strategy catalog
package strategies

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"autopilot/internal/api/respond"
	strategysvc "autopilot/internal/services/strategy"
)

// Handler serves strategy endpoints
type Handler struct {
	strategies *strategysvc.Service
}

// NewHandler creates the strategies handler
func NewHandler(strategies *strategysvc.Service) *Handler {
	return &Handler{strategies: strategies}
}

// Register wires the handler's routes into the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /strategies", h.HandleList)
	mux.HandleFunc("GET /strategies/{strategyId}", h.HandleGet)
	mux.HandleFunc("POST /strategies/{strategyId}/plan", h.HandlePlan)
}

// HandleList returns all seeded strategies
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.strategies.List(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, views)
}

// HandleGet returns a single strategy
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("strategyId"))
	if err != nil {
		respond.BadRequest(w, "strategyId must be a valid uuid")
		return
	}

	view, err := h.strategies.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, view)
}

type planRequest struct {
	TotalAmountUSD float64            `json:"totalAmountUsd"`
	CurrentRates   map[string]float64 `json:"currentRates"`
	GasPriceUSD    float64            `json:"gasPriceUsd"`
	CurrentAPY     *float64           `json:"currentApy"`
}

// HandlePlan computes a dry-run allocation for the strategy against
// caller-supplied rates. Nothing is dispatched or persisted.
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("strategyId"))
	if err != nil {
		respond.BadRequest(w, "strategyId must be a valid uuid")
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	decisions, err := h.strategies.Plan(r.Context(), id, strategysvc.PlanParams{
		TotalAmountUSD: req.TotalAmountUSD,
		CurrentRates:   req.CurrentRates,
		GasPriceUSD:    req.GasPriceUSD,
		CurrentAPY:     req.CurrentAPY,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"strategyId": id,
		"decisions":  decisions,
	})
}
