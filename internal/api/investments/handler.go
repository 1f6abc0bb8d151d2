// Package investments exposes the investment lifecycle over REST:
// start, switch, execute, active and portfolio views, the action ledger
// and the agent result callback.
package investments

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"autopilot/internal/api/respond"
	investmentsvc "autopilot/internal/services/investment"
	portfoliosvc "autopilot/internal/services/portfolio"
	"autopilot/pkg/logger"
)

// Handler serves investment endpoints
type Handler struct {
	investments *investmentsvc.Service
	portfolio   *portfoliosvc.Service
	log         *logger.Logger
}

// NewHandler creates the investments handler
func NewHandler(investments *investmentsvc.Service, portfolio *portfoliosvc.Service) *Handler {
	return &Handler{
		investments: investments,
		portfolio:   portfolio,
		log:         logger.Get().With("component", "investments_api"),
	}
}

// Register wires the handler's routes into the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /investments/start", h.HandleStart)
	mux.HandleFunc("PATCH /investments/switch", h.HandleSwitch)
	mux.HandleFunc("POST /investments/execute", h.HandleExecute)
	mux.HandleFunc("GET /investments/active", h.HandleActive)
	mux.HandleFunc("GET /investments/portfolio", h.HandlePortfolio)
	mux.HandleFunc("GET /investments/{investmentId}/actions", h.HandleActions)
	mux.HandleFunc("POST /investments/{investmentId}/actions/report", h.HandleReport)
}

type startRequest struct {
	UserID     string `json:"userId"`
	StrategyID string `json:"strategyId"`
	UserAmount string `json:"userAmount"`
}

// HandleStart activates a new investment and kicks off the agent run
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		respond.BadRequest(w, "userId is required")
		return
	}
	strategyID, err := uuid.Parse(req.StrategyID)
	if err != nil {
		respond.BadRequest(w, "strategyId must be a valid uuid")
		return
	}
	amount, err := parseAmount(req.UserAmount)
	if err != nil {
		respond.BadRequest(w, "userAmount must be numeric")
		return
	}

	result, err := h.investments.StartInvesting(r.Context(), req.UserID, strategyID, amount)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, result)
}

type switchRequest struct {
	UserID        string `json:"userId"`
	NewStrategyID string `json:"newStrategyId"`
	UserAmount    string `json:"userAmount"`
}

// HandleSwitch moves the user to another strategy and triggers a rebalance
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		respond.BadRequest(w, "userId is required")
		return
	}
	strategyID, err := uuid.Parse(req.NewStrategyID)
	if err != nil {
		respond.BadRequest(w, "newStrategyId must be a valid uuid")
		return
	}
	amount, err := parseAmount(req.UserAmount)
	if err != nil {
		respond.BadRequest(w, "userAmount must be numeric")
		return
	}

	result, err := h.investments.SwitchStrategy(r.Context(), req.UserID, strategyID, amount)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

type executeRequest struct {
	InvestmentID string `json:"investmentId"`
	UserAmount   string `json:"userAmount"`
}

// HandleExecute re-triggers an agent run for an existing investment
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	investmentID, err := uuid.Parse(req.InvestmentID)
	if err != nil {
		respond.BadRequest(w, "investmentId must be a valid uuid")
		return
	}
	amount, err := parseAmount(req.UserAmount)
	if err != nil {
		respond.BadRequest(w, "userAmount must be numeric")
		return
	}

	result, err := h.investments.ExecuteInvestment(r.Context(), investmentID, amount)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, result)
}

// HandleActive returns the user's active investment summary
func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respond.BadRequest(w, "userId query param required")
		return
	}

	view, err := h.investments.Active(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, view)
}

// HandlePortfolio returns the reconciled portfolio of the active investment
func (h *Handler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respond.BadRequest(w, "userId query param required")
		return
	}

	portfolio, err := h.portfolio.GetPortfolio(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, portfolio)
}

type actionView struct {
	ID                uuid.UUID `json:"id"`
	ActionType        string    `json:"actionType"`
	Chain             string    `json:"chain"`
	Protocol          string    `json:"protocol"`
	Asset             string    `json:"asset"`
	Amount            string    `json:"amount"`
	GasCostUSD        *float64  `json:"gasCostUsd"`
	ExpectedApyBefore *float64  `json:"expectedApyBefore"`
	ExpectedApyAfter  *float64  `json:"expectedApyAfter"`
	Rationale         string    `json:"rationale"`
	Status            string    `json:"status"`
	TxHash            *string   `json:"txHash"`
	ExecutedAt        time.Time `json:"executedAt"`
}

type actionsResponse struct {
	InvestmentID uuid.UUID    `json:"investmentId"`
	Actions      []actionView `json:"actions"`
}

// HandleActions returns the full ordered ledger of an investment
func (h *Handler) HandleActions(w http.ResponseWriter, r *http.Request) {
	investmentID, err := uuid.Parse(r.PathValue("investmentId"))
	if err != nil {
		respond.BadRequest(w, "investmentId must be a valid uuid")
		return
	}

	actions, err := h.investments.ListActions(r.Context(), investmentID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	views := make([]actionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, actionView{
			ID:                a.ID,
			ActionType:        a.Type,
			Chain:             a.Chain,
			Protocol:          a.Protocol,
			Asset:             a.Asset,
			Amount:            a.Amount,
			GasCostUSD:        a.GasCostUSD,
			ExpectedApyBefore: a.ExpectedApyBefore,
			ExpectedApyAfter:  a.ExpectedApyAfter,
			Rationale:         a.Rationale,
			Status:            a.Status,
			TxHash:            a.TxHash,
			ExecutedAt:        a.ExecutedAt,
		})
	}
	respond.JSON(w, http.StatusOK, actionsResponse{InvestmentID: investmentID, Actions: views})
}

// HandleReport ingests the agent's result callback
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	investmentID, err := uuid.Parse(r.PathValue("investmentId"))
	if err != nil {
		respond.BadRequest(w, "investmentId must be a valid uuid")
		return
	}

	var req investmentsvc.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	result, err := h.investments.ReportAgentResults(r.Context(), investmentID, req)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

func parseAmount(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
