package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"autopilot/internal/adapters/config"
	"autopilot/internal/domain/strategy"
	"autopilot/internal/metrics"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

// StrategyPayload is the slice of a strategy the remote agent needs to
// plan allocations.
type StrategyPayload struct {
	ID                 string                    `json:"id"`
	Name               string                    `json:"name"`
	RiskLevel          string                    `json:"riskLevel"`
	PoolAllocations    []strategy.PoolAllocation `json:"poolAllocations"`
	RebalanceThreshold float64                   `json:"rebalanceThreshold"`
	AllowedChains      []string                  `json:"allowedChains"`
}

// ExecuteRequest triggers a fresh allocation run
type ExecuteRequest struct {
	InvestmentID  string          `json:"investmentId"`
	UserID        string          `json:"userId"`
	Strategy      StrategyPayload `json:"strategy"`
	UserAmount    float64         `json:"userAmount"`
	WalletAddress string          `json:"walletAddress"`
	MaxTurns      int             `json:"maxTurns"`
	CallbackURL   string          `json:"callbackUrl"`
}

// RebalanceRequest triggers a withdraw-and-resupply run across strategies
type RebalanceRequest struct {
	InvestmentID     string          `json:"investmentId"`
	UserID           string          `json:"userId"`
	WalletAddress    string          `json:"walletAddress"`
	TotalAmountUSD   float64         `json:"totalAmountUsd"`
	PreviousStrategy StrategyPayload `json:"previousStrategy"`
	NewStrategy      StrategyPayload `json:"newStrategy"`
	MaxTurns         int             `json:"maxTurns"`
	CallbackURL      string          `json:"callbackUrl"`
}

// Client triggers runs on the remote agent service. The trigger is
// fire-and-forget: the agent acknowledges with 202 and reports results
// later through the actions/report callback. Any other status means the
// run was never accepted.
type Client struct {
	cfg        config.AgentConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates an agent trigger client
func NewClient(cfg config.AgentConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.TriggerTimeout,
		},
		log: logger.Get().With("component", "agent_client"),
	}
}

// Enabled reports whether a remote agent service is configured
func (c *Client) Enabled() bool {
	return c.cfg.URL != ""
}

// CallbackURL builds the result callback URL for an investment
func (c *Client) CallbackURL(investmentID uuid.UUID) string {
	if c.cfg.CallbackBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/investments/%s/actions/report", c.cfg.CallbackBaseURL, investmentID)
}

// TriggerExecute asks the agent to run an allocation for a new deposit
func (c *Client) TriggerExecute(ctx context.Context, req ExecuteRequest) error {
	req.MaxTurns = c.cfg.MaxTurnsInvest
	return c.trigger(ctx, "execute", req)
}

// TriggerRebalance asks the agent to move funds between strategies
func (c *Client) TriggerRebalance(ctx context.Context, req RebalanceRequest) error {
	req.MaxTurns = c.cfg.MaxTurnsRebalance
	return c.trigger(ctx, "rebalance", req)
}

func (c *Client) trigger(ctx context.Context, kind string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal trigger payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/"+kind, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build trigger request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.AgentDispatchLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AgentDispatches.WithLabelValues(kind, "error").Inc()
		return errors.Wrap(errors.ErrAgentUnavailable, err.Error())
	}
	defer resp.Body.Close()

	// The agent acknowledges with 202 and delivers results via callback.
	// The response body is intentionally ignored.
	if resp.StatusCode != http.StatusAccepted {
		metrics.AgentDispatches.WithLabelValues(kind, "error").Inc()
		return errors.Wrapf(errors.ErrAgentUnavailable, "agent service returned %d", resp.StatusCode)
	}

	metrics.AgentDispatches.WithLabelValues(kind, "accepted").Inc()
	c.log.Infow("Agent run accepted",
		"kind", kind,
	)
	return nil
}

// NewStrategyPayload converts a strategy entity into its wire form
func NewStrategyPayload(s *strategy.Strategy) (StrategyPayload, error) {
	pools, err := s.GetPoolAllocations()
	if err != nil {
		return StrategyPayload{}, errors.Wrap(err, "read pool allocations")
	}
	chains, err := s.GetAllowedChains()
	if err != nil {
		return StrategyPayload{}, errors.Wrap(err, "read allowed chains")
	}
	return StrategyPayload{
		ID:                 s.ID.String(),
		Name:               s.Name,
		RiskLevel:          s.RiskLevel,
		PoolAllocations:    pools,
		RebalanceThreshold: s.RebalanceThreshold,
		AllowedChains:      chains,
	}, nil
}
