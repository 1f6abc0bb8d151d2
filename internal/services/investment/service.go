// Package investment implements the execution dispatcher: starting and
// switching investments, triggering remote agent runs, and recording the
// results the agent reports back into the durable action ledger.
package investment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	agentadapter "autopilot/internal/adapters/agent"
	"autopilot/internal/adapters/config"
	"autopilot/internal/adapters/dedup"
	"autopilot/internal/adapters/telegram"
	"autopilot/internal/domain/action"
	"autopilot/internal/domain/investment"
	"autopilot/internal/domain/strategy"
	"autopilot/internal/events"
	"autopilot/internal/metrics"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

// Claims outlive any plausible agent retry window
const reportDedupTTL = 24 * time.Hour

// Background dispatch budget: trigger timeout plus room for the
// fallback ledger write.
const dispatchBudget = 15 * time.Second

// AgentTrigger dispatches runs to the remote agent service
type AgentTrigger interface {
	Enabled() bool
	CallbackURL(investmentID uuid.UUID) string
	TriggerExecute(ctx context.Context, req agentadapter.ExecuteRequest) error
	TriggerRebalance(ctx context.Context, req agentadapter.RebalanceRequest) error
}

// Service orchestrates investment lifecycle and agent dispatch
type Service struct {
	investments investment.Repository
	strategies  strategy.Repository
	actions     action.Repository
	agent       AgentTrigger
	dedup       dedup.Store
	broadcaster *events.Broadcaster
	publisher   *events.Publisher
	notifier    *telegram.Notifier
	cfg         config.AgentConfig
	log         *logger.Logger
}

// NewService creates the investment service
func NewService(
	investments investment.Repository,
	strategies strategy.Repository,
	actions action.Repository,
	agent AgentTrigger,
	dedupStore dedup.Store,
	broadcaster *events.Broadcaster,
	publisher *events.Publisher,
	notifier *telegram.Notifier,
	cfg config.AgentConfig,
) *Service {
	return &Service{
		investments: investments,
		strategies:  strategies,
		actions:     actions,
		agent:       agent,
		dedup:       dedupStore,
		broadcaster: broadcaster,
		publisher:   publisher,
		notifier:    notifier,
		cfg:         cfg,
		log:         logger.Get().With("component", "investment_service"),
	}
}

// StartResult is the response of StartInvesting
type StartResult struct {
	InvestmentID uuid.UUID `json:"investmentId"`
	StrategyID   uuid.UUID `json:"strategyId"`
	StrategyName string    `json:"strategyName"`
	Status       string    `json:"status"`
	ActivatedAt  time.Time `json:"activatedAt"`
	AgentMessage string    `json:"agentMessage,omitempty"`
}

// StartInvesting activates a new investment for the user. At most one
// active investment per user; a second start is rejected. When an amount
// is given the agent run is dispatched in the background and the call
// returns immediately.
func (s *Service) StartInvesting(ctx context.Context, userID string, strategyID uuid.UUID, amount float64) (*StartResult, error) {
	strat, err := s.strategies.FindByID(ctx, strategyID)
	if err != nil {
		return nil, err
	}

	_, err = s.investments.FindActiveByUserID(ctx, userID)
	if err == nil {
		return nil, errors.Wrap(errors.ErrActiveInvestmentExists, "use the switch endpoint instead")
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrap(err, "check active investment")
	}

	inv := investment.New(userID, strategyID)
	if err := s.investments.Create(ctx, inv); err != nil {
		return nil, errors.Wrap(err, "create investment")
	}

	s.log.Infow("Investment started",
		"investment_id", inv.ID,
		"user_id", userID,
		"strategy", strat.Name,
	)

	result := &StartResult{
		InvestmentID: inv.ID,
		StrategyID:   strat.ID,
		StrategyName: strat.Name,
		Status:       inv.Status,
		ActivatedAt:  inv.ActivatedAt,
	}

	if amount > 0 {
		result.AgentMessage = "Agent is processing your investment..."
		go s.dispatchExecute(inv, strat, amount)
	}

	return result, nil
}

// ExecuteResult is the response of ExecuteInvestment
type ExecuteResult struct {
	InvestmentID uuid.UUID `json:"investmentId"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
}

// ExecuteInvestment re-triggers an agent run for an existing investment
func (s *Service) ExecuteInvestment(ctx context.Context, investmentID uuid.UUID, amount float64) (*ExecuteResult, error) {
	inv, err := s.investments.FindByID(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	strat, err := s.strategies.FindByID(ctx, inv.StrategyID)
	if err != nil {
		return nil, err
	}

	go s.dispatchExecute(inv, strat, amount)

	return &ExecuteResult{
		InvestmentID: inv.ID,
		Status:       "executing",
		Message:      "Agent is processing your investment...",
	}, nil
}

// StrategyRef is a compact strategy reference in switch responses
type StrategyRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// SwitchResult is the response of SwitchStrategy
type SwitchResult struct {
	PreviousStrategy StrategyRef `json:"previousStrategy"`
	NewStrategy      StrategyRef `json:"newStrategy"`
	Status           string      `json:"status"`
	ActivatedAt      time.Time   `json:"activatedAt"`
	AgentMessage     string      `json:"agentMessage"`
}

// SwitchStrategy deactivates the user's current investment, activates a
// new one on the target strategy and dispatches a rebalance run. The old
// row is never mutated beyond its deactivation timestamp.
func (s *Service) SwitchStrategy(ctx context.Context, userID string, newStrategyID uuid.UUID, totalAmountUSD float64) (*SwitchResult, error) {
	newStrat, err := s.strategies.FindByID(ctx, newStrategyID)
	if err != nil {
		return nil, err
	}

	current, err := s.investments.FindActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrNoActiveInvestment, "use the start endpoint instead")
		}
		return nil, errors.Wrap(err, "find active investment")
	}

	if current.StrategyID == newStrategyID {
		return nil, errors.Wrap(errors.ErrSameStrategy, "already invested in this strategy")
	}

	// A deleted old strategy must not block the switch
	oldStrat, err := s.strategies.FindByID(ctx, current.StrategyID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrap(err, "find current strategy")
	}

	if err := current.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.investments.Update(ctx, current); err != nil {
		return nil, errors.Wrap(err, "deactivate investment")
	}

	next := investment.New(userID, newStrategyID)
	if err := s.investments.Create(ctx, next); err != nil {
		return nil, errors.Wrap(err, "create investment")
	}

	oldName := current.StrategyID.String()
	if oldStrat != nil {
		oldName = oldStrat.Name
	}

	s.log.Infow("Strategy switched",
		"investment_id", next.ID,
		"user_id", userID,
		"from", oldName,
		"to", newStrat.Name,
	)

	go s.dispatchRebalance(next, oldStrat, current.StrategyID, newStrat, totalAmountUSD)

	return &SwitchResult{
		PreviousStrategy: StrategyRef{ID: current.StrategyID, Name: oldName},
		NewStrategy:      StrategyRef{ID: newStrat.ID, Name: newStrat.Name},
		Status:           next.Status,
		ActivatedAt:      next.ActivatedAt,
		AgentMessage:     "Rebalancing agent is processing your strategy switch...",
	}, nil
}

// LastAction summarizes the most recent ledger row
type LastAction struct {
	ActionType string    `json:"actionType"`
	Status     string    `json:"status"`
	ExecutedAt time.Time `json:"executedAt"`
}

// ActiveView is the response of Active
type ActiveView struct {
	InvestmentID uuid.UUID       `json:"investmentId"`
	Strategy     *ActiveStrategy `json:"strategy"`
	Status       string          `json:"status"`
	ActivatedAt  time.Time       `json:"activatedAt"`
	TotalActions int             `json:"totalActions"`
	LastAction   *LastAction     `json:"lastAgentAction"`
}

// ActiveStrategy is the strategy slice embedded in ActiveView
type ActiveStrategy struct {
	ID              uuid.UUID                 `json:"id"`
	Name            string                    `json:"name"`
	RiskLevel       string                    `json:"riskLevel"`
	ExpectedApyMin  float64                   `json:"expectedApyMin"`
	ExpectedApyMax  float64                   `json:"expectedApyMax"`
	PoolAllocations []strategy.PoolAllocation `json:"poolAllocations"`
}

// Active returns the user's active investment with its strategy and
// ledger summary
func (s *Service) Active(ctx context.Context, userID string) (*ActiveView, error) {
	inv, err := s.investments.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	strat, err := s.strategies.FindByID(ctx, inv.StrategyID)
	if err != nil {
		return nil, err
	}

	pools, err := strat.GetPoolAllocations()
	if err != nil {
		return nil, errors.Wrap(err, "read pool allocations")
	}

	actions, err := s.actions.FindByInvestmentID(ctx, inv.ID)
	if err != nil {
		return nil, errors.Wrap(err, "read action ledger")
	}

	view := &ActiveView{
		InvestmentID: inv.ID,
		Strategy: &ActiveStrategy{
			ID:              strat.ID,
			Name:            strat.Name,
			RiskLevel:       strat.RiskLevel,
			ExpectedApyMin:  strat.ExpectedApyMin,
			ExpectedApyMax:  strat.ExpectedApyMax,
			PoolAllocations: pools,
		},
		Status:       inv.Status,
		ActivatedAt:  inv.ActivatedAt,
		TotalActions: len(actions),
	}

	if len(actions) > 0 {
		last := actions[len(actions)-1]
		view.LastAction = &LastAction{
			ActionType: last.Type,
			Status:     last.Status,
			ExecutedAt: last.ExecutedAt,
		}
	}

	return view, nil
}

// ListActions returns the full ledger of an investment, oldest first
func (s *Service) ListActions(ctx context.Context, investmentID uuid.UUID) ([]*action.Action, error) {
	if _, err := s.investments.FindByID(ctx, investmentID); err != nil {
		return nil, err
	}
	return s.actions.FindByInvestmentID(ctx, investmentID)
}

// dispatchExecute runs outside the request lifecycle. The HTTP caller
// has already been answered; every outcome lands in the ledger.
func (s *Service) dispatchExecute(inv *investment.Investment, strat *strategy.Strategy, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchBudget)
	defer cancel()

	if !s.agent.Enabled() {
		s.createQueuedPlaceholder(ctx, inv, strat, amount)
		return
	}

	payload, err := agentadapter.NewStrategyPayload(strat)
	if err != nil {
		s.recordDispatchFailure(ctx, inv, strat.ID, err.Error())
		return
	}

	err = s.agent.TriggerExecute(ctx, agentadapter.ExecuteRequest{
		InvestmentID:  inv.ID.String(),
		UserID:        inv.UserID,
		Strategy:      payload,
		UserAmount:    amount,
		WalletAddress: s.cfg.WalletAddress,
		CallbackURL:   s.agent.CallbackURL(inv.ID),
	})
	if err != nil {
		s.log.Errorw("Agent execute dispatch failed",
			"investment_id", inv.ID,
			"error", err,
		)
		s.recordDispatchFailure(ctx, inv, strat.ID, err.Error())
		return
	}

	s.broadcaster.Publish(inv.ID, events.NewStatus("Agent is processing your investment..."))
}

// dispatchRebalance triggers a withdraw-and-resupply run after a switch
func (s *Service) dispatchRebalance(inv *investment.Investment, oldStrat *strategy.Strategy, oldStrategyID uuid.UUID, newStrat *strategy.Strategy, totalAmountUSD float64) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchBudget)
	defer cancel()

	if !s.agent.Enabled() {
		s.createRebalancePlaceholders(ctx, inv, oldStrat, oldStrategyID, newStrat, totalAmountUSD)
		return
	}

	newPayload, err := agentadapter.NewStrategyPayload(newStrat)
	if err != nil {
		s.recordDispatchFailure(ctx, inv, newStrat.ID, err.Error())
		return
	}

	prevPayload := agentadapter.StrategyPayload{ID: oldStrategyID.String(), Name: oldStrategyID.String()}
	if oldStrat != nil {
		if p, err := agentadapter.NewStrategyPayload(oldStrat); err == nil {
			prevPayload = p
		}
	}

	err = s.agent.TriggerRebalance(ctx, agentadapter.RebalanceRequest{
		InvestmentID:     inv.ID.String(),
		UserID:           inv.UserID,
		WalletAddress:    s.cfg.WalletAddress,
		TotalAmountUSD:   totalAmountUSD,
		PreviousStrategy: prevPayload,
		NewStrategy:      newPayload,
		CallbackURL:      s.agent.CallbackURL(inv.ID),
	})
	if err != nil {
		s.log.Errorw("Agent rebalance dispatch failed",
			"investment_id", inv.ID,
			"error", err,
		)
		s.recordDispatchFailure(ctx, inv, newStrat.ID, err.Error())
		return
	}

	s.broadcaster.Publish(inv.ID, events.NewStatus("Rebalancing agent is processing your strategy switch..."))
}

// createQueuedPlaceholder records a pending rate check when no agent
// service is configured, so the ledger still shows the intent.
func (s *Service) createQueuedPlaceholder(ctx context.Context, inv *investment.Investment, strat *strategy.Strategy, amount float64) {
	metrics.AgentDispatches.WithLabelValues("execute", "offline").Inc()
	s.log.Infow("Agent service not configured, recording pending action",
		"investment_id", inv.ID,
	)

	act := action.New(action.CreateParams{
		InvestmentID: inv.ID,
		UserID:       inv.UserID,
		StrategyID:   strat.ID,
		Type:         action.TypeRateCheck,
		Chain:        strat.DefaultChain(s.cfg.DefaultChain),
		Protocol:     s.cfg.DefaultProtocol,
		Asset:        s.cfg.DefaultAsset,
		Amount:       formatAmount(amount),
		Rationale: fmt.Sprintf(
			"Agent queued: will allocate $%v across %s pools. Set AGENT_SERVICE_URL to enable live execution.",
			amount, strat.Name,
		),
	})

	s.persistAction(ctx, act)
}

// createRebalancePlaceholders records the pending withdraw and supply
// pair of an offline rebalance
func (s *Service) createRebalancePlaceholders(ctx context.Context, inv *investment.Investment, oldStrat *strategy.Strategy, oldStrategyID uuid.UUID, newStrat *strategy.Strategy, totalAmountUSD float64) {
	metrics.AgentDispatches.WithLabelValues("rebalance", "offline").Inc()
	s.log.Infow("Agent service not configured, recording pending rebalance",
		"investment_id", inv.ID,
	)

	oldName := oldStrategyID.String()
	oldChain := s.cfg.DefaultChain
	if oldStrat != nil {
		oldName = oldStrat.Name
		oldChain = oldStrat.DefaultChain(s.cfg.DefaultChain)
	}
	amount := formatAmount(totalAmountUSD)

	withdraw := action.New(action.CreateParams{
		InvestmentID: inv.ID,
		UserID:       inv.UserID,
		StrategyID:   oldStrategyID,
		Type:         action.TypeWithdraw,
		Chain:        oldChain,
		Protocol:     s.cfg.DefaultProtocol,
		Asset:        s.cfg.DefaultAsset,
		Amount:       amount,
		Rationale: fmt.Sprintf(
			"Rebalance queued: withdraw from %s. Set AGENT_SERVICE_URL to enable live execution.",
			oldName,
		),
	})
	s.persistAction(ctx, withdraw)

	supply := action.New(action.CreateParams{
		InvestmentID: inv.ID,
		UserID:       inv.UserID,
		StrategyID:   newStrat.ID,
		Type:         action.TypeSupply,
		Chain:        newStrat.DefaultChain(s.cfg.DefaultChain),
		Protocol:     s.cfg.DefaultProtocol,
		Asset:        s.cfg.DefaultAsset,
		Amount:       amount,
		Rationale: fmt.Sprintf(
			"Rebalance queued: supply to %s pools. Set AGENT_SERVICE_URL to enable live execution.",
			newStrat.Name,
		),
	})
	s.persistAction(ctx, supply)
}

// recordDispatchFailure writes a failed rate check so a dispatch that
// never reached the agent is still visible in the ledger, and closes
// the live stream for any watchers.
func (s *Service) recordDispatchFailure(ctx context.Context, inv *investment.Investment, strategyID uuid.UUID, reason string) {
	act := action.New(action.CreateParams{
		InvestmentID: inv.ID,
		UserID:       inv.UserID,
		StrategyID:   strategyID,
		Type:         action.TypeRateCheck,
		Chain:        s.cfg.DefaultChain,
		Protocol:     s.cfg.DefaultProtocol,
		Asset:        s.cfg.DefaultAsset,
		Amount:       "0",
		Rationale:    fmt.Sprintf("Agent execution failed: %s", reason),
	})
	if err := act.MarkFailed(reason); err != nil {
		s.log.Errorw("Failed to mark dispatch failure", "error", err)
	}
	s.persistAction(ctx, act)

	s.broadcaster.Publish(inv.ID, events.NewError(reason))
	s.broadcaster.Publish(inv.ID, events.NewDone())

	s.notifier.NotifyRunFailed(inv.ID.String(), reason)
}

func (s *Service) persistAction(ctx context.Context, act *action.Action) {
	if err := s.actions.Create(ctx, act); err != nil {
		s.log.Errorw("Failed to persist action",
			"investment_id", act.InvestmentID,
			"action_type", act.Type,
			"error", err,
		)
		return
	}
	metrics.ActionsRecorded.WithLabelValues(act.Type, act.Status).Inc()
	s.publisher.PublishActionRecorded(ctx, act)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
