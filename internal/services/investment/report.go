package investment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"autopilot/internal/adapters/telegram"
	"autopilot/internal/domain/action"
	"autopilot/internal/events"
	"autopilot/internal/metrics"
	"autopilot/pkg/errors"
)

// ReportedPool identifies the pool an agent action targeted
type ReportedPool struct {
	Chain    string `json:"chain"`
	Protocol string `json:"protocol"`
	Asset    string `json:"asset"`
}

// ReportedAction is one action in an agent result callback
type ReportedAction struct {
	ActionType  string        `json:"actionType"`
	Pool        *ReportedPool `json:"pool"`
	AmountUSD   *float64      `json:"amountUsd"`
	ExpectedApy *float64      `json:"expectedApy"`
	GasCostUSD  *float64      `json:"gasCostUsd"`
	Status      string        `json:"status"`
	TxHash      string        `json:"txHash"`
	Rationale   string        `json:"rationale"`
}

// ReportRequest is the agent's result callback payload
type ReportRequest struct {
	UserID     string           `json:"userId"`
	StrategyID string           `json:"strategyId"`
	Actions    []ReportedAction `json:"actions"`
	Summary    string           `json:"summary"`
}

// ReportResult summarizes what a callback changed in the ledger
type ReportResult struct {
	Recorded   int `json:"recorded"`
	Executed   int `json:"executed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// ReportAgentResults records the actions a remote agent run produced.
// Each reported action becomes one ledger row created directly in its
// terminal status. Replayed callbacks are detected per action through
// the dedup store and ignored, so retries by the agent are safe.
func (s *Service) ReportAgentResults(ctx context.Context, investmentID uuid.UUID, req ReportRequest) (*ReportResult, error) {
	inv, err := s.investments.FindByID(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	userID := req.UserID
	if userID == "" {
		userID = inv.UserID
	}
	strategyID := inv.StrategyID
	if req.StrategyID != "" {
		parsed, err := uuid.Parse(req.StrategyID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidInput, "invalid strategyId")
		}
		strategyID = parsed
	}

	result := &ReportResult{}
	for i, reported := range req.Actions {
		chain, protocol, asset := s.poolOrDefaults(reported.Pool)
		poolKey := fmt.Sprintf("%s:%s:%s", chain, protocol, asset)

		token := fmt.Sprintf("report:%s:%s:%d", investmentID, poolKey, i)
		claimed, err := s.dedup.Claim(ctx, token, reportDedupTTL)
		if err != nil {
			return nil, errors.Wrap(err, "claim dedup token")
		}
		if !claimed {
			result.Duplicates++
			continue
		}

		amount := 0.0
		if reported.AmountUSD != nil {
			amount = *reported.AmountUSD
		}

		act := action.New(action.CreateParams{
			InvestmentID:     investmentID,
			UserID:           userID,
			StrategyID:       strategyID,
			Type:             action.NormalizeType(reported.ActionType),
			Chain:            chain,
			Protocol:         protocol,
			Asset:            asset,
			Amount:           formatAmount(amount),
			Rationale:        reported.Rationale,
			GasCostUSD:       reported.GasCostUSD,
			ExpectedApyAfter: reported.ExpectedApy,
		})

		switch reported.Status {
		case action.StatusExecuted:
			if reported.TxHash != "" {
				if err := act.MarkExecuted(reported.TxHash); err != nil {
					return nil, err
				}
				result.Executed++
			}
		case action.StatusFailed:
			if err := act.MarkFailed("Agent reported failure"); err != nil {
				return nil, err
			}
			result.Failed++
		case action.StatusSkipped:
			if err := act.MarkSkipped(reported.Rationale); err != nil {
				return nil, err
			}
			result.Skipped++
		}

		if err := s.actions.Create(ctx, act); err != nil {
			return nil, errors.Wrap(err, "persist reported action")
		}
		result.Recorded++
		metrics.CallbackActions.WithLabelValues(act.Type, act.Status).Inc()
		metrics.ActionsRecorded.WithLabelValues(act.Type, act.Status).Inc()
		s.publisher.PublishActionRecorded(ctx, act)
	}

	s.finishRun(inv.ID, req, result)

	s.log.Infow("Agent results recorded",
		"investment_id", investmentID,
		"recorded", result.Recorded,
		"executed", result.Executed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duplicates", result.Duplicates,
	)
	return result, nil
}

// finishRun closes the live stream for this run and notifies operators.
// A callback that recorded nothing new is a replay; the stream already
// saw its terminal events, so nothing is emitted again.
func (s *Service) finishRun(investmentID uuid.UUID, req ReportRequest, result *ReportResult) {
	if result.Recorded == 0 {
		if result.Duplicates > 0 {
			metrics.AgentCallbacks.WithLabelValues("duplicate").Inc()
		}
		return
	}

	summary := req.Summary
	if summary == "" {
		summary = fmt.Sprintf("Run complete: %d executed, %d skipped, %d failed",
			result.Executed, result.Skipped, result.Failed)
	}

	switch {
	case result.Executed == 0 && result.Skipped == 0 && result.Failed > 0:
		metrics.AgentCallbacks.WithLabelValues("error").Inc()
		s.broadcaster.Publish(investmentID, events.NewError(summary))
		s.notifier.NotifyRunFailed(investmentID.String(), summary)
	case result.Failed > 0:
		metrics.AgentCallbacks.WithLabelValues("partial").Inc()
		s.broadcaster.Publish(investmentID, events.NewResult(summary))
		s.notifyCompleted(investmentID, req, result)
	default:
		metrics.AgentCallbacks.WithLabelValues("success").Inc()
		s.broadcaster.Publish(investmentID, events.NewResult(summary))
		s.notifyCompleted(investmentID, req, result)
	}
	s.broadcaster.Publish(investmentID, events.NewDone())
}

func (s *Service) notifyCompleted(investmentID uuid.UUID, req ReportRequest, result *ReportResult) {
	var total float64
	for _, a := range req.Actions {
		if a.AmountUSD != nil && a.Status == action.StatusExecuted {
			total += *a.AmountUSD
		}
	}
	s.notifier.NotifyRunCompleted(telegram.RunSummary{
		InvestmentID: investmentID.String(),
		UserID:       req.UserID,
		StrategyName: req.StrategyID,
		Executed:     result.Executed,
		Failed:       result.Failed,
		Skipped:      result.Skipped,
		TotalUSD:     total,
	})
}

func (s *Service) poolOrDefaults(pool *ReportedPool) (chain, protocol, asset string) {
	chain, protocol, asset = s.cfg.DefaultChain, s.cfg.DefaultProtocol, s.cfg.DefaultAsset
	if pool == nil {
		return
	}
	if pool.Chain != "" {
		chain = pool.Chain
	}
	if pool.Protocol != "" {
		protocol = pool.Protocol
	}
	if pool.Asset != "" {
		asset = pool.Asset
	}
	return
}
