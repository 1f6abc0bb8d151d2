// Package portfolio derives the live portfolio view of an active
// investment. Nothing here is persisted: every read reconciles the
// action ledger against fresh on-chain balances, so the view self-heals
// from ledger plus chain truth.
package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autopilot/internal/adapters/chain"
	"autopilot/internal/adapters/config"
	"autopilot/internal/domain/action"
	"autopilot/internal/domain/investment"
	"autopilot/internal/domain/strategy"
	"autopilot/internal/metrics"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

// Pool identifies a liquidity pool
type Pool struct {
	Chain    string `json:"chain"`
	Protocol string `json:"protocol"`
	Asset    string `json:"asset"`
}

// ActionView is one ledger row in a pool position, newest first
type ActionView struct {
	ID               uuid.UUID `json:"id"`
	ActionType       string    `json:"actionType"`
	AmountUSD        float64   `json:"amountUsd"`
	ExpectedApyAfter *float64  `json:"expectedApyAfter"`
	Status           string    `json:"status"`
	TxHash           *string   `json:"txHash"`
	Rationale        string    `json:"rationale"`
	ExecutedAt       time.Time `json:"executedAt"`
}

// Position is the reconciled per-pool aggregate
type Position struct {
	Pool              Pool         `json:"pool"`
	OnChainBalanceUSD float64      `json:"onChainBalanceUsd"`
	TotalSuppliedUSD  float64      `json:"totalSuppliedUsd"`
	TotalWithdrawnUSD float64      `json:"totalWithdrawnUsd"`
	NetInvestedUSD    float64      `json:"netInvestedUsd"`
	EarnedYieldUSD    float64      `json:"earnedYieldUsd"`
	LatestApyPercent  *float64     `json:"latestApyPercent"`
	AllocationPercent float64      `json:"allocationPercent"`
	Actions           []ActionView `json:"actions"`
}

// Portfolio is the full reconciliation output
type Portfolio struct {
	InvestmentID       uuid.UUID  `json:"investmentId"`
	StrategyName       string     `json:"strategyName"`
	RiskLevel          string     `json:"riskLevel"`
	TotalValueUSD      float64    `json:"totalValueUsd"`
	TotalInvestedUSD   float64    `json:"totalInvestedUsd"`
	TotalEarnedUSD     float64    `json:"totalEarnedUsd"`
	WalletBalanceUSD   float64    `json:"walletBalanceUsd"`
	InvestedBalanceUSD float64    `json:"investedBalanceUsd"`
	WalletAddress      string     `json:"walletAddress"`
	Pools              []Position `json:"pools"`
}

// Service reconciles ledger state against on-chain balances
type Service struct {
	investments investment.Repository
	strategies  strategy.Repository
	actions     action.Repository
	reader      chain.BalanceReader
	wallet      string
	log         *logger.Logger
}

// NewService creates the portfolio service. A nil reader disables chain
// reads; balances reconcile as zero.
func NewService(
	investments investment.Repository,
	strategies strategy.Repository,
	actions action.Repository,
	reader chain.BalanceReader,
	cfg config.AgentConfig,
) *Service {
	return &Service{
		investments: investments,
		strategies:  strategies,
		actions:     actions,
		reader:      reader,
		wallet:      cfg.WalletAddress,
		log:         logger.Get().With("component", "portfolio_service"),
	}
}

// GetPortfolio reconciles the user's active investment. Returns
// errors.ErrNotFound when the user has no active investment and
// errors.ErrChainUnavailable when the balance read fails.
func (s *Service) GetPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	start := time.Now()
	defer func() {
		metrics.ReconciliationDuration.Observe(time.Since(start).Seconds())
	}()

	inv, err := s.investments.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	strat, err := s.strategies.FindByID(ctx, inv.StrategyID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	ledger, err := s.actions.FindByInvestmentID(ctx, inv.ID)
	if err != nil {
		return nil, errors.Wrap(err, "read action ledger")
	}

	walletBalance, investedBalance, err := s.readBalances(ctx)
	if err != nil {
		return nil, err
	}

	pools := s.reconcilePools(ledger, strat, investedBalance)

	totalInvested := decimal.Zero
	for _, p := range pools {
		totalInvested = totalInvested.Add(decimal.NewFromFloat(p.NetInvestedUSD))
	}
	totalValue := walletBalance.Add(investedBalance)
	totalEarned := decimal.Max(decimal.Zero, investedBalance.Sub(totalInvested))

	out := &Portfolio{
		InvestmentID:       inv.ID,
		StrategyName:       "Unknown",
		RiskLevel:          "unknown",
		TotalValueUSD:      totalValue.InexactFloat64(),
		TotalInvestedUSD:   totalInvested.InexactFloat64(),
		TotalEarnedUSD:     totalEarned.InexactFloat64(),
		WalletBalanceUSD:   walletBalance.InexactFloat64(),
		InvestedBalanceUSD: investedBalance.InexactFloat64(),
		WalletAddress:      s.wallet,
		Pools:              pools,
	}
	if strat != nil {
		out.StrategyName = strat.Name
		out.RiskLevel = strat.RiskLevel
	}
	return out, nil
}

func (s *Service) readBalances(ctx context.Context) (wallet, invested decimal.Decimal, err error) {
	if s.reader == nil {
		return decimal.Zero, decimal.Zero, nil
	}

	wallet, err = s.reader.WalletBalance(ctx, s.wallet)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	invested, err = s.reader.YieldBalance(ctx, s.wallet)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return wallet, invested, nil
}

// reconcilePools partitions the ledger by pool key and nets executed
// supplies against executed withdrawals. The invested balance is
// attributed to each pool as-is: a single yield-bearing balance is
// assumed to back the whole investment.
func (s *Service) reconcilePools(ledger []*action.Action, strat *strategy.Strategy, investedBalance decimal.Decimal) []Position {
	var allocations []strategy.PoolAllocation
	if strat != nil {
		if pools, err := strat.GetPoolAllocations(); err == nil {
			allocations = pools
		}
	}

	grouped := make(map[string][]*action.Action)
	var order []string
	for _, a := range ledger {
		key := a.PoolKey()
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], a)
	}

	positions := make([]Position, 0, len(order))
	for _, key := range order {
		actions := grouped[key]
		first := actions[0]

		supplied := decimal.Zero
		withdrawn := decimal.Zero
		for _, a := range actions {
			if a.Status != action.StatusExecuted {
				continue
			}
			switch a.Type {
			case action.TypeSupply:
				supplied = supplied.Add(a.AmountDecimal())
			case action.TypeWithdraw:
				withdrawn = withdrawn.Add(a.AmountDecimal())
			}
		}
		netInvested := supplied.Sub(withdrawn)
		earned := decimal.Max(decimal.Zero, investedBalance.Sub(netInvested))

		positions = append(positions, Position{
			Pool:              Pool{Chain: first.Chain, Protocol: first.Protocol, Asset: first.Asset},
			OnChainBalanceUSD: investedBalance.InexactFloat64(),
			TotalSuppliedUSD:  supplied.InexactFloat64(),
			TotalWithdrawnUSD: withdrawn.InexactFloat64(),
			NetInvestedUSD:    netInvested.InexactFloat64(),
			EarnedYieldUSD:    earned.InexactFloat64(),
			LatestApyPercent:  latestApy(actions),
			AllocationPercent: allocationPercent(allocations, first),
			Actions:           actionViews(actions),
		})
	}
	return positions
}

// latestApy returns the expectedApyAfter of the most recent row that
// carries one
func latestApy(actions []*action.Action) *float64 {
	var latest *action.Action
	for _, a := range actions {
		if a.ExpectedApyAfter == nil {
			continue
		}
		if latest == nil || a.ExecutedAt.After(latest.ExecutedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil
	}
	return latest.ExpectedApyAfter
}

// allocationPercent looks up the strategy's target percentage for the
// pool, defaulting to 100 when the strategy no longer declares it
func allocationPercent(allocations []strategy.PoolAllocation, a *action.Action) float64 {
	for _, alloc := range allocations {
		if alloc.Chain == a.Chain && alloc.Protocol == a.Protocol && alloc.Asset == a.Asset {
			return alloc.AllocationPercentage
		}
	}
	return 100
}

func actionViews(actions []*action.Action) []ActionView {
	views := make([]ActionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, ActionView{
			ID:               a.ID,
			ActionType:       a.Type,
			AmountUSD:        a.AmountDecimal().InexactFloat64(),
			ExpectedApyAfter: a.ExpectedApyAfter,
			Status:           a.Status,
			TxHash:           a.TxHash,
			Rationale:        a.Rationale,
			ExecutedAt:       a.ExecutedAt,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].ExecutedAt.After(views[j].ExecutedAt)
	})
	return views
}
