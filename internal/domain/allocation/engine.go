// Package allocation computes per-pool cost/benefit verdicts for an
// investment amount. It is pure, with no I/O and no error paths. A pool
// with no known rate degrades to a zero APY, which forces a skip.
package allocation

import (
	"fmt"
	"math"

	"autopilot/internal/domain/strategy"
)

// Decision is the verdict for one pool, one-to-one with a future ledger
// row once dispatched.
type Decision struct {
	Pool          strategy.PoolAllocation
	AmountUSD     float64
	ExpectedAPY   float64
	GasCostUSD    float64
	ShouldExecute bool
	Rationale     string
}

// ComputeParams carries the inputs for one allocation pass
type ComputeParams struct {
	Pools          []strategy.PoolAllocation
	TotalAmountUSD float64

	// CurrentRates maps PoolAllocation.Key() to the pool's supply APY
	CurrentRates map[string]float64

	GasPriceUSD        float64
	RebalanceThreshold float64

	// CurrentAPY is the baseline the funds already earn; nil for a
	// first-time investment
	CurrentAPY *float64
}

// Compute produces one decision per input pool, preserving input order
func Compute(p ComputeParams) []Decision {
	decisions := make([]Decision, 0, len(p.Pools))

	for _, pool := range p.Pools {
		amountUSD := p.TotalAmountUSD * pool.AllocationPercentage / 100
		expectedAPY := p.CurrentRates[pool.Key()]
		annualYieldUSD := amountUSD * expectedAPY / 100
		gasCostUSD := p.GasPriceUSD

		d := Decision{
			Pool:        pool,
			AmountUSD:   amountUSD,
			ExpectedAPY: expectedAPY,
			GasCostUSD:  gasCostUSD,
		}

		switch {
		case expectedAPY == 0 || annualYieldUSD <= gasCostUSD:
			d.Rationale = fmt.Sprintf(
				"Skipped: gas cost ($%.4f) exceeds projected annual yield ($%.4f)",
				gasCostUSD, annualYieldUSD,
			)

		case p.CurrentAPY != nil && math.Abs(expectedAPY-*p.CurrentAPY) < p.RebalanceThreshold:
			d.Rationale = fmt.Sprintf(
				"Skipped: APY improvement %.2f%% is below rebalance threshold %g%%",
				expectedAPY-*p.CurrentAPY, p.RebalanceThreshold,
			)

		default:
			d.ShouldExecute = true
			d.Rationale = fmt.Sprintf(
				"Supply $%.2f to %s on %s at %g%% APY (gas: $%.4f, annual yield: $%.2f)",
				amountUSD, pool.Protocol, pool.Chain, expectedAPY, gasCostUSD, annualYieldUSD,
			)
		}

		decisions = append(decisions, d)
	}

	return decisions
}
