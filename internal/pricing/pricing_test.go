package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/precifica/internal/composition"
	"github.com/Simplici0/precifica/internal/fees"
)

const cent = 0.01

func TestSolvePrice_FlatClosedForm(t *testing.T) {
	in := fees.FeeInputs{TaxPct: 12, CommissionPct: 14, MarginPct: 15, MarketingPct: 3}

	result := SolvePrice(100, in)

	assert.Equal(t, 178.57, result.SalePrice)
	assert.True(t, result.Converged)
	assert.Equal(t, 0, result.Iterations)
	assert.False(t, result.HighValue)
}

func TestSolvePrice_PackagingShippingAndDiscount(t *testing.T) {
	store := fees.FeeInputs{TaxPct: 12, MarginPct: 15, CommissionPct: 6, MarketingPct: 2, PackagingCost: 2.5}
	assert.Equal(t, 80.77, SolvePrice(50, store).SalePrice)

	discounted := fees.FeeInputs{DiscountPct: 10, TaxPct: 12, CommissionPct: 14, MarginPct: 15, MarketingPct: 3}
	result := SolvePrice(100, discounted)
	assert.Equal(t, 160.71, result.SalePrice)
	assert.InDelta(t, 10, result.Breakdown.Discount, 1e-9)
	assert.InDelta(t, 90, result.Breakdown.NetCost, 1e-9)

	shipped := fees.FeeInputs{TaxPct: 10, ShippingCost: 8, PackagingCost: 2}
	assert.Equal(t, 122.22, SolvePrice(100, shipped).SalePrice)
}

func TestSolvePrice_ZeroCostShortCircuits(t *testing.T) {
	degenerate := fees.FeeInputs{TaxPct: 80, CommissionPct: 80}
	for _, cost := range []float64{0, -10, math.NaN()} {
		result := SolvePrice(cost, degenerate)
		assert.Equal(t, Result{Converged: true}, result, "cost %v", cost)
	}

	tiered := NewSolver(DefaultOptions()).Solve(0, 0, fees.DefaultTable()[fees.Shopee])
	assert.Equal(t, Result{Converged: true}, tiered)
}

func TestSolvePrice_DegenerateFeesYieldZero(t *testing.T) {
	tests := []struct {
		name string
		in   fees.FeeInputs
	}{
		{"exactly 100", fees.FeeInputs{TaxPct: 50, CommissionPct: 30, MarginPct: 20}},
		{"above 100", fees.FeeInputs{TaxPct: 60, CommissionPct: 30, MarginPct: 20, MarketingPct: 5}},
		{"nan percent", fees.FeeInputs{TaxPct: math.NaN()}},
		{"infinite shipping", fees.FeeInputs{TaxPct: 10, ShippingCost: math.Inf(1)}},
		{"discount wipes cost", fees.FeeInputs{DiscountPct: 300, TaxPct: 10}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := SolvePrice(100, tc.in)
			assert.Equal(t, 0.0, result.SalePrice)
			assert.False(t, math.IsNaN(result.SalePrice) || math.IsInf(result.SalePrice, 0))
			assert.False(t, result.Converged)
			assert.Equal(t, 100.0, result.Breakdown.Cost, "cost basis must survive a zero price")
			assert.InDelta(t, 100*(1-tc.in.DiscountPct/100), result.Breakdown.NetCost, 1e-9)
		})
	}
}

func TestSolve_FlatHighValueRule(t *testing.T) {
	sched := fees.Schedule{
		Marketplace: fees.Shopee,
		Brackets:    []fees.Bracket{{PackagingCost: 6.5, CommissionPct: 20, TaxPct: 12, MarginPct: 15, MarketingPct: 2}},
		HighValue:   &fees.HighValueRule{Threshold: 500, Shipping: 100},
	}
	solver := NewSolver(DefaultOptions())

	high := solver.Solve(600, 0, sched)
	assert.Equal(t, 995.07, high.SalePrice)
	assert.True(t, high.HighValue)
	assert.Equal(t, 0.0, high.Effective.CommissionPct)
	assert.Equal(t, 100.0, high.Effective.ShippingCost)
	assert.Equal(t, 20.0, high.Bracket.CommissionPct)

	low := solver.Solve(100, 0, sched)
	assert.False(t, low.HighValue)
	assert.Equal(t, 208.82, low.SalePrice)
}

func TestSolve_TieredConvergesInsideBracket(t *testing.T) {
	shopee := fees.DefaultTable()[fees.Shopee]
	solver := NewSolver(DefaultOptions())

	tests := []struct {
		name     string
		cost     float64
		want     float64
		shipping float64
	}{
		{"lowest bracket", 20, 59.80, 4},
		{"third bracket", 50, 134.21, 20},
		{"unbounded bracket", 300, 583.33, 26},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := solver.Solve(tc.cost, 0, shopee)

			require.True(t, result.Converged)
			assert.LessOrEqual(t, result.Iterations, 4)
			assert.Equal(t, tc.want, result.SalePrice)
			assert.Equal(t, tc.shipping, result.Bracket.ShippingCost)
			assert.Equal(t, shopee.Resolve(result.SalePrice), result.Bracket)

			reseeded := NewSolver(Options{Seed: result.SalePrice}).Solve(tc.cost, 0, shopee)
			assert.True(t, reseeded.Converged)
			assert.Equal(t, 1, reseeded.Iterations)
			assert.InDelta(t, result.SalePrice, reseeded.SalePrice, cent)
		})
	}
}

func TestSolve_TieredHighValueCheckedPerIteration(t *testing.T) {
	shopee := fees.DefaultTable()[fees.Shopee]

	result := NewSolver(DefaultOptions()).Solve(480, 0, shopee)

	require.True(t, result.Converged)
	assert.Equal(t, 826.06, result.SalePrice)
	assert.True(t, result.HighValue)
	assert.Equal(t, 26.0, result.Bracket.ShippingCost)
	assert.Equal(t, 100.0, result.Effective.ShippingCost)
	assert.Equal(t, 0.0, result.Breakdown.Commission)
}

func TestSolve_PriceCoversEveryFee(t *testing.T) {
	solver := NewSolver(DefaultOptions())

	for _, id := range fees.DefaultTable().IDs() {
		sched := fees.DefaultTable()[id]
		for _, cost := range []float64{5, 37.9, 120, 480, 2500} {
			result := solver.Solve(cost, 5, sched)
			require.True(t, result.Converged, "%s cost %.2f", id, cost)

			b := result.Breakdown
			feeTotal := b.Tax + b.Commission + b.Margin + b.Marketing
			left := result.SalePrice - feeTotal - b.PackagingCost - b.ShippingCost
			assert.InDelta(t, b.NetCost, left, 0.05, "%s cost %.2f", id, cost)
		}
	}
}

func TestSolve_OscillationReportsNotConverged(t *testing.T) {
	sched := fees.Schedule{
		Marketplace: "oscillating",
		Brackets: []fees.Bracket{
			{UpperBound: 100, TaxPct: 50, ShippingCost: 60},
			{TaxPct: 50},
		},
	}

	result := NewSolver(DefaultOptions()).Solve(50, 0, sched)
	assert.False(t, result.Converged)
	assert.Equal(t, 8, result.Iterations)
	assert.Equal(t, 100.0, result.SalePrice)
	assert.True(t, result.Bracket.Unbounded(), "bracket must be the one that produced the last candidate")

	short := NewSolver(Options{MaxIterations: 3}).Solve(50, 0, sched)
	assert.False(t, short.Converged)
	assert.Equal(t, 3, short.Iterations)
	assert.Equal(t, 220.0, short.SalePrice)
}

func TestSolve_TieredDegenerateBracket(t *testing.T) {
	sched := fees.Schedule{
		Marketplace: "broken",
		Brackets: []fees.Bracket{
			{UpperBound: 50, TaxPct: 10},
			{TaxPct: 60, CommissionPct: 40},
		},
	}

	result := NewSolver(DefaultOptions()).Solve(100, 0, sched)
	assert.Equal(t, 0.0, result.SalePrice)
	assert.False(t, result.Converged)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 100.0, result.Breakdown.Cost)
	assert.Equal(t, 100.0, result.Breakdown.NetCost)
}

func TestSolve_DefaultSchedulesConvergeAcrossCosts(t *testing.T) {
	solver := NewSolver(DefaultOptions())
	table := fees.DefaultTable()

	for _, id := range table.IDs() {
		sched := table[id]
		var stuck []float64
		for cost := 1.0; cost <= 600; cost += 0.5 {
			if !solver.Solve(cost, 0, sched).Converged {
				stuck = append(stuck, cost)
			}
		}
		assert.Empty(t, stuck, "%s never settled for these costs", id)
	}
}

func TestNewSolver_Defaults(t *testing.T) {
	assert.Equal(t, DefaultOptions(), NewSolver(Options{}).Options())
	assert.Equal(t, DefaultOptions(), NewSolver(Options{MaxIterations: -1, Tolerance: math.NaN(), Seed: -5}).Options())

	custom := Options{MaxIterations: 20, Tolerance: 0.001, Seed: 50}
	assert.Equal(t, custom, NewSolver(custom).Options())
}

func TestSolver_Quote(t *testing.T) {
	items := []composition.Item{
		{Code: "SKU-1", Quantity: "2", UnitCost: "30,00"},
		{Code: "", Quantity: "1", UnitCost: "40"},
	}
	in := fees.FeeInputs{TaxPct: 12, CommissionPct: 14, MarginPct: 15, MarketingPct: 3}

	result := NewSolver(DefaultOptions()).Quote(items, 0, in.Schedule(fees.Store))

	assert.Equal(t, 178.57, result.SalePrice)
	assert.InDelta(t, 100, result.Breakdown.Cost, 1e-9)
}

func TestMarkup(t *testing.T) {
	assert.Equal(t, MarkupResult{Percent: 20, Status: MarkupProfit}, Markup(100, 120, 0))
	assert.Equal(t, MarkupResult{Percent: -18.18, Status: MarkupLoss}, Markup(100, 90, 10))
	assert.Equal(t, MarkupResult{Percent: 0, Status: MarkupNeutral}, Markup(100, 100, 0))
	assert.Equal(t, MarkupResult{Percent: 0, Status: MarkupNeutral}, Markup(0, 100, 0))
	assert.Equal(t, MarkupResult{Percent: 0, Status: MarkupNeutral}, Markup(100, 0, 5))
}
