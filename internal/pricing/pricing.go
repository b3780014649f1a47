package pricing

import (
	"math"

	"github.com/Simplici0/precifica/internal/composition"
	"github.com/Simplici0/precifica/internal/fees"
)

// Options tunes the fixed-point solve used for tiered schedules.
type Options struct {
	MaxIterations int     `json:"maxIterations"`
	Tolerance     float64 `json:"tolerance"`
	Seed          float64 `json:"seed"`
}

// DefaultOptions returns the iteration budget used when none is configured.
func DefaultOptions() Options {
	return Options{MaxIterations: 8, Tolerance: 0.01, Seed: 100}
}

// Breakdown contains the money amounts behind a solved sale price.
type Breakdown struct {
	Cost          float64 `json:"cost"`
	Discount      float64 `json:"discount"`
	NetCost       float64 `json:"netCost"`
	PackagingCost float64 `json:"packagingCost"`
	ShippingCost  float64 `json:"shippingCost"`
	Tax           float64 `json:"tax"`
	Commission    float64 `json:"commission"`
	Margin        float64 `json:"margin"`
	Marketing     float64 `json:"marketing"`
}

// Result is the outcome of a price solve. A zero SalePrice with a positive
// cost means the fee configuration is degenerate.
type Result struct {
	SalePrice float64 `json:"salePrice"`
	// Converged is false when the iteration budget ran out or the fees made
	// the equation unsolvable.
	Converged  bool `json:"converged"`
	Iterations int  `json:"iterations"`
	// Bracket is the schedule bracket whose fees produced SalePrice;
	// Effective is the same bracket after the high-value rule.
	Bracket   fees.Bracket `json:"bracket"`
	Effective fees.Bracket `json:"effective"`
	HighValue bool         `json:"highValue"`
	Breakdown Breakdown    `json:"breakdown"`
}

// Solver computes sale prices. The zero value is not usable; build one with
// NewSolver.
type Solver struct {
	opts Options
}

// NewSolver returns a Solver. Non-positive option fields take their defaults.
func NewSolver(opts Options) Solver {
	def := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if !(opts.Tolerance > 0) {
		opts.Tolerance = def.Tolerance
	}
	if !(opts.Seed > 0) {
		opts.Seed = def.Seed
	}
	return Solver{opts: opts}
}

// Options returns the solver's effective options.
func (s Solver) Options() Options {
	return s.opts
}

// SolvePrice solves a flat fee configuration with the default options.
func SolvePrice(totalCost float64, in fees.FeeInputs) Result {
	return NewSolver(DefaultOptions()).Solve(totalCost, in.DiscountPct, in.Schedule(""))
}

// Quote totals the composition and solves it against sched.
func (s Solver) Quote(items []composition.Item, discountPct float64, sched fees.Schedule) Result {
	return s.Solve(composition.Total(items), discountPct, sched)
}

// Solve computes the sale price that covers totalCost (after discountPct)
// plus every fee of sched.
//
// Single-bracket schedules use the closed form
//
//	price = (netCost + shipping + packaging) / (1 - (tax+commission+margin+marketing)/100)
//
// Tiered schedules iterate that equation from the seed, re-resolving the
// bracket at each candidate price, until two consecutive candidates differ
// by less than the tolerance. Solve never panics; unsolvable inputs yield a
// zero price.
func (s Solver) Solve(totalCost, discountPct float64, sched fees.Schedule) Result {
	if !(totalCost > 0) {
		return Result{Converged: true}
	}
	netCost := totalCost * (1 - discountPct/100)

	if !sched.Tiered() {
		b := sched.Resolve(0)
		eff, hv := sched.Effective(b, netCost)
		price, ok := closedForm(netCost, eff)
		if !ok {
			return unsolved(totalCost, netCost, 0, b, eff, hv)
		}
		return newResult(totalCost, netCost, price, true, 0, b, eff, hv)
	}

	var (
		b, eff fees.Bracket
		hv     bool
	)
	price := s.opts.Seed
	for i := 1; i <= s.opts.MaxIterations; i++ {
		b = sched.Resolve(price)
		eff, hv = sched.Effective(b, netCost)
		candidate, ok := closedForm(netCost, eff)
		if !ok {
			return unsolved(totalCost, netCost, i, b, eff, hv)
		}
		if math.Abs(candidate-price) < s.opts.Tolerance {
			return newResult(totalCost, netCost, candidate, true, i, b, eff, hv)
		}
		price = candidate
	}

	// Budget exhausted, possibly oscillating between brackets.
	return newResult(totalCost, netCost, price, false, s.opts.MaxIterations, b, eff, hv)
}

// closedForm solves the price equation for one bracket, rounded to cents.
// It reports false when the divisor is not positive or the result is not a
// positive finite number.
func closedForm(netCost float64, b fees.Bracket) (float64, bool) {
	divisor := 1 - b.PercentSum()/100
	if !(divisor > 0) {
		return 0, false
	}
	price := (netCost + b.ShippingCost + b.PackagingCost) / divisor
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, false
	}
	return round2(price), true
}

func newResult(totalCost, netCost, price float64, converged bool, iterations int, b, eff fees.Bracket, hv bool) Result {
	return Result{
		SalePrice:  price,
		Converged:  converged,
		Iterations: iterations,
		Bracket:    b,
		Effective:  eff,
		HighValue:  hv,
		Breakdown: Breakdown{
			Cost:          totalCost,
			Discount:      totalCost - netCost,
			NetCost:       netCost,
			PackagingCost: eff.PackagingCost,
			ShippingCost:  eff.ShippingCost,
			Tax:           round2(price * eff.TaxPct / 100),
			Commission:    round2(price * eff.CommissionPct / 100),
			Margin:        round2(price * eff.MarginPct / 100),
			Marketing:     round2(price * eff.MarketingPct / 100),
		},
	}
}

// unsolved is the zero-price result of a degenerate fee configuration. The
// cost basis is kept so callers can tell it apart from an empty composition.
func unsolved(totalCost, netCost float64, iterations int, b, eff fees.Bracket, hv bool) Result {
	return Result{
		Iterations: iterations,
		Bracket:    b,
		Effective:  eff,
		HighValue:  hv,
		Breakdown: Breakdown{
			Cost:          totalCost,
			Discount:      totalCost - netCost,
			NetCost:       netCost,
			PackagingCost: eff.PackagingCost,
			ShippingCost:  eff.ShippingCost,
		},
	}
}

// round2 rounds to 2 decimal places
func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
