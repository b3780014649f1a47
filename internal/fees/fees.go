// Package fees describes marketplace fee structures as data: a schedule is an
// ordered list of price brackets plus an optional high-value rule, and a
// Table maps each marketplace to its schedule.
package fees

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownMarketplace is returned when a Table has no schedule for an id.
var ErrUnknownMarketplace = errors.New("unknown marketplace")

// MarketplaceID identifies a sales channel.
type MarketplaceID string

const (
	Store               MarketplaceID = "loja"
	Tray                MarketplaceID = "tray"
	Shopee              MarketplaceID = "shopee"
	MercadoLivreClassic MarketplaceID = "mercadolivre_classico"
	MercadoLivrePremium MarketplaceID = "mercadolivre_premium"
)

// Bracket is the set of fees that applies while the sale price is at most
// UpperBound. An UpperBound of 0 marks the unbounded last bracket.
type Bracket struct {
	UpperBound    float64 `json:"upperBound"`
	PackagingCost float64 `json:"packagingCost"`
	ShippingCost  float64 `json:"shippingCost"`
	TaxPct        float64 `json:"taxPct"`
	CommissionPct float64 `json:"commissionPct"`
	MarginPct     float64 `json:"marginPct"`
	MarketingPct  float64 `json:"marketingPct"`
}

// Unbounded reports whether the bracket has no upper edge.
func (b Bracket) Unbounded() bool {
	return b.UpperBound == 0
}

// PercentSum is the sum of all percentage fees, still in 0-100 units.
func (b Bracket) PercentSum() float64 {
	return b.TaxPct + b.CommissionPct + b.MarginPct + b.MarketingPct
}

// HighValueRule waives commission and charges a flat Shipping once
// net cost + packaging + shipping exceeds Threshold.
type HighValueRule struct {
	Threshold float64 `json:"threshold"`
	Shipping  float64 `json:"shipping"`
}

// Schedule is the full fee structure of one marketplace.
type Schedule struct {
	Marketplace MarketplaceID  `json:"marketplace"`
	Name        string         `json:"name"`
	Brackets    []Bracket      `json:"brackets"`
	HighValue   *HighValueRule `json:"highValue,omitempty"`
}

// Validate checks that brackets partition the price axis without gaps.
func (s Schedule) Validate() error {
	if s.Marketplace == "" {
		return errors.New("marketplace id is required")
	}
	if len(s.Brackets) == 0 {
		return errors.New("schedule must have at least one bracket")
	}

	prev := 0.0
	for i, b := range s.Brackets {
		last := i == len(s.Brackets)-1
		if last && !b.Unbounded() {
			return errors.New("last bracket must be unbounded")
		}
		if !last {
			if b.Unbounded() {
				return fmt.Errorf("bracket %d: only the last bracket may be unbounded", i)
			}
			if b.UpperBound <= prev {
				return fmt.Errorf("bracket %d: upper bounds must be strictly ascending", i)
			}
			prev = b.UpperBound
		}
		if err := b.validate(); err != nil {
			return fmt.Errorf("bracket %d: %w", i, err)
		}
	}

	if hv := s.HighValue; hv != nil {
		if hv.Threshold <= 0 {
			return errors.New("high value threshold must be positive")
		}
		if hv.Shipping < 0 {
			return errors.New("high value shipping must be >= 0")
		}
	}
	return nil
}

func (b Bracket) validate() error {
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"taxPct", b.TaxPct},
		{"commissionPct", b.CommissionPct},
		{"marginPct", b.MarginPct},
		{"marketingPct", b.MarketingPct},
	} {
		if math.IsNaN(p.value) || p.value < 0 || p.value > 100 {
			return fmt.Errorf("%s must be between 0 and 100", p.name)
		}
	}
	if b.PackagingCost < 0 || b.ShippingCost < 0 {
		return errors.New("packaging and shipping costs must be >= 0")
	}
	if b.UpperBound < 0 {
		return errors.New("upper bound must be >= 0")
	}
	return nil
}

// Tiered reports whether fees depend on the sale price.
func (s Schedule) Tiered() bool {
	return len(s.Brackets) > 1
}

// Resolve returns the bracket whose UpperBound is the smallest value not
// below candidatePrice, falling back to the last bracket. A schedule without
// brackets resolves to the zero Bracket.
func (s Schedule) Resolve(candidatePrice float64) Bracket {
	for _, b := range s.Brackets {
		if b.Unbounded() || candidatePrice <= b.UpperBound {
			return b
		}
	}
	if len(s.Brackets) == 0 {
		return Bracket{}
	}
	return s.Brackets[len(s.Brackets)-1]
}

// Effective applies the high-value rule to b for the given net cost. The
// second result reports whether the rule fired.
func (s Schedule) Effective(b Bracket, netCost float64) (Bracket, bool) {
	hv := s.HighValue
	if hv == nil {
		return b, false
	}
	if netCost+b.PackagingCost+b.ShippingCost <= hv.Threshold {
		return b, false
	}
	b.CommissionPct = 0
	b.ShippingCost = hv.Shipping
	return b, true
}

// Overrides pins individual fee fields across every bracket. Nil fields keep
// the schedule's values.
type Overrides struct {
	PackagingCost *float64 `json:"packagingCost,omitempty"`
	ShippingCost  *float64 `json:"shippingCost,omitempty"`
	TaxPct        *float64 `json:"taxPct,omitempty"`
	CommissionPct *float64 `json:"commissionPct,omitempty"`
	MarginPct     *float64 `json:"marginPct,omitempty"`
	MarketingPct  *float64 `json:"marketingPct,omitempty"`
}

// WithOverrides returns a copy of s with o applied to every bracket.
// Pinning commission or shipping also drops the high-value rule, since the
// user has taken over the fields it would rewrite.
func (s Schedule) WithOverrides(o Overrides) Schedule {
	out := s
	out.Brackets = make([]Bracket, len(s.Brackets))
	for i, b := range s.Brackets {
		if o.PackagingCost != nil {
			b.PackagingCost = *o.PackagingCost
		}
		if o.ShippingCost != nil {
			b.ShippingCost = *o.ShippingCost
		}
		if o.TaxPct != nil {
			b.TaxPct = *o.TaxPct
		}
		if o.CommissionPct != nil {
			b.CommissionPct = *o.CommissionPct
		}
		if o.MarginPct != nil {
			b.MarginPct = *o.MarginPct
		}
		if o.MarketingPct != nil {
			b.MarketingPct = *o.MarketingPct
		}
		out.Brackets[i] = b
	}
	if o.CommissionPct != nil || o.ShippingCost != nil {
		out.HighValue = nil
	} else if s.HighValue != nil {
		hv := *s.HighValue
		out.HighValue = &hv
	}
	return out
}

// Clone returns a deep copy of s.
func (s Schedule) Clone() Schedule {
	return s.WithOverrides(Overrides{})
}

// Table maps marketplaces to their schedules.
type Table map[MarketplaceID]Schedule

// Get returns the schedule for id.
func (t Table) Get(id MarketplaceID) (Schedule, error) {
	s, ok := t[id]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: %s", ErrUnknownMarketplace, id)
	}
	return s, nil
}

// Resolve returns the bracket of marketplace id for candidatePrice.
func (t Table) Resolve(id MarketplaceID, candidatePrice float64) (Bracket, error) {
	s, err := t.Get(id)
	if err != nil {
		return Bracket{}, err
	}
	return s.Resolve(candidatePrice), nil
}

// IDs returns the marketplace ids in lexical order.
func (t Table) IDs() []MarketplaceID {
	ids := make([]MarketplaceID, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
