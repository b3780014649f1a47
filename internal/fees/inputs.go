package fees

import (
	"encoding/json"
	"fmt"

	"github.com/Simplici0/precifica/internal/numfmt"
)

// FeeInputs is a flat, price-independent fee configuration. Percentages are
// in 0-100 units.
type FeeInputs struct {
	DiscountPct   float64 `json:"discountPct"`
	TaxPct        float64 `json:"taxPct"`
	CommissionPct float64 `json:"commissionPct"`
	MarginPct     float64 `json:"marginPct"`
	MarketingPct  float64 `json:"marketingPct"`
	PackagingCost float64 `json:"packagingCost"`
	ShippingCost  float64 `json:"shippingCost"`
}

// PercentSum is the sum of the fee percentages applied to the sale price.
// Discount is not included; it applies to cost.
func (in FeeInputs) PercentSum() float64 {
	return in.TaxPct + in.CommissionPct + in.MarginPct + in.MarketingPct
}

// Bracket returns the inputs as a single unbounded bracket.
func (in FeeInputs) Bracket() Bracket {
	return Bracket{
		PackagingCost: in.PackagingCost,
		ShippingCost:  in.ShippingCost,
		TaxPct:        in.TaxPct,
		CommissionPct: in.CommissionPct,
		MarginPct:     in.MarginPct,
		MarketingPct:  in.MarketingPct,
	}
}

// Schedule wraps the inputs in a flat schedule for marketplace id.
func (in FeeInputs) Schedule(id MarketplaceID) Schedule {
	return Schedule{Marketplace: id, Brackets: []Bracket{in.Bracket()}}
}

// FeeForm holds fee fields as typed in a form, in locale notation.
type FeeForm struct {
	Discount   string `json:"discount"`
	Tax        string `json:"tax"`
	Commission string `json:"commission"`
	Margin     string `json:"margin"`
	Marketing  string `json:"marketing"`
	Packaging  string `json:"packaging"`
	Shipping   string `json:"shipping"`
}

// UnmarshalJSON accepts each field as numfmt.Wire text or as a JSON number.
// Pass numfmt.Wire to Parse afterwards.
func (f *FeeForm) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out FeeForm
	for key, dst := range map[string]*string{
		"discount":   &out.Discount,
		"tax":        &out.Tax,
		"commission": &out.Commission,
		"margin":     &out.Margin,
		"marketing":  &out.Marketing,
		"packaging":  &out.Packaging,
		"shipping":   &out.Shipping,
	} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		text, err := numfmt.Wire.DecodeText(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = text
	}
	*f = out
	return nil
}

// Parse converts the form with locale l. An empty packaging field takes
// defaultPackaging; every other empty or malformed field becomes 0.
func (f FeeForm) Parse(l numfmt.Locale, defaultPackaging float64) FeeInputs {
	packaging := defaultPackaging
	if f.Packaging != "" {
		packaging = l.Parse(f.Packaging)
	}
	return FeeInputs{
		DiscountPct:   l.Parse(f.Discount),
		TaxPct:        l.Parse(f.Tax),
		CommissionPct: l.Parse(f.Commission),
		MarginPct:     l.Parse(f.Margin),
		MarketingPct:  l.Parse(f.Marketing),
		PackagingCost: packaging,
		ShippingCost:  l.Parse(f.Shipping),
	}
}
