package fees

// Default packaging costs per channel.
const (
	DefaultPackaging       = 2.50
	DefaultShopeePackaging = 6.50
)

// Shopee charges a per-item fee and a commission that both step down as the
// sale price crosses these edges.
var shopeeBrackets = []Bracket{
	{UpperBound: 79.99, ShippingCost: 4, CommissionPct: 20},
	{UpperBound: 99.99, ShippingCost: 16, CommissionPct: 14},
	{UpperBound: 199.99, ShippingCost: 20, CommissionPct: 14},
	{ShippingCost: 26, CommissionPct: 14},
}

// DefaultTable returns a fresh copy of the built-in fee schedules.
func DefaultTable() Table {
	base := Bracket{
		PackagingCost: DefaultPackaging,
		TaxPct:        12,
		MarginPct:     15,
		MarketingPct:  2,
	}

	// Mercado Livre shipping depends on the listing and is entered per
	// quote through overrides.
	flat := func(id MarketplaceID, name string, commission float64) Schedule {
		b := base
		b.CommissionPct = commission
		return Schedule{Marketplace: id, Name: name, Brackets: []Bracket{b}}
	}

	shopee := Schedule{
		Marketplace: Shopee,
		Name:        "Shopee",
		HighValue:   &HighValueRule{Threshold: 500, Shipping: 100},
	}
	for _, tier := range shopeeBrackets {
		b := base
		b.UpperBound = tier.UpperBound
		b.PackagingCost = DefaultShopeePackaging
		b.ShippingCost = tier.ShippingCost
		b.CommissionPct = tier.CommissionPct
		shopee.Brackets = append(shopee.Brackets, b)
	}

	return Table{
		Store:               flat(Store, "Loja", 6),
		Tray:                flat(Tray, "Tray", 6),
		Shopee:              shopee,
		MercadoLivreClassic: flat(MercadoLivreClassic, "Mercado Livre Clássico", 11),
		MercadoLivrePremium: flat(MercadoLivrePremium, "Mercado Livre Premium", 16),
	}
}
