package fees

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/precifica/internal/numfmt"
)

func tieredSchedule() Schedule {
	return Schedule{
		Marketplace: "tiered",
		Brackets: []Bracket{
			{UpperBound: 79.99, ShippingCost: 4, CommissionPct: 20},
			{UpperBound: 99.99, ShippingCost: 16, CommissionPct: 14},
			{UpperBound: 199.99, ShippingCost: 20, CommissionPct: 14},
			{ShippingCost: 26, CommissionPct: 14},
		},
	}
}

func TestSchedule_ResolvePicksSmallestUpperBound(t *testing.T) {
	s := tieredSchedule()

	tests := []struct {
		price    float64
		shipping float64
	}{
		{0, 4},
		{50, 4},
		{79.99, 4},
		{80, 16},
		{99.99, 16},
		{100, 20},
		{199.99, 20},
		{200, 26},
		{1_000_000, 26},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.shipping, s.Resolve(tc.price).ShippingCost, "price %.2f", tc.price)
	}
}

func TestSchedule_ResolveFlatIgnoresPrice(t *testing.T) {
	s := FeeInputs{TaxPct: 12, PackagingCost: 2.5}.Schedule(Store)

	assert.False(t, s.Tiered())
	assert.Equal(t, s.Resolve(1), s.Resolve(10_000))
	assert.Equal(t, Bracket{}, Schedule{}.Resolve(10))
}

func TestSchedule_EffectiveHighValueRule(t *testing.T) {
	s := Schedule{
		Marketplace: Shopee,
		Brackets:    []Bracket{{PackagingCost: 6.5, ShippingCost: 10, CommissionPct: 20, TaxPct: 12}},
		HighValue:   &HighValueRule{Threshold: 500, Shipping: 100},
	}
	b := s.Brackets[0]

	got, fired := s.Effective(b, 483.5)
	assert.False(t, fired, "subtotal of exactly 500 does not exceed the threshold")
	assert.Equal(t, b, got)

	got, fired = s.Effective(b, 483.51)
	assert.True(t, fired)
	assert.Equal(t, 0.0, got.CommissionPct)
	assert.Equal(t, 100.0, got.ShippingCost)
	assert.Equal(t, 12.0, got.TaxPct)

	got, fired = Schedule{Brackets: []Bracket{b}}.Effective(b, 10_000)
	assert.False(t, fired)
	assert.Equal(t, b, got)
}

func TestSchedule_Validate(t *testing.T) {
	require.NoError(t, tieredSchedule().Validate())
	for id, s := range DefaultTable() {
		require.NoError(t, s.Validate(), "default schedule %s", id)
	}

	tests := []struct {
		name   string
		mutate func(*Schedule)
	}{
		{"no id", func(s *Schedule) { s.Marketplace = "" }},
		{"no brackets", func(s *Schedule) { s.Brackets = nil }},
		{"bounded last", func(s *Schedule) { s.Brackets[3].UpperBound = 500 }},
		{"unbounded middle", func(s *Schedule) { s.Brackets[1].UpperBound = 0 }},
		{"descending", func(s *Schedule) { s.Brackets[1].UpperBound = 50 }},
		{"equal edges", func(s *Schedule) { s.Brackets[1].UpperBound = 79.99 }},
		{"percent above 100", func(s *Schedule) { s.Brackets[0].TaxPct = 101 }},
		{"negative percent", func(s *Schedule) { s.Brackets[2].MarginPct = -1 }},
		{"negative shipping", func(s *Schedule) { s.Brackets[0].ShippingCost = -1 }},
		{"zero threshold", func(s *Schedule) { s.HighValue = &HighValueRule{Threshold: 0, Shipping: 10} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := tieredSchedule()
			tc.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSchedule_WithOverrides(t *testing.T) {
	table := DefaultTable()
	shopee := table[Shopee]
	margin := 30.0

	got := shopee.WithOverrides(Overrides{MarginPct: &margin})
	for _, b := range got.Brackets {
		assert.Equal(t, 30.0, b.MarginPct)
	}
	require.NotNil(t, got.HighValue)
	assert.Equal(t, 15.0, shopee.Brackets[0].MarginPct, "original must not change")

	commission := 10.0
	pinned := shopee.WithOverrides(Overrides{CommissionPct: &commission})
	assert.Nil(t, pinned.HighValue)
	assert.NotNil(t, shopee.HighValue)
}

func TestDefaultTable_ReturnsCopy(t *testing.T) {
	a := DefaultTable()
	a[Shopee].Brackets[0].CommissionPct = 0
	a[Shopee].HighValue.Threshold = 1
	delete(a, Store)

	b := DefaultTable()
	assert.Equal(t, 20.0, b[Shopee].Brackets[0].CommissionPct)
	assert.Equal(t, 500.0, b[Shopee].HighValue.Threshold)
	assert.Contains(t, b, Store)
}

func TestDefaultTable_Shape(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, []MarketplaceID{Store, MercadoLivreClassic, MercadoLivrePremium, Shopee, Tray}, table.IDs())
	assert.False(t, table[Store].Tiered())
	assert.True(t, table[Shopee].Tiered())
	assert.False(t, table[MercadoLivreClassic].Tiered())
	assert.Equal(t, 11.0, table[MercadoLivreClassic].Resolve(50).CommissionPct)
	assert.Equal(t, 0.0, table[MercadoLivreClassic].Resolve(50).ShippingCost)
	assert.Equal(t, 16.0, table[MercadoLivrePremium].Resolve(80).CommissionPct)
}

func TestTable_Resolve(t *testing.T) {
	table := DefaultTable()

	b, err := table.Resolve(Shopee, 150)
	require.NoError(t, err)
	assert.Equal(t, 20.0, b.ShippingCost)

	_, err = table.Resolve("amazon", 150)
	assert.ErrorIs(t, err, ErrUnknownMarketplace)
}

func TestFeeForm_Parse(t *testing.T) {
	form := FeeForm{
		Discount:   "5",
		Tax:        "12,5",
		Commission: "14",
		Margin:     "15",
		Marketing:  "2",
		Shipping:   "1.234,00",
	}

	in := form.Parse(numfmt.BR, DefaultPackaging)

	assert.Equal(t, FeeInputs{
		DiscountPct:   5,
		TaxPct:        12.5,
		CommissionPct: 14,
		MarginPct:     15,
		MarketingPct:  2,
		PackagingCost: 2.5,
		ShippingCost:  1234,
	}, in)
	assert.Equal(t, 43.5, in.PercentSum())

	form.Packaging = "0"
	assert.Equal(t, 0.0, form.Parse(numfmt.BR, DefaultPackaging).PackagingCost)
}

func TestFeeForm_UnmarshalJSON(t *testing.T) {
	var form FeeForm
	err := json.Unmarshal([]byte(`{"tax": 12.5, "commission": "14", "shipping": "1.234,00", "margin": null}`), &form)
	require.NoError(t, err)

	assert.Equal(t, FeeForm{Tax: "12,5", Commission: "14", Shipping: "1.234,00"}, form)

	in := form.Parse(numfmt.BR, DefaultShopeePackaging)
	assert.Equal(t, 12.5, in.TaxPct)
	assert.Equal(t, 1234.0, in.ShippingCost)
	assert.Equal(t, 6.5, in.PackagingCost)

	assert.Error(t, json.Unmarshal([]byte(`{"tax": {}}`), &form))
}
