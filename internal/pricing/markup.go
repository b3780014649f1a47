package pricing

// MarkupStatus classifies a marketplace price against the store price.
type MarkupStatus string

const (
	MarkupProfit  MarkupStatus = "profit"
	MarkupLoss    MarkupStatus = "loss"
	MarkupNeutral MarkupStatus = "neutral"
)

// MarkupResult is the surcharge of a marketplace listing over the store.
type MarkupResult struct {
	Percent float64      `json:"percent"`
	Status  MarkupStatus `json:"status"`
}

// Markup returns how much marketplacePrice exceeds storePrice plus the
// marketplace shipping, in percent. Missing prices give a neutral 0.
func Markup(storePrice, marketplacePrice, shipping float64) MarkupResult {
	base := storePrice + shipping

	pct := 0.0
	if base > 0 && marketplacePrice > 0 {
		pct = round2((marketplacePrice/base - 1) * 100)
	}

	status := MarkupNeutral
	switch {
	case pct > 0:
		status = MarkupProfit
	case pct < 0:
		status = MarkupLoss
	}
	return MarkupResult{Percent: pct, Status: status}
}
