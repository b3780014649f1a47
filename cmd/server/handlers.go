package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/precifica/internal/composition"
	"github.com/Simplici0/precifica/internal/export"
	"github.com/Simplici0/precifica/internal/fees"
	"github.com/Simplici0/precifica/internal/numfmt"
	"github.com/Simplici0/precifica/internal/pricing"
	"github.com/Simplici0/precifica/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type priceRequest struct {
	Items       []composition.Item `json:"items"`
	Marketplace fees.MarketplaceID `json:"marketplace"`
	Discount    numfmt.Amount      `json:"discount"`
	Overrides   *fees.Overrides    `json:"overrides,omitempty"`
}

type priceResponse struct {
	Marketplace    fees.MarketplaceID `json:"marketplace"`
	TotalCost      float64            `json:"totalCost"`
	Result         pricing.Result     `json:"result"`
	FormattedPrice string             `json:"formattedPrice"`
	Warning        string             `json:"warning,omitempty"`
}

type flatPriceRequest struct {
	Items       []composition.Item `json:"items"`
	Marketplace fees.MarketplaceID `json:"marketplace"`
	Fees        fees.FeeForm       `json:"fees"`
}

type compareRequest struct {
	Items     []composition.Item `json:"items"`
	Discount  numfmt.Amount      `json:"discount"`
	Overrides *fees.Overrides    `json:"overrides,omitempty"`
}

type comparison struct {
	priceResponse
	Markup pricing.MarkupResult `json:"markup"`
}

type compareResponse struct {
	TotalCost    float64      `json:"totalCost"`
	StorePrice   float64      `json:"storePrice"`
	Marketplaces []comparison `json:"marketplaces"`
}

type markupRequest struct {
	StorePrice       numfmt.Amount `json:"storePrice"`
	MarketplacePrice numfmt.Amount `json:"marketplacePrice"`
	Shipping         numfmt.Amount `json:"shipping"`
}

type quoteRequest struct {
	Title string `json:"title"`
	priceRequest
}

type decomposeRequest struct {
	Items     []composition.Item `json:"items"`
	SalePrice numfmt.Amount      `json:"salePrice"`
}

type share struct {
	composition.Share
	FormattedUnit  string `json:"formattedUnit"`
	FormattedTotal string `json:"formattedTotal"`
}

type decomposeResponse struct {
	TotalCost float64 `json:"totalCost"`
	SalePrice float64 `json:"salePrice"`
	Shares    []share `json:"shares"`
}

type exportRequest struct {
	SKU          string               `json:"sku"`
	Name         string               `json:"name"`
	Items        []composition.Item   `json:"items"`
	Discount     numfmt.Amount        `json:"discount"`
	Marketplaces []fees.MarketplaceID `json:"marketplaces"`
	Overrides    *fees.Overrides      `json:"overrides,omitempty"`
}

func (s *server) handleListMarketplaces(w http.ResponseWriter, r *http.Request) {
	table, err := s.store.ListSchedules(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to load marketplaces", err)
		return
	}

	schedules := make([]fees.Schedule, 0, len(table))
	for _, id := range table.IDs() {
		schedules = append(schedules, table[id])
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (s *server) handleGetMarketplace(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.loadSchedule(w, r, fees.MarketplaceID(chi.URLParam(r, "id")), nil)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *server) handlePutMarketplace(w http.ResponseWriter, r *http.Request) {
	id := fees.MarketplaceID(strings.TrimSpace(chi.URLParam(r, "id")))

	var sched fees.Schedule
	if !decodeJSON(w, r, &sched) {
		return
	}
	if sched.Marketplace != "" && sched.Marketplace != id {
		writeError(w, http.StatusBadRequest, "marketplace in body does not match url")
		return
	}
	sched.Marketplace = id
	if err := sched.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.SaveSchedule(r.Context(), sched); err != nil {
		s.internalError(w, r, "failed to save marketplace", err)
		return
	}
	s.log.Info().Str("marketplace", string(id)).Int("brackets", len(sched.Brackets)).Msg("fee schedule replaced")
	writeJSON(w, http.StatusOK, sched)
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, ok := s.price(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleFlatPrice(w http.ResponseWriter, r *http.Request) {
	var req flatPriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	packaging := fees.DefaultPackaging
	if req.Marketplace == fees.Shopee {
		packaging = fees.DefaultShopeePackaging
	}
	in := req.Fees.Parse(numfmt.Wire, packaging)
	total := composition.Total(req.Items)
	res := s.solver.Solve(total, in.DiscountPct, in.Schedule(req.Marketplace))

	writeJSON(w, http.StatusOK, newPriceResponse(req.Marketplace, total, res))
}

func (s *server) handleComparePrices(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	table, err := s.store.ListSchedules(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to load marketplaces", err)
		return
	}

	total := composition.Total(req.Items)
	discount := req.Discount.Float()
	solve := func(sched fees.Schedule) pricing.Result {
		if req.Overrides != nil {
			sched = sched.WithOverrides(*req.Overrides)
		}
		return s.solver.Solve(total, discount, sched)
	}

	resp := compareResponse{TotalCost: total, Marketplaces: make([]comparison, 0, len(table))}
	if storeSched, ok := table[fees.Store]; ok {
		resp.StorePrice = solve(storeSched).SalePrice
	}
	for _, id := range table.IDs() {
		res := solve(table[id])
		resp.Marketplaces = append(resp.Marketplaces, comparison{
			priceResponse: newPriceResponse(id, total, res),
			Markup:        pricing.Markup(resp.StorePrice, res.SalePrice, res.Effective.ShippingCost),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleMarkup(w http.ResponseWriter, r *http.Request) {
	var req markupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, pricing.Markup(req.StorePrice.Float(), req.MarketplacePrice.Float(), req.Shipping.Float()))
}

func (s *server) handleDecompose(w http.ResponseWriter, r *http.Request) {
	var req decomposeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	shares := composition.Decompose(req.Items, req.SalePrice.Float())
	resp := decomposeResponse{
		TotalCost: composition.Total(req.Items),
		SalePrice: req.SalePrice.Float(),
		Shares:    make([]share, 0, len(shares)),
	}
	for _, sh := range shares {
		resp.Shares = append(resp.Shares, share{
			Share:          sh,
			FormattedUnit:  numfmt.Wire.Format(sh.Unit),
			FormattedTotal: numfmt.Wire.Format(sh.Total),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, ok := s.price(w, r, req.priceRequest)
	if !ok {
		return
	}

	saved, err := s.store.SaveQuote(r.Context(), store.Quote{
		Title:       req.Title,
		Marketplace: resp.Marketplace,
		DiscountPct: req.Discount.Float(),
		Items:       req.Items,
		Result:      resp.Result,
	})
	if err != nil {
		s.internalError(w, r, "failed to save quote", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.store.ListQuotes(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.internalError(w, r, "failed to load quotes", err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (s *server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "quote not found")
			return
		}
		s.internalError(w, r, "failed to load quote", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ids := req.Marketplaces
	if len(ids) == 0 {
		table, err := s.store.ListSchedules(r.Context())
		if err != nil {
			s.internalError(w, r, "failed to load marketplaces", err)
			return
		}
		ids = table.IDs()
	}

	now := s.now()
	total := composition.Total(req.Items)
	report := export.Report{GeneratedAt: now, Composition: req.Items}
	for _, id := range ids {
		sched, ok := s.loadSchedule(w, r, id, req.Overrides)
		if !ok {
			return
		}
		res := s.solver.Solve(total, req.Discount.Float(), sched)
		report.Rows = append(report.Rows, export.RowFromResult(req.SKU, req.Name, sched, req.Discount.Float(), res))
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, report); err != nil {
		s.internalError(w, r, "failed to build workbook", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(now)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// price solves req against the stored schedule of its marketplace. It writes
// the error response itself and reports false when the request cannot be
// priced.
func (s *server) price(w http.ResponseWriter, r *http.Request, req priceRequest) (priceResponse, bool) {
	id := req.Marketplace
	if id == "" {
		id = fees.Store
	}
	sched, ok := s.loadSchedule(w, r, id, req.Overrides)
	if !ok {
		return priceResponse{}, false
	}

	total := composition.Total(req.Items)
	res := s.solver.Solve(total, req.Discount.Float(), sched)
	return newPriceResponse(id, total, res), true
}

func (s *server) loadSchedule(w http.ResponseWriter, r *http.Request, id fees.MarketplaceID, o *fees.Overrides) (fees.Schedule, bool) {
	sched, err := s.store.GetSchedule(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown marketplace %q", id))
			return fees.Schedule{}, false
		}
		s.internalError(w, r, "failed to load marketplace", err)
		return fees.Schedule{}, false
	}
	if o != nil {
		sched = sched.WithOverrides(*o)
	}
	return sched, true
}

func newPriceResponse(id fees.MarketplaceID, total float64, res pricing.Result) priceResponse {
	return priceResponse{
		Marketplace:    id,
		TotalCost:      total,
		Result:         res,
		FormattedPrice: numfmt.Wire.FormatCurrency(res.SalePrice),
		Warning:        warningFor(total, res),
	}
}

func warningFor(total float64, res pricing.Result) string {
	switch {
	case total > 0 && res.SalePrice == 0:
		return "sale price could not be computed; check the discount and fee percentages"
	case !res.Converged:
		return fmt.Sprintf("price did not settle after %d iterations; showing the last candidate", res.Iterations)
	}
	return ""
}
