// Package composition aggregates the cost lines (SKU, quantity, unit cost)
// that make up a product's cost basis.
package composition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/precifica/internal/numfmt"
)

// ErrIndexOutOfRange is returned when a row index does not exist.
var ErrIndexOutOfRange = errors.New("composition row index out of range")

// Item is a single cost line as typed by the user. Quantity and UnitCost
// are kept as text so partially typed values survive until parsed.
type Item struct {
	Code     string `json:"code"`
	Quantity string `json:"quantity"`
	UnitCost string `json:"unitCost"`
}

// UnmarshalJSON accepts quantity and unit cost as numfmt.Wire text or as
// JSON numbers. Numbers are stored in Wire notation.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code     string          `json:"code"`
		Quantity json.RawMessage `json:"quantity"`
		UnitCost json.RawMessage `json:"unitCost"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	qty, err := numfmt.Wire.DecodeText(raw.Quantity)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	cost, err := numfmt.Wire.DecodeText(raw.UnitCost)
	if err != nil {
		return fmt.Errorf("unitCost: %w", err)
	}
	*it = Item{Code: raw.Code, Quantity: qty, UnitCost: cost}
	return nil
}

// LineCost returns quantity × unit cost. Negative results are not clamped.
func (it Item) LineCost(l numfmt.Locale) float64 {
	return l.Parse(it.Quantity) * l.Parse(it.UnitCost)
}

// Total sums the line costs of items using the numfmt.Wire locale. Rows
// without a code still count.
func Total(items []Item) float64 {
	return TotalWith(numfmt.Wire, items)
}

// TotalWith is Total with an explicit locale.
func TotalWith(l numfmt.Locale, items []Item) float64 {
	total := 0.0
	for _, it := range items {
		total += it.LineCost(l)
	}
	return total
}

// Share is one cost line's part of a sale price.
type Share struct {
	Code     string  `json:"code"`
	Quantity float64 `json:"quantity"`
	LineCost float64 `json:"lineCost"`
	// Total is the slice of the sale price owed to the line, Unit the same
	// slice per unit.
	Total   float64 `json:"total"`
	Unit    float64 `json:"unit"`
	HasCost bool    `json:"hasCost"`
}

// Decompose splits salePrice across items in proportion to their line cost,
// reading numbers with numfmt.Wire.
func Decompose(items []Item, salePrice float64) []Share {
	return DecomposeWith(numfmt.Wire, items, salePrice)
}

// DecomposeWith is Decompose with an explicit locale.
//
// Lines without a code still count toward the composition total but get no
// share, so the shares of a composition with blank codes sum to less than
// salePrice. When the total is zero every share is zero.
func DecomposeWith(l numfmt.Locale, items []Item, salePrice float64) []Share {
	total := TotalWith(l, items)

	shares := make([]Share, len(items))
	for i, it := range items {
		qty := l.Parse(it.Quantity)
		unitCost := l.Parse(it.UnitCost)
		sh := Share{
			Code:     it.Code,
			Quantity: qty,
			LineCost: qty * unitCost,
			HasCost:  unitCost > 0,
		}
		if strings.TrimSpace(it.Code) != "" && total != 0 {
			sh.Total = salePrice * sh.LineCost / total
			if qty > 0 {
				sh.Unit = sh.Total / qty
			}
		}
		shares[i] = sh
	}
	return shares
}

// ChangeKind classifies an entry of the change log.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeRemove ChangeKind = "remove"
)

// Change records one edit made to a composition.
type Change struct {
	At     time.Time  `json:"at"`
	Kind   ChangeKind `json:"kind"`
	Field  string     `json:"field"`
	From   string     `json:"from"`
	To     string     `json:"to"`
	Detail string     `json:"detail,omitempty"`
}

// Composition is an editable list of cost lines with a change log.
type Composition struct {
	Items   []Item   `json:"items"`
	Changes []Change `json:"changes,omitempty"`

	now func() time.Time
}

// New returns a composition holding one blank placeholder row.
func New() *Composition {
	return &Composition{Items: []Item{{}}}
}

// Add appends a blank row.
func (c *Composition) Add() {
	c.Items = append(c.Items, Item{})
	c.record(Change{Kind: ChangeAdd, Field: "item", From: "-", To: "new item", Detail: "item added"})
}

// Update replaces the row at idx, logging each field that changed.
func (c *Composition) Update(idx int, it Item) error {
	if idx < 0 || idx >= len(c.Items) {
		return fmt.Errorf("update row %d: %w", idx, ErrIndexOutOfRange)
	}

	old := c.Items[idx]
	c.Items[idx] = it

	for _, f := range []struct{ name, from, to string }{
		{"code", old.Code, it.Code},
		{"quantity", old.Quantity, it.Quantity},
		{"unitCost", old.UnitCost, it.UnitCost},
	} {
		if f.from != f.to {
			c.record(Change{Kind: ChangeUpdate, Field: f.name, From: f.from, To: f.to})
		}
	}
	return nil
}

// Remove deletes the row at idx. Protecting the first row is left to the
// caller.
func (c *Composition) Remove(idx int) error {
	if idx < 0 || idx >= len(c.Items) {
		return fmt.Errorf("remove row %d: %w", idx, ErrIndexOutOfRange)
	}

	removed := c.Items[idx]
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.record(Change{
		Kind:   ChangeRemove,
		Field:  "item",
		From:   removed.Code,
		To:     "-",
		Detail: fmt.Sprintf("item removed (%s)", removed.Code),
	})
	return nil
}

// Total sums the composition using the numfmt.Wire locale.
func (c *Composition) Total() float64 {
	return Total(c.Items)
}

func (c *Composition) record(ch Change) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	ch.At = now()
	c.Changes = append(c.Changes, ch)
}
