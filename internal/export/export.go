// Package export renders priced products as an xlsx workbook whose sale
// price column is a live formula over the fee cells of the same row.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/precifica/internal/composition"
	"github.com/Simplici0/precifica/internal/fees"
	"github.com/Simplici0/precifica/internal/numfmt"
	"github.com/Simplici0/precifica/internal/pricing"
)

const (
	CompositionSheet = "Composição"
	PricingSheet     = "Precificação"

	currencyFormat = `"R$" #,##0.00`
	percentFormat  = `0.00"%"`
)

var pricingHeader = []any{
	"SKU", "Produto", "Marketplace", "Custo", "Desconto %", "Embalagem", "Frete",
	"Comissão %", "Imposto %", "Margem %", "Marketing %", "Preço de venda",
}

var compositionHeader = []any{"Código", "Quantidade", "Custo unitário", "Subtotal"}

// Row is one priced product line of the pricing sheet.
type Row struct {
	SKU         string
	Name        string
	Marketplace fees.MarketplaceID
	Cost        float64
	DiscountPct float64
	// Bracket holds the fees as resolved from the schedule, before the
	// high-value rule; the formula applies that rule itself.
	Bracket   fees.Bracket
	HighValue *fees.HighValueRule
	SalePrice float64
}

// RowFromResult builds the export row for a price solved against sched.
func RowFromResult(sku, name string, sched fees.Schedule, discountPct float64, res pricing.Result) Row {
	return Row{
		SKU:         sku,
		Name:        name,
		Marketplace: sched.Marketplace,
		Cost:        res.Breakdown.Cost,
		DiscountPct: discountPct,
		Bracket:     res.Bracket,
		HighValue:   sched.HighValue,
		SalePrice:   res.SalePrice,
	}
}

// Report is everything written into one workbook.
type Report struct {
	GeneratedAt time.Time
	Composition []composition.Item
	Rows        []Row
}

// PriceFormula returns the sale price formula for a pricing sheet row, using
// the column layout of the pricing header (D cost through K marketing).
func PriceFormula(row int, hv *fees.HighValueRule) string {
	net := fmt.Sprintf("D%d*(1-E%d/100)", row, row)
	regular := fmt.Sprintf("(%s+F%d+G%d)/(1-((H%d+I%d+J%d+K%d)/100))", net, row, row, row, row, row, row)
	if hv == nil {
		return "ROUND(" + regular + ",2)"
	}

	high := fmt.Sprintf("(%s+F%d+%s)/(1-((I%d+J%d+K%d)/100))", net, row, num(hv.Shipping), row, row, row)
	return fmt.Sprintf("ROUND(IF((%s+F%d+G%d)>%s,%s,%s),2)", net, row, row, num(hv.Threshold), high, regular)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FileName is the download name for a report generated at t.
func FileName(t time.Time) string {
	return "PRECIFICACAO_" + t.Format("02-01-2006_15h04m") + ".xlsx"
}

// Build lays the report out in a new workbook. The caller owns the file.
func Build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	if err := f.SetSheetName("Sheet1", PricingSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(CompositionSheet); err != nil {
		return nil, fmt.Errorf("create composition sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	if err := writePricing(f, styles, r.Rows); err != nil {
		return nil, err
	}
	if err := writeComposition(f, styles, r.Composition); err != nil {
		return nil, err
	}

	created := r.GeneratedAt
	if created.IsZero() {
		created = time.Now()
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Precificação",
		Creator: "precifica",
		Created: created.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("set doc props: %w", err)
	}
	f.SetActiveSheet(0)

	ok = true
	return f, nil
}

// Write builds the report and streams it to w.
func Write(w io.Writer, r Report) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type styles struct {
	header   int
	currency int
	percent  int
	total    int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error

	currency := currencyFormat
	percent := percentFormat

	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#1F4E78"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return s, fmt.Errorf("create header style: %w", err)
	}
	if s.currency, err = f.NewStyle(&excelize.Style{CustomNumFmt: &currency}); err != nil {
		return s, fmt.Errorf("create currency style: %w", err)
	}
	if s.percent, err = f.NewStyle(&excelize.Style{CustomNumFmt: &percent}); err != nil {
		return s, fmt.Errorf("create percent style: %w", err)
	}
	s.total, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		CustomNumFmt: &currency,
		Border:       []excelize.Border{{Type: "top", Color: "#000000", Style: 1}},
	})
	if err != nil {
		return s, fmt.Errorf("create total style: %w", err)
	}
	return s, nil
}

func writePricing(f *excelize.File, st styles, rows []Row) error {
	sheet := PricingSheet
	if err := f.SetSheetRow(sheet, "A1", &pricingHeader); err != nil {
		return fmt.Errorf("write pricing header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "L1", st.header); err != nil {
		return fmt.Errorf("style pricing header: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "C", 22); err != nil {
		return fmt.Errorf("size pricing columns: %w", err)
	}
	if err := f.SetColWidth(sheet, "D", "L", 14); err != nil {
		return fmt.Errorf("size pricing columns: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze pricing header: %w", err)
	}

	for i, row := range rows {
		n := i + 2
		b := row.Bracket
		values := []any{
			row.SKU, row.Name, string(row.Marketplace), row.Cost, row.DiscountPct,
			b.PackagingCost, b.ShippingCost, b.CommissionPct, b.TaxPct, b.MarginPct, b.MarketingPct,
		}
		if err := f.SetSheetRow(sheet, cell("A", n), &values); err != nil {
			return fmt.Errorf("write pricing row %d: %w", n, err)
		}

		// Unsolvable rows keep the engine's zero instead of a formula that
		// would divide by a non-positive number.
		price := cell("L", n)
		if row.SalePrice == 0 {
			if err := f.SetCellValue(sheet, price, 0); err != nil {
				return fmt.Errorf("write price %s: %w", price, err)
			}
		} else if err := f.SetCellFormula(sheet, price, PriceFormula(n, row.HighValue)); err != nil {
			return fmt.Errorf("write formula %s: %w", price, err)
		}
	}

	if len(rows) == 0 {
		return nil
	}
	last := len(rows) + 1
	for _, span := range [][2]string{{"D", "D"}, {"F", "G"}, {"L", "L"}} {
		if err := f.SetCellStyle(sheet, cell(span[0], 2), cell(span[1], last), st.currency); err != nil {
			return fmt.Errorf("style currency cells: %w", err)
		}
	}
	for _, span := range [][2]string{{"E", "E"}, {"H", "K"}} {
		if err := f.SetCellStyle(sheet, cell(span[0], 2), cell(span[1], last), st.percent); err != nil {
			return fmt.Errorf("style percent cells: %w", err)
		}
	}
	return nil
}

func writeComposition(f *excelize.File, st styles, items []composition.Item) error {
	sheet := CompositionSheet
	if err := f.SetSheetRow(sheet, "A1", &compositionHeader); err != nil {
		return fmt.Errorf("write composition header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", st.header); err != nil {
		return fmt.Errorf("style composition header: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "D", 18); err != nil {
		return fmt.Errorf("size composition columns: %w", err)
	}

	for i, it := range items {
		n := i + 2
		values := []any{it.Code, numfmt.ParseBR(it.Quantity), numfmt.ParseBR(it.UnitCost)}
		if err := f.SetSheetRow(sheet, cell("A", n), &values); err != nil {
			return fmt.Errorf("write composition row %d: %w", n, err)
		}
		if err := f.SetCellFormula(sheet, cell("D", n), fmt.Sprintf("B%d*C%d", n, n)); err != nil {
			return fmt.Errorf("write subtotal row %d: %w", n, err)
		}
	}

	totalRow := len(items) + 2
	if err := f.SetCellValue(sheet, cell("C", totalRow), "Total"); err != nil {
		return fmt.Errorf("write total label: %w", err)
	}
	formula := "0"
	if len(items) > 0 {
		formula = fmt.Sprintf("SUM(D2:D%d)", totalRow-1)
	}
	if err := f.SetCellFormula(sheet, cell("D", totalRow), formula); err != nil {
		return fmt.Errorf("write total formula: %w", err)
	}
	if err := f.SetCellStyle(sheet, cell("C", totalRow), cell("D", totalRow), st.total); err != nil {
		return fmt.Errorf("style total: %w", err)
	}
	if len(items) > 0 {
		if err := f.SetCellStyle(sheet, "C2", cell("D", totalRow-1), st.currency); err != nil {
			return fmt.Errorf("style composition costs: %w", err)
		}
	}
	return nil
}

func cell(col string, row int) string {
	return col + strconv.Itoa(row)
}
