// Package store persists marketplace fee schedules and saved quotes in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/precifica/internal/composition"
	"github.com/Simplici0/precifica/internal/fees"
	"github.com/Simplici0/precifica/internal/pricing"
)

// ErrNotFound is returned when a schedule or quote does not exist.
var ErrNotFound = errors.New("not found")

// Fixed width so that created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Quote is a priced composition saved for later reference.
type Quote struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"createdAt"`
	Title       string             `json:"title"`
	Marketplace fees.MarketplaceID `json:"marketplace"`
	DiscountPct float64            `json:"discountPct"`
	Items       []composition.Item `json:"items"`
	Result      pricing.Result     `json:"result"`
}

// Store wraps a migrated database.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// New returns a Store over db. The schema must already be migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now, newID: uuid.NewString}
}

// ListSchedules loads every marketplace schedule.
func (s *Store) ListSchedules(ctx context.Context) (fees.Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, high_value_threshold, high_value_shipping
		FROM marketplaces
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query marketplaces: %w", err)
	}
	defer rows.Close()

	table := fees.Table{}
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		table[sched.Marketplace] = sched
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marketplaces: %w", err)
	}

	brackets, err := s.db.QueryContext(ctx, `
		SELECT marketplace_id, upper_bound, packaging_cost, shipping_cost, tax_pct, commission_pct, margin_pct, marketing_pct
		FROM fee_brackets
		ORDER BY marketplace_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("query fee brackets: %w", err)
	}
	defer brackets.Close()

	for brackets.Next() {
		var id string
		var b fees.Bracket
		if err := brackets.Scan(&id, &b.UpperBound, &b.PackagingCost, &b.ShippingCost, &b.TaxPct, &b.CommissionPct, &b.MarginPct, &b.MarketingPct); err != nil {
			return nil, fmt.Errorf("scan fee bracket: %w", err)
		}
		sched, ok := table[fees.MarketplaceID(id)]
		if !ok {
			continue
		}
		sched.Brackets = append(sched.Brackets, b)
		table[sched.Marketplace] = sched
	}
	if err := brackets.Err(); err != nil {
		return nil, fmt.Errorf("iterate fee brackets: %w", err)
	}

	return table, nil
}

// GetSchedule loads one marketplace schedule.
func (s *Store) GetSchedule(ctx context.Context, id fees.MarketplaceID) (fees.Schedule, error) {
	sched, err := scanSchedule(s.db.QueryRowContext(ctx, `
		SELECT id, name, high_value_threshold, high_value_shipping
		FROM marketplaces
		WHERE id = ?
	`, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fees.Schedule{}, fmt.Errorf("marketplace %s: %w", id, ErrNotFound)
		}
		return fees.Schedule{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT upper_bound, packaging_cost, shipping_cost, tax_pct, commission_pct, margin_pct, marketing_pct
		FROM fee_brackets
		WHERE marketplace_id = ?
		ORDER BY position
	`, string(id))
	if err != nil {
		return fees.Schedule{}, fmt.Errorf("query fee brackets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b fees.Bracket
		if err := rows.Scan(&b.UpperBound, &b.PackagingCost, &b.ShippingCost, &b.TaxPct, &b.CommissionPct, &b.MarginPct, &b.MarketingPct); err != nil {
			return fees.Schedule{}, fmt.Errorf("scan fee bracket: %w", err)
		}
		sched.Brackets = append(sched.Brackets, b)
	}
	if err := rows.Err(); err != nil {
		return fees.Schedule{}, fmt.Errorf("iterate fee brackets: %w", err)
	}

	return sched, nil
}

// SaveSchedule validates sched and replaces the stored schedule with it.
func (s *Store) SaveSchedule(ctx context.Context, sched fees.Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save schedule transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var threshold, shipping sql.NullFloat64
	if hv := sched.HighValue; hv != nil {
		threshold = sql.NullFloat64{Float64: hv.Threshold, Valid: true}
		shipping = sql.NullFloat64{Float64: hv.Shipping, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO marketplaces (id, name, high_value_threshold, high_value_shipping)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			high_value_threshold = excluded.high_value_threshold,
			high_value_shipping = excluded.high_value_shipping,
			updated_at = CURRENT_TIMESTAMP
	`, string(sched.Marketplace), sched.Name, threshold, shipping); err != nil {
		return fmt.Errorf("upsert marketplace %s: %w", sched.Marketplace, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fee_brackets WHERE marketplace_id = ?`, string(sched.Marketplace)); err != nil {
		return fmt.Errorf("clear brackets of %s: %w", sched.Marketplace, err)
	}

	for i, b := range sched.Brackets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fee_brackets (
				marketplace_id,
				position,
				upper_bound,
				packaging_cost,
				shipping_cost,
				tax_pct,
				commission_pct,
				margin_pct,
				marketing_pct
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, string(sched.Marketplace), i, b.UpperBound, b.PackagingCost, b.ShippingCost, b.TaxPct, b.CommissionPct, b.MarginPct, b.MarketingPct); err != nil {
			return fmt.Errorf("insert bracket %d of %s: %w", i, sched.Marketplace, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save schedule transaction: %w", err)
	}
	return nil
}

// SaveQuote stores q under a fresh id and creation time and returns it.
func (s *Store) SaveQuote(ctx context.Context, q Quote) (Quote, error) {
	q.ID = s.newID()
	q.CreatedAt = s.now().UTC()
	q.Title = strings.TrimSpace(q.Title)
	if q.Items == nil {
		q.Items = []composition.Item{}
	}

	items, err := json.Marshal(q.Items)
	if err != nil {
		return Quote{}, fmt.Errorf("encode quote composition: %w", err)
	}
	result, err := json.Marshal(q.Result)
	if err != nil {
		return Quote{}, fmt.Errorf("encode quote result: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (
			id,
			created_at,
			title,
			marketplace_id,
			discount_pct,
			total_cost,
			sale_price,
			converged,
			iterations,
			composition_json,
			result_json
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		q.ID,
		q.CreatedAt.Format(timeLayout),
		q.Title,
		string(q.Marketplace),
		q.DiscountPct,
		q.Result.Breakdown.Cost,
		q.Result.SalePrice,
		q.Result.Converged,
		q.Result.Iterations,
		string(items),
		string(result),
	); err != nil {
		return Quote{}, fmt.Errorf("insert quote: %w", err)
	}

	return q, nil
}

// GetQuote loads one saved quote.
func (s *Store) GetQuote(ctx context.Context, id string) (Quote, error) {
	q, err := scanQuote(s.db.QueryRowContext(ctx, `
		SELECT id, created_at, title, marketplace_id, discount_pct, composition_json, result_json
		FROM quotes
		WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quote{}, fmt.Errorf("quote %s: %w", id, ErrNotFound)
		}
		return Quote{}, err
	}
	return q, nil
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListQuotes returns saved quotes newest first. A non-empty query keeps only
// quotes whose title or marketplace contains it.
func (s *Store) ListQuotes(ctx context.Context, query string) ([]Quote, error) {
	query = strings.TrimSpace(query)
	search := "%" + likeEscaper.Replace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, title, marketplace_id, discount_pct, composition_json, result_json
		FROM quotes
		WHERE (? = '' OR title LIKE ? ESCAPE '\' OR marketplace_id LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]Quote, 0)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}

	return quotes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (fees.Schedule, error) {
	var (
		id, name            string
		threshold, shipping sql.NullFloat64
	)
	if err := row.Scan(&id, &name, &threshold, &shipping); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fees.Schedule{}, err
		}
		return fees.Schedule{}, fmt.Errorf("scan marketplace: %w", err)
	}

	sched := fees.Schedule{Marketplace: fees.MarketplaceID(id), Name: name}
	if threshold.Valid && shipping.Valid {
		sched.HighValue = &fees.HighValueRule{Threshold: threshold.Float64, Shipping: shipping.Float64}
	}
	return sched, nil
}

func scanQuote(row scanner) (Quote, error) {
	var (
		q                  Quote
		createdAt, market  string
		itemsJSON, resJSON string
	)
	if err := row.Scan(&q.ID, &createdAt, &q.Title, &market, &q.DiscountPct, &itemsJSON, &resJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quote{}, err
		}
		return Quote{}, fmt.Errorf("scan quote: %w", err)
	}

	var err error
	if q.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Quote{}, fmt.Errorf("parse quote %s created_at: %w", q.ID, err)
	}
	q.Marketplace = fees.MarketplaceID(market)
	if err := json.Unmarshal([]byte(itemsJSON), &q.Items); err != nil {
		return Quote{}, fmt.Errorf("decode quote %s composition: %w", q.ID, err)
	}
	if err := json.Unmarshal([]byte(resJSON), &q.Result); err != nil {
		return Quote{}, fmt.Errorf("decode quote %s result: %w", q.ID, err)
	}
	return q, nil
}
