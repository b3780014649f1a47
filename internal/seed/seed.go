package seed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Simplici0/precifica/internal/fees"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run stores every schedule of table that is not in the database yet, in an
// idempotent way. Schedules already present are left untouched so edits made
// through the API survive restarts; one that lost all its brackets gets them
// back.
func Run(ctx context.Context, db *sql.DB, table fees.Table) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}
	for _, id := range table.IDs() {
		if err := ensureSchedule(ctx, tx, table[id], &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureSchedule(ctx context.Context, tx *sql.Tx, sched fees.Schedule, stats *Stats) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("seed schedule %s: %w", sched.Marketplace, err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM marketplaces WHERE id = ? LIMIT 1)`, string(sched.Marketplace)).Scan(&exists); err != nil {
		return fmt.Errorf("check marketplace %s existence: %w", sched.Marketplace, err)
	}

	if !exists {
		var threshold, shipping sql.NullFloat64
		if sched.HighValue != nil {
			threshold = sql.NullFloat64{Float64: sched.HighValue.Threshold, Valid: true}
			shipping = sql.NullFloat64{Float64: sched.HighValue.Shipping, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO marketplaces (id, name, high_value_threshold, high_value_shipping)
			VALUES (?, ?, ?, ?)
		`, string(sched.Marketplace), sched.Name, threshold, shipping); err != nil {
			return fmt.Errorf("insert marketplace %s: %w", sched.Marketplace, err)
		}
		if err := insertBrackets(ctx, tx, sched); err != nil {
			return err
		}
		stats.Inserts++
		return nil
	}

	var brackets int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM fee_brackets WHERE marketplace_id = ?`, string(sched.Marketplace)).Scan(&brackets); err != nil {
		return fmt.Errorf("count brackets of %s: %w", sched.Marketplace, err)
	}
	if brackets > 0 {
		return nil
	}

	if err := insertBrackets(ctx, tx, sched); err != nil {
		return err
	}
	stats.Updates++
	return nil
}

func insertBrackets(ctx context.Context, tx *sql.Tx, sched fees.Schedule) error {
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
	return nil
}
