package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intakehub/internal/entities"
)

// QuotaRepository tracks monthly per-organization usage. Rows are keyed by
// (org, quota type, YYYY-MM period) so a new month starts a fresh counter
// without any rollover job.
type QuotaRepository struct {
	db *pgxpool.Pool
}

func NewQuotaRepository(db *pgxpool.Pool) *QuotaRepository {
	return &QuotaRepository{db: db}
}

func currentPeriod() string {
	return time.Now().UTC().Format("2006-01")
}

// Enforce returns a QuotaExceededError when the org is at or over its
// monthly limit. It must run before any task row is persisted (fail closed).
func (r *QuotaRepository) Enforce(ctx context.Context, orgID, quotaType string) error {
	used, limit, plan, err := r.usage(ctx, orgID, quotaType)
	if err != nil {
		return err
	}
	if limit > 0 && used >= limit {
		return &entities.QuotaExceededError{QuotaType: quotaType, Used: used, Limit: limit, Plan: plan}
	}
	return nil
}

// Increment records one consumed unit for the current period.
func (r *QuotaRepository) Increment(ctx context.Context, orgID, quotaType string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO org_usage (org_id, quota_type, period, used)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (org_id, quota_type, period)
		DO UPDATE SET used = org_usage.used + 1
	`, orgID, quotaType, currentPeriod())
	return err
}

// Usage returns the current period's consumption and the org limit.
func (r *QuotaRepository) Usage(ctx context.Context, orgID, quotaType string) (int, int, error) {
	used, limit, _, err := r.usage(ctx, orgID, quotaType)
	return used, limit, err
}

func (r *QuotaRepository) usage(ctx context.Context, orgID, quotaType string) (used, limit int, plan string, err error) {
	err = r.db.QueryRow(ctx,
		"SELECT monthly_limit, plan FROM orgs WHERE id = $1", orgID).Scan(&limit, &plan)
	if err == pgx.ErrNoRows {
		return 0, 0, "", &entities.NotFoundError{Kind: "org", ID: orgID}
	}
	if err != nil {
		return 0, 0, "", err
	}

	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(used, 0) FROM org_usage
		WHERE org_id = $1 AND quota_type = $2 AND period = $3
	`, orgID, quotaType, currentPeriod()).Scan(&used)
	if err == pgx.ErrNoRows {
		return 0, limit, plan, nil // no record means zero usage
	}
	if err != nil {
		return 0, 0, "", err
	}
	return used, limit, plan, nil
}
