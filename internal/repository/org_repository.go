package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intakehub/internal/entities"
)

// OrgRepository reads and writes per-organization configuration: plan,
// quota limit, classifier provider settings, and routing thresholds.
type OrgRepository struct {
	db *pgxpool.Pool

	// onChange, when set, is called after a successful Save so cached
	// classifier clients for the org can be invalidated.
	onChange func(orgID string)
}

func NewOrgRepository(db *pgxpool.Pool) *OrgRepository {
	return &OrgRepository{db: db}
}

// OnChange registers the cache-invalidation hook.
func (r *OrgRepository) OnChange(fn func(orgID string)) {
	r.onChange = fn
}

func (r *OrgRepository) Get(ctx context.Context, orgID string) (*entities.OrgConfig, error) {
	var cfg entities.OrgConfig
	var systemPrompt *string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, plan, monthly_limit, provider, model, temperature, system_prompt,
			auto_execute_threshold, require_approval_threshold, force_approval, updated_at
		FROM orgs WHERE id = $1
	`, orgID).Scan(&cfg.ID, &cfg.Name, &cfg.Plan, &cfg.MonthlyLimit, &cfg.Provider, &cfg.Model,
		&cfg.Temperature, &systemPrompt, &cfg.Thresholds.AutoExecute,
		&cfg.Thresholds.RequireApproval, &cfg.ForceApproval, &cfg.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, &entities.NotFoundError{Kind: "org", ID: orgID}
	}
	if err != nil {
		return nil, err
	}
	if systemPrompt != nil {
		cfg.SystemPrompt = *systemPrompt
	}
	return &cfg, nil
}

func (r *OrgRepository) Save(ctx context.Context, cfg *entities.OrgConfig) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO orgs (id, name, plan, monthly_limit, provider, model, temperature, system_prompt,
			auto_execute_threshold, require_approval_threshold, force_approval, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			plan = EXCLUDED.plan,
			monthly_limit = EXCLUDED.monthly_limit,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			temperature = EXCLUDED.temperature,
			system_prompt = EXCLUDED.system_prompt,
			auto_execute_threshold = EXCLUDED.auto_execute_threshold,
			require_approval_threshold = EXCLUDED.require_approval_threshold,
			force_approval = EXCLUDED.force_approval,
			updated_at = NOW()
	`, cfg.ID, cfg.Name, cfg.Plan, cfg.MonthlyLimit, cfg.Provider, cfg.Model, cfg.Temperature,
		cfg.SystemPrompt, cfg.Thresholds.AutoExecute, cfg.Thresholds.RequireApproval, cfg.ForceApproval)
	if err != nil {
		return err
	}
	if r.onChange != nil {
		r.onChange(cfg.ID)
	}
	return nil
}
