package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	// Auto-migrate schema
	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	// Operator users
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) DEFAULT 'operator',
			org_id VARCHAR(64),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	// Organizations: plan, quota limit, classifier settings, thresholds
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orgs (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			plan VARCHAR(20) DEFAULT 'free',
			monthly_limit INT DEFAULT 500,
			provider VARCHAR(50) DEFAULT 'openai',
			model VARCHAR(100) DEFAULT 'gpt-4o-mini',
			temperature DECIMAL(3, 2) DEFAULT 0.2,
			system_prompt TEXT,
			auto_execute_threshold DECIMAL(3, 2) DEFAULT 0.85,
			require_approval_threshold DECIMAL(3, 2) DEFAULT 0.50,
			force_approval BOOLEAN DEFAULT FALSE,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create orgs table: %w", err)
	}

	// Agent tasks: one row per admitted input
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS agent_tasks (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64),
			org_id VARCHAR(64),
			principal VARCHAR(255),
			source VARCHAR(20) NOT NULL,
			source_id VARCHAR(255),
			raw_content TEXT,
			task_type VARCHAR(30) DEFAULT 'UNKNOWN',
			priority INT DEFAULT 3,
			status VARCHAR(20) DEFAULT 'PENDING',
			entities JSONB,
			ai_metadata JSONB,
			resolution TEXT,
			error_message TEXT,
			retry_count INT DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			processed_at TIMESTAMP,
			completed_at TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create agent_tasks table: %w", err)
	}
	p.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_agent_tasks_org_status ON agent_tasks (org_id, status);")

	// Open-task index: principal -> newest open task, maintained in the
	// same transaction as task writes
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS open_tasks (
			principal VARCHAR(255) PRIMARY KEY,
			task_id VARCHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create open_tasks index: %w", err)
	}

	// Durable job queue consumed by external workers
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS agent_jobs (
			id VARCHAR(80) PRIMARY KEY,
			task_id VARCHAR(64) NOT NULL,
			lane VARCHAR(20) NOT NULL,
			action_type VARCHAR(50) NOT NULL,
			params JSONB,
			delay_ms BIGINT DEFAULT 0,
			status VARCHAR(20) DEFAULT 'queued',
			enqueued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create agent_jobs table: %w", err)
	}
	p.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_agent_jobs_task ON agent_jobs (task_id);")
	p.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_agent_jobs_lane ON agent_jobs (lane, status);")

	// Monthly usage counters keyed by period (YYYY-MM); rollover is lazy
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS org_usage (
			org_id VARCHAR(64) NOT NULL,
			quota_type VARCHAR(50) NOT NULL,
			period VARCHAR(7) NOT NULL,
			used INT DEFAULT 0,
			PRIMARY KEY (org_id, quota_type, period)
		);
	`)
	if err != nil {
		return fmt.Errorf("create org_usage table: %w", err)
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
