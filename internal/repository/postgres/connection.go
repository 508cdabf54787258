// Package postgres implements the job store against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/Jawayria/openedx-webhooks/config"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const applicationName = "openedx-webhooks"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Postgres wraps a pgx pool and configuration.
type Postgres struct {
	baseCtx context.Context
	log     *zap.SugaredLogger
	db      *pgxpool.Pool
	cfg     config.PostgresConfig
}

// New creates a Postgres job store instance.
func New(ctx context.Context, log *zap.SugaredLogger, cfg *config.Config) *Postgres {
	return &Postgres{
		baseCtx: ctx,
		log:     log.Named("repo.postgres"),
		cfg:     cfg.Postgres,
	}
}

// OnStart establishes connection pool and applies migrations.
func (p *Postgres) OnStart(_ context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN())
	if err != nil {
		return fmt.Errorf("parse pool config: %w", err)
	}
	poolCfg.MaxConns = p.cfg.MaxConns
	poolCfg.MinConns = p.cfg.MinConns
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	connectCtx, cancelConnect := context.WithTimeout(p.baseCtx, p.cfg.QueryTimeout)
	defer cancelConnect()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return fmt.Errorf("ping pool: %w", err)
	}

	if err := p.migrate(); err != nil {
		pool.Close()
		return err
	}

	p.db = pool
	p.log.Infow("postgres job store ready", "host", p.cfg.Host, "port", p.cfg.Port, "db", p.cfg.DBName)
	return nil
}

// migrate applies goose migrations through database/sql, which goose requires.
// The migrations compiled into the binary are used unless a directory is configured.
func (p *Postgres) migrate() error {
	var fsys fs.FS
	if p.cfg.MigrationsDir != "" {
		fsys = os.DirFS(p.cfg.MigrationsDir)
	} else {
		sub, err := fs.Sub(embeddedMigrations, "migrations")
		if err != nil {
			return fmt.Errorf("migrations fs: %w", err)
		}
		fsys = sub
	}

	sqlDB, err := sql.Open("postgres", p.cfg.DSN())
	if err != nil {
		return fmt.Errorf("open sql: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("migrate provider: %w", err)
	}

	migrateCtx, cancelMigrate := context.WithTimeout(p.baseCtx, p.cfg.MigrateTimeout)
	defer cancelMigrate()

	results, err := provider.Up(migrateCtx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, r := range results {
		p.log.Infow("migration applied", "source", r.Source.Path, "duration", r.Duration)
	}
	version, err := provider.GetDBVersion(migrateCtx)
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	p.log.Debugw("job store schema", "version", version)
	return nil
}

// Ping reports whether the pool can reach the database.
func (p *Postgres) Ping(ctx context.Context) error {
	if p.db == nil {
		return fmt.Errorf("postgres job store not started")
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.db.Ping(ctx)
}

// OnStop closes pool connections.
func (p *Postgres) OnStop(_ context.Context) error {
	if p.db != nil {
		p.db.Close()
	}
	return nil
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.QueryTimeout)
}
