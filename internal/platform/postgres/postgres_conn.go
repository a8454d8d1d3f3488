package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/OtmaneTouhami/budget-wise/internal/platform/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

// DSN builds the connection URL from the Database block. Credentials are
// escaped so passwords with reserved characters survive.
func DSN(cfg config.Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Database.User, cfg.Database.Password),
		Host:     net.JoinHostPort(cfg.Database.Host, strconv.Itoa(cfg.Database.Port)),
		Path:     "/" + cfg.Database.Name,
		RawQuery: url.Values{"sslmode": {cfg.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

func NewPostgresConnection(ctx context.Context, cfg config.Config) (*Postgres, error) {
	parsedCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	parsedCfg.MaxConns = cfg.Postgres.MaxConns
	parsedCfg.MinConns = cfg.Postgres.MinConns
	parsedCfg.MaxConnLifetime = cfg.Postgres.MaxConnLifetime
	parsedCfg.MaxConnIdleTime = cfg.Postgres.MaxConnIdleTime
	parsedCfg.HealthCheckPeriod = cfg.Postgres.HealthCheckPeriod
	parsedCfg.ConnConfig.ConnectTimeout = cfg.Postgres.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, parsedCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
