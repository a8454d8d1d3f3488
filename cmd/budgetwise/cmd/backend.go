package cmd

import (
	"context"
	"fmt"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/session"
	"github.com/OtmaneTouhami/budget-wise/internal/platform/config"
	"github.com/OtmaneTouhami/budget-wise/internal/platform/dynamo"
	"github.com/OtmaneTouhami/budget-wise/internal/platform/postgres"
	"github.com/OtmaneTouhami/budget-wise/internal/platform/redis"
)

// openPersister connects the session backend named by SESSION_BACKEND.
// The returned func releases the connection.
func openPersister(ctx context.Context, cfg *config.Config) (session.Persister, func(), error) {
	noop := func() {}

	switch cfg.Session.Backend {
	case "memory":
		return session.NewMemoryPersister(), noop, nil

	case "file":
		return session.NewFilePersister(cfg.Session.FilePath), noop, nil

	case "redis":
		conn, err := redis.NewRedisConnection(ctx, *cfg)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisPersister(conn.Client), func() { _ = conn.Close() }, nil

	case "postgres":
		// The client_sessions table comes from migrations/0001_client_sessions.sql
		conn, err := postgres.NewPostgresConnection(ctx, *cfg)
		if err != nil {
			return nil, nil, err
		}
		return session.NewPostgresPersister(conn.Pool), conn.Close, nil

	case "dynamodb":
		client, err := dynamo.NewDynamoDBClient(ctx, *cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DynamoDB.Endpoint != "" {
			if _, err := dynamo.EnsureTable(ctx, client, dynamo.SessionTable(cfg.Session.DynamoTable)); err != nil {
				return nil, nil, err
			}
		}
		return session.NewDynamoPersister(client, cfg.Session.DynamoTable), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
