package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/devauth"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/clock"
	"github.com/OtmaneTouhami/budget-wise/internal/platform/config"
	"github.com/OtmaneTouhami/budget-wise/internal/platform/dynamo"
	"github.com/OtmaneTouhami/budget-wise/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config to devapi: %s\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	baseLogger := logger.NewSlogConfig(logger.SlogConfig{
		Level:     logger.Level(cfg.Log.Level),
		Format:    logger.Format(cfg.Log.Format),
		AddSource: cfg.Log.AddSource,
	})
	slog.SetDefault(baseLogger)

	clk := clock.SystemClock{}

	// ----- Auth module dependencies ----- //

	jwtManager, err := devauth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, clk)
	if err != nil {
		return err
	}
	tokenRepo, err := newTokenRepository(ctx, cfg)
	if err != nil {
		return err
	}
	tokenSvc := devauth.NewTokenService(tokenRepo, jwtManager, cfg.Auth.RefreshTokenTTL, clk)
	passwords := devauth.NewPasswordManager(cfg.Auth.PasswordPepper, devauth.DefaultArgon2Params)
	authSvc := devauth.NewService(devauth.NewMemoryUserRepository(), tokenSvc, passwords, devauth.LogNotifier{}, clk, cfg.Auth.VerificationTTL)
	authHandler := devauth.NewAuthHandler(authSvc, jwtManager)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e := devauth.NewServer(authHandler, baseLogger, reg)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		baseLogger.Info("DEVAPI_LISTENING", slog.String("addr", srv.Addr), slog.String("token_store", cfg.Auth.TokenStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	baseLogger.Info("DEVAPI_STOPPED")
	return nil
}

func newTokenRepository(ctx context.Context, cfg *config.Config) (devauth.TokenRepository, error) {
	if cfg.Auth.TokenStore != "dynamodb" {
		return devauth.NewMemoryTokenRepository(), nil
	}

	client, err := dynamo.NewDynamoDBClient(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DynamoDB.Endpoint != "" {
		if _, err := dynamo.EnsureTable(ctx, client, dynamo.AuthTable(cfg.Auth.DynamoTable, devauth.TokenHashIndex)); err != nil {
			return nil, err
		}
	}
	return devauth.NewDynamoTokenRepository(client, cfg.Auth.DynamoTable), nil
}
