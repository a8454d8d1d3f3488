// Package cmd provides the CLI commands for BudgetWise.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/apiclient"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/auth"
	ctxlogger "github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/logger/context"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/session"
	"github.com/OtmaneTouhami/budget-wise/internal/platform/config"
	"github.com/OtmaneTouhami/budget-wise/pkg/logger"
)

// app holds what the commands share for one invocation
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *session.Store
	client  *apiclient.Client
	auth    *auth.Service
	metrics *prometheus.Registry
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type rootFlags struct {
	envFile        string
	baseURL        string
	logLevel       string
	sessionBackend string
	sessionFile    string
	dumpMetrics    bool
}

// NewRootCmd builds the budgetwise command tree
func NewRootCmd() *cobra.Command {
	var (
		flags rootFlags
		a     = &app{}
	)

	root := &cobra.Command{
		Use:   "budgetwise",
		Short: "BudgetWise API client",
		Long: `budgetwise talks to the BudgetWise API with a persisted session.

Expired access tokens are refreshed once, however many requests are in
flight, and the requests are replayed with the new token.

Configuration:
  Values come from the environment and an optional .env file.
  Flags override them for one invocation.
  Example: SESSION_BACKEND=redis budgetwise status`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd, flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			if !flags.dumpMetrics {
				return nil
			}
			return a.writeMetrics(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", "", "env file to load (default: ./.env when present)")
	pf.StringVar(&flags.baseURL, "base-url", "", "API root, e.g. http://localhost:3333/api/v1 (env API_BASE_URL)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	pf.StringVar(&flags.sessionBackend, "session-backend", "", "memory, file, redis, postgres or dynamodb (env SESSION_BACKEND)")
	pf.StringVar(&flags.sessionFile, "session-file", "", "session file of the file backend (env SESSION_FILE_PATH)")
	pf.BoolVar(&flags.dumpMetrics, "metrics", false, "print the client metrics to stderr after the command")

	root.AddCommand(
		newRegisterCmd(a),
		newVerifyCmd(a),
		newResendVerificationCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newProfileCmd(a),
		newRequestCmd(a),
		newPingCmd(a),
	)
	return root
}

// Execute runs the root command until it finishes or a signal arrives
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, apiclient.ErrorMessage(err))
		os.Exit(1)
	}
}

func (a *app) open(cmd *cobra.Command, flags rootFlags) error {
	var files []string
	if flags.envFile != "" {
		files = append(files, flags.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = logger.NewSlogConfig(logger.SlogConfig{
		Level:     logger.Level(cfg.Log.Level),
		Format:    logger.Format(cfg.Log.Format),
		AddSource: cfg.Log.AddSource,
		Writer:    cmd.ErrOrStderr(),
	})
	ctx := ctxlogger.SetLogger(cmd.Context(), a.logger.With(slog.String("command", cmd.Name())))
	cmd.SetContext(ctx)

	persister, closePersister, err := openPersister(ctx, cfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closePersister)

	a.store = session.NewStore(persister,
		session.WithKey(cfg.Session.StorageKey),
		session.WithLogger(a.logger),
	)
	if err := a.store.Load(ctx); err != nil {
		a.close()
		return err
	}

	a.metrics = prometheus.NewRegistry()
	a.client, err = apiclient.NewClient(cfg.Client.BaseURL, a.store,
		apiclient.WithTimeout(cfg.Client.Timeout),
		apiclient.WithRefreshPath(cfg.Client.RefreshPath),
		apiclient.WithRefreshTimeout(cfg.Client.RefreshTimeout),
		apiclient.WithLogger(a.logger),
		apiclient.WithMetrics(apiclient.NewMetrics(a.metrics)),
		apiclient.WithUserAgent("budgetwise-cli"),
	)
	if err != nil {
		a.close()
		return err
	}
	a.auth = auth.NewService(a.client, a.store, nil)
	return nil
}

func (f rootFlags) apply(cfg *config.Config) error {
	if f.baseURL != "" {
		cfg.Client.BaseURL = f.baseURL
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.sessionFile != "" {
		cfg.Session.FilePath = f.sessionFile
	}
	if f.sessionBackend != "" {
		switch f.sessionBackend {
		case "memory", "file", "redis", "postgres", "dynamodb":
			cfg.Session.Backend = f.sessionBackend
		default:
			return fmt.Errorf("unknown session backend %q", f.sessionBackend)
		}
	}
	return nil
}

func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.metrics.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}

// printf writes command output. A failed write to stdout is not worth
// failing the command for.
func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

var errMissingArgument = errors.New("missing argument")
