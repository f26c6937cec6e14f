package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabot-ai/inkpost/internal/admin"
	"github.com/alphabot-ai/inkpost/internal/auth"
	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/config"
	"github.com/alphabot-ai/inkpost/internal/dashboard"
	"github.com/alphabot-ai/inkpost/internal/feed"
	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/notify"
	"github.com/alphabot-ai/inkpost/internal/observability"
	"github.com/alphabot-ai/inkpost/internal/rate"
	"github.com/alphabot-ai/inkpost/internal/session"
	sessionredis "github.com/alphabot-ai/inkpost/internal/session/redis"
	sessionsqlite "github.com/alphabot-ai/inkpost/internal/session/sqlite"
	"github.com/alphabot-ai/inkpost/internal/viewer"
)

// env is everything a command needs. The session and API client are opened
// lazily so that commands like sandbox never touch the session backend.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	tr       *i18n.Translator
	notifier notify.Notifier
	out      *printer

	metrics     *observability.ClientMetrics
	metricsFile string
	tracer      trace.Tracer
	shutdown    func(context.Context) error

	store   *session.Store
	api     *client.Client
	closers []func() error
}

func newEnv(c *cli.Context, stdout, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("base-url") {
		cfg.BaseURL = c.String("base-url")
	}
	if c.IsSet("session") {
		cfg.Session.Backend = c.String("session")
	}
	if c.IsSet("lang") {
		cfg.Language = c.String("lang")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tr := i18n.New(cfg.Language)
	out, err := newPrinter(stdout, c.String("format"), tr)
	if err != nil {
		return nil, err
	}

	tracer, shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:      c.Bool("trace") || c.String("otlp-endpoint") != "",
		Output:       stderr,
		OTLPEndpoint: c.String("otlp-endpoint"),
	})
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:         cfg,
		logger:      observability.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format),
		tr:          tr,
		notifier:    notify.NewWriter(stderr),
		out:         out,
		metrics:     observability.NewClientMetrics(),
		metricsFile: c.String("metrics-file"),
		tracer:      tracer,
		shutdown:    shutdown,
	}, nil
}

func (e *env) close(ctx context.Context) error {
	var errs []error
	if e.metricsFile != "" {
		if err := e.metrics.WriteTextfile(e.metricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := e.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *env) backend(ctx context.Context) (session.Backend, error) {
	switch e.cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemory(), nil
	case config.BackendSQLite:
		b, err := sessionsqlite.Open(e.cfg.Session.Path)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, b.Close)
		return b, nil
	case config.BackendRedis:
		b, err := sessionredis.Dial(ctx, e.cfg.Session.RedisURL)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, b.Close)
		return b, nil
	default:
		return session.NewFile(e.cfg.Session.Path), nil
	}
}

func (e *env) client(ctx context.Context) (*client.Client, error) {
	if e.api != nil {
		return e.api, nil
	}
	backend, err := e.backend(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	st, err := session.Open(ctx, backend)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	opts := []client.Option{
		client.WithLogger(e.logger),
		client.WithMetrics(e.metrics),
		client.WithTracer(e.tracer),
	}
	if e.cfg.Timeout > 0 {
		opts = append(opts, client.WithHTTPClient(&http.Client{Timeout: e.cfg.Timeout}))
	}
	if e.cfg.Rate.RPS > 0 {
		opts = append(opts, client.WithLimiter(rate.NewMemory(e.cfg.Rate.RPS, e.cfg.Rate.Burst)))
	}
	e.store = st
	e.api = client.New(e.cfg.BaseURL, st, opts...)
	return e.api, nil
}

// auth returns the auth controller after clearing a stale session.
func (e *env) auth(ctx context.Context) (*auth.Controller, error) {
	api, err := e.client(ctx)
	if err != nil {
		return nil, err
	}
	ctrl := auth.New(api, e.store, e.notifier, e.tr, auth.WithLogger(e.logger))
	if _, err := ctrl.Init(ctx); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func (e *env) feed(ctx context.Context) (*feed.Controller, *auth.Controller, error) {
	a, err := e.auth(ctx)
	if err != nil {
		return nil, nil, err
	}
	return feed.New(e.api, e.tr, feed.WithAuth(a.IsAuthenticated), feed.WithLogger(e.logger)), a, nil
}

func (e *env) viewer(ctx context.Context) (*viewer.Controller, *auth.Controller, error) {
	a, err := e.auth(ctx)
	if err != nil {
		return nil, nil, err
	}
	return viewer.New(e.api, e.tr, viewer.WithLogger(e.logger)), a, nil
}

func (e *env) dashboard(ctx context.Context) (*dashboard.Controller, *auth.Controller, error) {
	a, err := e.auth(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !a.IsAuthenticated() {
		e.notifier.Notify(e.tr.Sprintf(i18n.MsgSessionExpired), notify.Error)
		return nil, nil, errNotLoggedIn
	}
	return dashboard.New(e.api, e.notifier, e.tr, dashboard.WithLogger(e.logger)), a, nil
}

func (e *env) admin(ctx context.Context) (*admin.Controller, *auth.Controller, error) {
	a, err := e.auth(ctx)
	if err != nil {
		return nil, nil, err
	}
	ctrl := admin.New(e.api, e.store, e.notifier, e.tr, admin.WithLogger(e.logger))
	if _, err := ctrl.CheckAccess(); err != nil {
		return nil, nil, err
	}
	return ctrl, a, nil
}

var errNotLoggedIn = errors.New("not logged in, run 'inkpost login' first")
