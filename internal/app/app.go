// Package app wires configuration, storage, domain services and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/refitt/refitt-api/internal/apierr"
	"github.com/refitt/refitt-api/internal/domain/auth"
	"github.com/refitt/refitt-api/internal/domain/observation"
	"github.com/refitt/refitt-api/internal/domain/profile"
	"github.com/refitt/refitt-api/internal/endpoint"
	"github.com/refitt/refitt-api/internal/handler"
	"github.com/refitt/refitt-api/internal/storage/postgres"
	"github.com/refitt/refitt-api/internal/token"
	"github.com/refitt/refitt-api/pkg/health"
	"github.com/refitt/refitt-api/pkg/httpmiddleware"
)

const serviceName = "refitt-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	srvHandler, healthSvc, err := newHandler(ctx, lg, m, cfg, pool)
	if err != nil {
		return err
	}
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srvHandler,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		return errors.Wrap(server.Shutdown(shutdownCtx), "shutdown")
	})

	healthSvc.SetReady(true)
	return g.Wait()
}

// newHandler builds the services on top of pool and returns the complete
// middleware-wrapped HTTP handler with its health probes. Probes are
// registered but not started.
func newHandler(
	ctx context.Context,
	lg *zap.Logger,
	m httpmiddleware.TelemetryProvider,
	cfg *Config,
	pool *pgxpool.Pool,
) (http.Handler, *health.Health, error) {
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.Ping(pool)})
	healthSvc.Add(health.Liveness, health.Check{Name: "goroutines", Timeout: time.Second, Func: health.GoroutineCount(10000)})
	healthSvc.Add(health.Liveness, health.Check{Name: "gc", Timeout: time.Second, Func: health.GCMaxPause(time.Second)})

	codec, err := token.NewCodec([]byte(cfg.Token.Secret))
	if err != nil {
		return nil, nil, errors.Wrap(err, "create token codec")
	}
	authService := auth.NewService(postgres.NewClientRepository(pool), codec, auth.Options{
		Lifetime: cfg.Token.Lifetime,
		Level:    cfg.Client.Level,
	})
	guard, err := endpoint.NewGuard(authService, m.MeterProvider().Meter(serviceName))
	if err != nil {
		return nil, nil, errors.Wrap(err, "create guard")
	}

	h := handler.New(
		authService,
		profile.NewService(postgres.NewProfileRepository(pool)),
		observation.NewService(postgres.NewObservationRepository(pool)),
		guard,
	)
	proxies, err := cfg.RateLimit.Proxies()
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	healthSvc.Register(mux)
	h.Register(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(writeError),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument(serviceName, m),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:            cfg.RateLimit.Max,
			Window:         cfg.RateLimit.Window,
			TrustedProxies: proxies,
			OnLimit: func(w http.ResponseWriter, r *http.Request, err error) {
				writeError(w, r, apierr.Wrap(apierr.RateLimited, err, "Rate limit exceeded"))
			},
		}),
		httpmiddleware.MaxBytes(cfg.MaxPayload),
	), healthSvc, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	endpoint.WriteError(w, r, err)
}
