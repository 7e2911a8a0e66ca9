package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/checkout"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/lifecycle"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/handler"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/repository"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/pkg/health"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the lifecycle sweeper and the HTTP
// server, and handles graceful shutdown. It is the single wiring point for
// the engine.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.DatabaseCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	promotionRepo := repository.NewPromotionRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)

	// Domain services.
	promotionService := promotion.NewService(promotionRepo)
	couponValidator := coupon.NewValidator(couponRepo, promotionRepo)
	orchestrator := checkout.NewOrchestrator(promotionRepo, couponValidator, lg.Named("checkout"))
	recorder := checkout.NewRecorder(promotionRepo, couponRepo, lg.Named("recorder"))

	generator := coupon.NewGenerator(couponRepo)
	if err := generator.Seed(ctx); err != nil {
		return errors.Wrap(err, "seed coupon generator")
	}

	// Lifecycle sweeper runs independently of request traffic.
	sweeper := lifecycle.NewSweeper(promotionRepo, couponRepo, cfg.SweepInterval, lg.Named("lifecycle"))
	go sweeper.Run(ctx)

	// HTTP surface.
	h := handler.New(orchestrator, couponValidator, recorder, promotionService, couponRepo, generator)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
