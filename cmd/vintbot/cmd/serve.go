package cmd

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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ncoulthurst/VintBot/internal/api/middleware"
	"github.com/ncoulthurst/VintBot/internal/config"
	"github.com/ncoulthurst/VintBot/internal/dedupe"
	"github.com/ncoulthurst/VintBot/internal/engine"
	"github.com/ncoulthurst/VintBot/internal/notify"
	"github.com/ncoulthurst/VintBot/internal/route"
	"github.com/ncoulthurst/VintBot/internal/vinted"
	"github.com/ncoulthurst/VintBot/pkg/logger"
	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poll loop and the ops listener",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	routes, err := route.Load(cfg.Channels.Path)
	if err != nil {
		return fmt.Errorf("loading channel table: %w", err)
	}
	log.Info("channel table loaded", "channels", routes.Len())

	seen, err := dedupe.Open(dedupe.Config{
		Driver: cfg.Dedupe.Driver,
		Path:   cfg.Dedupe.Path,
		TTL:    cfg.Dedupe.TTL,
	})
	if err != nil {
		return fmt.Errorf("opening seen store: %w", err)
	}
	defer func() {
		if err := seen.Close(); err != nil {
			log.Error("closing seen store", "error", err)
		}
	}()

	eng := buildEngine(cfg, log, routes, seen)

	sched, err := engine.NewScheduler(
		eng,
		cfg.Schedule.PollInterval,
		cfg.Schedule.RefreshInterval,
		log,
	)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	e := buildOpsServer(log, seen)

	addr := cfg.Server.Address()
	log.Info("starting ops listener", "addr", addr)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops listener error", "error", err)
		}
	}()

	sched.Start()
	log.Info("poll loop running",
		"searches", len(cfg.Searches),
		"poll_interval", cfg.Schedule.PollInterval,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// Let a running cycle finish before closing the listener.
	<-sched.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down ops listener: %w", err)
	}

	log.Info("stopped")
	return nil
}

func buildEngine(
	cfg *config.Config,
	log *slog.Logger,
	routes *route.Table,
	seen dedupe.SeenStore,
) *engine.Engine {
	session := vinted.NewCookieSessionProvider(
		cfg.Vinted.BaseURL,
		cfg.Vinted.UserAgent,
		vinted.WithSessionTTL(cfg.Vinted.SessionTTL),
	)

	limiter := vinted.NewRateLimiter(
		cfg.Vinted.RateLimit.PerSecond,
		cfg.Vinted.RateLimit.Burst,
		cfg.Vinted.RateLimit.DailyLimit,
	)

	catalog := vinted.NewAPIClient(session,
		vinted.WithBaseURL(cfg.Vinted.BaseURL),
		vinted.WithUserAgent(cfg.Vinted.UserAgent),
		vinted.WithRateLimiter(limiter),
	)

	pager := vinted.NewPager(catalog, seen, vinted.WithPagerLogger(log))

	notifier := buildNotifier(cfg, log)

	refresher := engine.NewRefresher(notifier,
		engine.WithRefreshWindow(cfg.Schedule.RefreshWindow),
		engine.WithRefresherLogger(log),
	)

	opts := []engine.EngineOption{
		engine.WithLogger(log),
		engine.WithSearches(engineSearches(cfg)),
		engine.WithRefresher(refresher),
		engine.WithDispatchStagger(cfg.Schedule.DispatchStagger),
	}

	if cfg.Enrich.Enabled {
		opts = append(opts, engine.WithEnricher(vinted.NewDetailClient(
			cfg.Enrich.BaseURL,
			cfg.Enrich.APIKey,
			vinted.WithDetailTimeout(cfg.Enrich.Timeout),
		)))
	}

	return engine.NewEngine(pager, seen, routes, notifier, opts...)
}

func buildNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	if !cfg.Discord.Enabled {
		log.Warn("discord dispatch disabled, listings will only be logged")
		return notify.NewNoOpNotifier(log)
	}
	return notify.NewDiscordNotifier(
		notify.WithUsername(cfg.Discord.Username),
		notify.WithHTTPClient(&http.Client{Timeout: cfg.Discord.Timeout}),
	)
}

func engineSearches(cfg *config.Config) []engine.Search {
	searches := make([]engine.Search, 0, len(cfg.Searches))
	for _, s := range cfg.Searches {
		filters := domain.Filters{SkipChildSizes: s.SkipChildSizes}
		if s.PriceMax > 0 {
			ceiling := s.PriceMax
			filters.PriceMax = &ceiling
		}

		searches = append(searches, engine.Search{
			Name: s.Name,
			Request: vinted.SearchRequest{
				Query:    s.Query,
				PerPage:  s.PerPage,
				MaxPages: s.MaxPages,
				PriceMax: s.PriceMax,
				Currency: s.Currency,
				Order:    "newest_first",
			},
			Filters: filters,
		})
	}
	return searches
}

func buildOpsServer(log *slog.Logger, seen dedupe.SeenStore) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Ready once the seen store answers; a wedged store means dispatch
	// dedup cannot be trusted.
	e.GET("/readyz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if _, err := seen.IsNew(ctx, "readyz-probe"); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
