// Command sessiond is the console terminal's session agent. It owns the
// authentication session, keeps it fresh and serves it over a local HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/comanda/restaurant-console/internal/api"
	"github.com/comanda/restaurant-console/internal/api/metrics"
	"github.com/comanda/restaurant-console/internal/core/ports"
	"github.com/comanda/restaurant-console/internal/core/service"
	"github.com/comanda/restaurant-console/internal/infrastructure/authapi"
	"github.com/comanda/restaurant-console/internal/infrastructure/db"
	"github.com/comanda/restaurant-console/internal/infrastructure/events"
	"github.com/comanda/restaurant-console/internal/pkg/config"
	"github.com/comanda/restaurant-console/pkg/logger"
	"github.com/comanda/restaurant-console/pkg/telemetry"
)

const serviceName = "sessiond"

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
		Service: serviceName,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("session agent stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, serviceName, cfg.OTel.Endpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	store, closeStore, err := db.Open(ctx, cfg, logger.Named("credential_store"))
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer closeStore()

	httpClient := authapi.NewHTTPClient(cfg.API.Timeout)
	authClient := authapi.New(cfg.API.BaseURL, httpClient, log).WithRecorder(metrics.AuthRecorder{})

	manager := service.NewSessionManager(authClient, store, log)
	defer manager.Close()

	recorder := &metrics.SessionRecorder{}
	unsubscribe := manager.Subscribe(recorder.Observe)
	defer unsubscribe()

	if cfg.NATS.URL != "" {
		publisher, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject, cfg.Terminal, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		unsubscribeEvents := manager.Subscribe(publisher.Observe)
		defer unsubscribeEvents()
	}

	scheduler := service.NewRefreshScheduler(manager, cfg.Session.RefreshLead, log)
	scheduler.Start()
	defer scheduler.Stop()

	var activity ports.ActivityTracker
	if cfg.Session.IdleTimeout > 0 {
		watcher := service.NewIdleWatcher(manager, cfg.Session.IdleTimeout, cfg.Session.IdleWarning,
			func(remaining time.Duration) {
				log.Warn().Dur("remaining", remaining).Msg("session will end soon due to inactivity")
			}, log)
		watcher.OnLogout = metrics.IdleLogoutsTotal.Inc
		watcher.Start()
		defer watcher.Stop()
		activity = watcher
	}

	restaurant := service.NewRestaurantInfoStore(authapi.NewAPIClient(cfg.API.BaseURL, httpClient, manager), log)
	restaurant.Start(manager)
	defer restaurant.Stop()

	if err := manager.Hydrate(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore stored session")
	}
	manager.CheckAuth(ctx)
	log.Info().
		Bool("authenticated", manager.Snapshot().IsAuthenticated).
		Str("store", cfg.Store.Driver).
		Msg("session bootstrapped")

	e := api.NewRouter(api.Deps{
		Session:    manager,
		Activity:   activity,
		Restaurant: restaurant,
		Ready: map[string]ports.Pinger{
			"credential_store": store,
			"auth_api":         authClient,
		},
		Log: logger.Named("http_api"),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", server.Addr).Msg("session agent listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
