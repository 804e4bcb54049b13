// Package app is the composition root: it builds the store, managers,
// planning engine and HTTP server from configuration and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/dispatchd/api/dispatch"
	"github.com/fleetops/dispatchd/config"
	"github.com/fleetops/dispatchd/core/availability"
	"github.com/fleetops/dispatchd/core/geo"
	"github.com/fleetops/dispatchd/core/orders"
	"github.com/fleetops/dispatchd/core/planning"
	"github.com/fleetops/dispatchd/core/routes"
	"github.com/fleetops/dispatchd/core/store"
	"github.com/fleetops/dispatchd/infra/logger"
	"github.com/fleetops/dispatchd/infra/metrics"
	"github.com/fleetops/dispatchd/infra/mqtt"
	infrastore "github.com/fleetops/dispatchd/infra/store"
)

// Service owns every long-lived component of the dispatch coordinator.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	store     store.Store
	engine    *planning.Engine
	trigger   *planning.Trigger
	server    *http.Server
	publisher *mqtt.Publisher
	pg        *infrastore.PostgresStore
}

// New builds the service from configuration. Collaborator capabilities
// (estimator, validator) default to the static implementations; deployments
// with a routing provider swap them here.
func New(cfg *config.Config) (*Service, error) {
	applyLogLevel(cfg.Logging.Level)
	for component, level := range cfg.Logging.Components {
		logger.SetComponentLevel(component, level)
	}
	log := logger.New("app")

	svc := &Service{cfg: cfg, log: log}
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := infrastore.NewPostgresStore(context.Background(), cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		svc.pg = pg
		svc.store = pg
	default:
		svc.store = store.NewMemoryStore()
	}

	sink, err := metrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	var journal *planning.Journal
	if cfg.Journal.Path != "" {
		if journal, err = planning.NewJournal(cfg.Journal.Path); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}
	var publisher planning.Publisher
	if cfg.MQTT.Enabled {
		p, err := mqtt.NewPublisher(cfg.MQTT.Client)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = p
		publisher = p
	}

	estimator := geo.NewStaticEstimator()
	estimator.Default = &geo.Leg{DistanceKm: 25, DurationMinutes: 35}
	validator := geo.StaticValidator{}

	resolver := availability.NewResolver(svc.store, logger.New("availability"))
	planner := routes.NewPlanner(svc.store, resolver, estimator, sink, logger.New("routes"), cfg.Routes)
	orderMgr := orders.NewManager(svc.store, validator, planner, sink, logger.New("orders"))
	svc.engine = planning.NewEngine(svc.store, planner, resolver, journal, publisher, sink, logger.New("planning"))
	svc.trigger = planning.NewTrigger(svc.engine, svc.store, logger.New("trigger"), cfg.Planning)

	handler := dispatch.NewHandler(svc.store, orderMgr, planner, svc.engine, resolver, logger.New("api"))
	svc.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return svc, nil
}

// Run serves until the context is cancelled, then shuts everything down.
func (s *Service) Run(ctx context.Context) error {
	go s.trigger.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	s.engine.Shutdown()
	return nil
}

// Close releases external connections.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if s.pg != nil {
		s.pg.Close()
	}
	return nil
}

func applyLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
