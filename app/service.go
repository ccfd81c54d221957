// Package app wires the configuration into a running dispatch service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub002/config"
	corealert "github.com/Sara-Samara/HealthAidProj-sub002/core/alert"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/audit"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/dispatch"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/match"
	coremetrics "github.com/Sara-Samara/HealthAidProj-sub002/core/metrics"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/registry"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/responder"
	corestore "github.com/Sara-Samara/HealthAidProj-sub002/core/store"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/alert"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/logger"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/metrics"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/store"
)

// Service bundles the dispatch coordinator with its transports and sinks.
type Service struct {
	Coordinator *dispatch.Coordinator
	Directory   *responder.Directory
	Bus         *alert.BusBroadcaster

	broadcaster corealert.Broadcaster
	auditLog    *audit.Log
	auditFile   *store.JSONLAuditStore
	log         logger.Logger
	promEnabled bool
	promPort    string
	wsHub       *alert.WSHub
	wsPort      string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var auditStore corestore.AuditStore
	var caseStore corestore.CaseStore
	var auditFile *store.JSONLAuditStore
	switch cfg.Audit.Backend {
	case "jsonl":
		f, err := store.NewJSONLAuditStore(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		auditStore = f
		auditFile = f
	default:
		mem := store.NewMemoryStore()
		auditStore = mem
		caseStore = mem
	}

	bus := alert.NewBusBroadcaster(cfg.Alert.QueueSize, logger.New("alert"))
	broadcasters := []corealert.Broadcaster{bus}
	var wsHub *alert.WSHub
	if cfg.Alert.WSEnabled {
		wsHub = alert.NewWSHub(logger.New("ws-hub"))
		broadcasters = append(broadcasters, wsHub)
	}
	if cfg.MQTT.Enabled {
		mq, err := alert.NewMQTTBroadcaster(cfg.MQTT, logger.New("mqtt-alert"))
		if err != nil {
			return nil, fmt.Errorf("mqtt broadcaster: %w", err)
		}
		broadcasters = append(broadcasters, mq)
	}
	var broadcaster corealert.Broadcaster = bus
	if len(broadcasters) > 1 {
		broadcaster = alert.NewMultiBroadcaster(broadcasters...)
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	auditLog := audit.NewLog(auditStore, logger.New("audit"))
	dir := responder.NewDirectory(logger.New("responders"))
	reg := registry.New(auditLog, caseStore, logger.New("registry"))
	matcher := match.New(cfg.Match, dir, logger.New("matcher"))
	coord, err := dispatch.NewCoordinator(cfg.Dispatch, reg, dir, matcher, broadcaster, nil, sink, logger.New("coordinator"))
	if err != nil {
		return nil, err
	}

	return &Service{
		Coordinator: coord,
		Directory:   dir,
		Bus:         bus,
		broadcaster: broadcaster,
		auditLog:    auditLog,
		auditFile:   auditFile,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
		wsHub:       wsHub,
		wsPort:      cfg.Alert.WSPort,
	}, nil
}

// Run starts the workers and blocks until the context is canceled. The
// metrics and websocket servers shut down with the context.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.wsHub != nil {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/ws", s.wsHub)
			srv := &http.Server{Addr: ":" + s.wsPort, Handler: mux}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := srv.Shutdown(shutdownCtx); err != nil {
					s.log.Errorf("ws server shutdown: %v", err)
				}
				cancel()
			}()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Errorf("ws server: %v", err)
			}
		}()
	}
	s.log.Infof("dispatch service started")
	return s.Coordinator.Run(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if err := s.Coordinator.Close(); err != nil {
		return err
	}
	if err := s.broadcaster.Close(); err != nil {
		s.log.Errorf("broadcaster close: %v", err)
	}
	if err := s.auditLog.Close(); err != nil {
		s.log.Errorf("audit close: %v", err)
	}
	if s.auditFile != nil {
		if err := s.auditFile.Close(); err != nil {
			s.log.Errorf("audit file close: %v", err)
		}
	}
	return nil
}
