package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/benbjohnson/clock"
	_ "github.com/lib/pq"

	"github.com/example/ride-companion/internal/alerts"
	"github.com/example/ride-companion/internal/anomaly"
	"github.com/example/ride-companion/internal/capture"
	"github.com/example/ride-companion/internal/config"
	"github.com/example/ride-companion/internal/feed"
	"github.com/example/ride-companion/internal/geo"
	"github.com/example/ride-companion/internal/httpapi"
	"github.com/example/ride-companion/internal/ingest"
	"github.com/example/ride-companion/internal/logging"
	"github.com/example/ride-companion/internal/markers"
	"github.com/example/ride-companion/internal/models"
	"github.com/example/ride-companion/internal/presence"
	"github.com/example/ride-companion/internal/storage"
	"github.com/example/ride-companion/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	clk := clock.New()

	// the ride context is resolved once here and never passed around untyped
	rideCtx := resolveRideContext(cfg)
	rideID, active := models.ActiveRideID(rideCtx)

	client := transport.NewClient(cfg.BackendURL, cfg.BackendToken)

	var store storage.RideStore
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			runMigrations(cfg.PGDSN)
		}
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Warn("postgres unavailable, using memory ride store", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	session := httpapi.NewSession(store)
	if active {
		ride := models.Ride{ID: rideID, GroupID: cfg.GroupID, Status: models.RideStarted}
		if err := session.Open(ride); err != nil {
			logger.Warn("could not record ride session", "ride_id", rideID, "error", err)
		}
	}

	var source capture.Source
	if cfg.MQTTBroker != "" {
		mq, err := capture.NewMQTTSource(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, logger)
		if err != nil {
			logger.Warn("mqtt position source unavailable", "error", err)
		} else {
			source = mq
			defer mq.Close()
		}
	}

	var publisher capture.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewPositionProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	tracker := capture.New(capture.Config{
		Source:         source,
		Uploader:       client,
		Publisher:      publisher,
		Clock:          clk,
		Logger:         logger,
		MemberID:       cfg.MemberID,
		RideID:         rideID,
		UploadInterval: cfg.UploadInterval,
		FixTimeout:     cfg.FixTimeout,
	})

	engine := alerts.NewEngine(alerts.Config{
		Backend:      client,
		Clock:        clk,
		Logger:       logger,
		DefaultTTL:   cfg.AlertTTL,
		SyncInterval: cfg.AlertSyncInterval,
	})
	hub := feed.NewHub(logger)
	engine.Subscribe(hub.PublishAlert)

	detector := anomaly.New(engine, clk, logger, cfg.StaleAfter, cfg.AnomalyAlertTTL)
	reconciler := markers.New(hub, clk)
	index := geo.NewIndex()

	poller := presence.New(client, clk, logger, cfg.PollInterval)
	poller.Subscribe(detector.Check)
	poller.Subscribe(func(ms []models.MemberPresence) { reconciler.Apply(ms) })
	poller.Subscribe(index.Update)

	var mirror *geo.RedisMirror
	if cfg.RedisAddr != "" {
		mirror = geo.NewRedisMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		defer mirror.Close()
		poller.Subscribe(func(ms []models.MemberPresence) { mirrorSnapshot(mirror, rideID, ms) })
	}

	if active {
		poller.Start(rideID)
		defer poller.Stop()
		engine.StartSync(rideID)
		defer engine.StopSync()
		if cfg.AutoTrack {
			if err := tracker.StartTracking(); err != nil {
				logger.Warn("tracking not started", "reason", capture.UserMessage(err))
			}
		}
		defer tracker.StopTracking()
	} else {
		logger.Info("no active ride; waiting for a ride to start", "group_id", cfg.GroupID)
	}

	api := httpapi.NewServer(logger, tracker, poller, engine, hub, index, store, session)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("companion listening", "addr", cfg.HTTPAddr, "ride_id", rideID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func resolveRideContext(cfg config.Config) models.RideContext {
	if cfg.RideID != "" {
		return models.ActiveRideContext{RideID: cfg.RideID, GroupID: cfg.GroupID}
	}
	return models.GroupContext{GroupID: cfg.GroupID}
}

func mirrorSnapshot(mirror *geo.RedisMirror, rideID string, members []models.MemberPresence) {
	ctx := context.Background()
	for _, m := range members {
		if !m.HasLocation() {
			continue
		}
		u := models.PositionUpdate{MemberID: m.MemberID, RideID: rideID, Lat: *m.Lat, Lon: *m.Lon}
		if m.LastLocationUpdateAt != nil {
			u.At = *m.LastLocationUpdateAt
		}
		// best-effort: a mirror miss never affects the companion
		_ = mirror.Upsert(ctx, u)
	}
}

// runMigrations applies migrations/001_create_rides.sql when requested.
func runMigrations(dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("migration db open error: %v", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_rides.sql"))
	if err != nil {
		log.Printf("migration read error: %v", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		log.Printf("migration exec error: %v", err)
		return
	}
	log.Printf("migration applied: 001_create_rides.sql")
}
