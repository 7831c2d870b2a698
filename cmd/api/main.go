package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/config"
	"github.com/ariefcatur/go-asset-lifecycle/internal/httpx"
	kafkax "github.com/ariefcatur/go-asset-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-asset-lifecycle/internal/lifecycle"
	"github.com/ariefcatur/go-asset-lifecycle/internal/logging"
	"github.com/ariefcatur/go-asset-lifecycle/internal/metrics"
	"github.com/ariefcatur/go-asset-lifecycle/internal/notify"
	"github.com/ariefcatur/go-asset-lifecycle/internal/postgres"
	"github.com/ariefcatur/go-asset-lifecycle/internal/redisx"
)

const snapshotWriteTimeout = 300 * time.Millisecond

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("service", cfg.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if cfg.ApplySchema {
		if err := postgres.ApplySchema(ctx, db); err != nil {
			log.Fatalf("apply schema: %v", err)
		}
	}
	store := postgres.NewStore(db)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.NewSnapshotCache(rdb)

	// Kafka producers: lifecycle events and user notifications
	pEvents := kafkax.NewProducer(cfg.KafkaBrokers, assets.TopicLifecycle, 1024, log)
	pEvents.Start(ctx)
	pNotes := kafkax.NewProducer(cfg.KafkaBrokers, assets.TopicNotifications, 1024, log)
	pNotes.Start(ctx)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewPrometheus(reg, "")
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	// Engine & outbox relay
	coord := lifecycle.NewCoordinator(store, lifecycle.Options{
		MaxWait:  cfg.CoordinatorMaxWait,
		Timeout:  cfg.CoordinatorTimeout,
		Producer: cfg.ServiceName,
	}, log, rec)
	relay := notify.NewRelay(store, notify.NewKafkaPublisher(pEvents), notify.NewKafkaNotifier(pNotes), notify.RelayOptions{
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
		SweepSpec:   cfg.OutboxSweep,
	}, log, rec)
	coord.AfterCommit(func(c lifecycle.Committed) {
		if c.Events > 0 {
			relay.Kick()
		}
		if len(c.Assets) > 0 {
			// sync, supaya GET berikutnya tidak baca snapshot lama
			refreshSnapshots(cache, c.Assets, log)
		}
	})
	engine := lifecycle.NewEngine(coord, lifecycle.Policy{
		AllowDirectActivation: cfg.AllowDirectActivation,
		AutoCompleteTransfers: cfg.AutoCompleteTransfers,
	}, lifecycle.WithIdempotency(redisx.NewIdempotency(rdb)), lifecycle.WithConflictRetries(cfg.ConflictRetries))

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx); err != nil {
			log.Errorf("outbox relay: %v", err)
			cancel()
		}
	}()

	// HTTP
	router := httpx.NewRouter(reg)
	ah := &httpx.AssetsHandler{Engine: engine, Cache: cache, Users: store, Log: log}
	ah.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Infof("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2) // stop terima request baru dulu
	cancel()               // stop relay loop
	<-relayDone
	pEvents.Close() // tutup inbox -> flush & close writer
	pNotes.Close()
	pEvents.WaitClosed() // drain
	pNotes.WaitClosed()
}

// refreshSnapshots writes committed snapshots before the caller gets its
// response. The projector repeats the write from the event stream.
func refreshSnapshots(cache *redisx.SnapshotCache, list []assets.Asset, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotWriteTimeout)
	defer cancel()
	if err := cache.Refresh(ctx, list); err != nil {
		log.WithError(err).Warn("snapshot refresh failed")
	}
}
