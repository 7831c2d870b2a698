package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/config"
	kafkax "github.com/ariefcatur/go-asset-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-asset-lifecycle/internal/logging"
	"github.com/ariefcatur/go-asset-lifecycle/internal/projector"
	"github.com/ariefcatur/go-asset-lifecycle/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(".")
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	name := cfg.ServiceName + "-projector"
	log := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("service", name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Cache: redisx.NewSnapshotCache(rdb),
		Dedup: redisx.NewDedup(rdb, name),
		Log:   log,
	}

	// Consumer (1 partisi = 1 worker, urutan per asset terjaga)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, assets.TopicLifecycle, cfg.ProjectorWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Infof("projector started: group=%s topic=%s workers=%d", cfg.ProjectorGroup, assets.TopicLifecycle, cfg.ProjectorWorkers)
		if err := cons.Start(ctx, svc.HandleLifecycleEvent); err != nil {
			log.Errorf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down projector...")
	cancel() // worker berhenti di tengah retry, offset belum di-commit
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("consumer did not stop in time")
	}
}
