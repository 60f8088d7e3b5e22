package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitegen/internal/config"
	"sitegen/internal/handler"
	"sitegen/internal/infrastructure/cache"
	"sitegen/internal/infrastructure/database"
	"sitegen/internal/infrastructure/identity"
	"sitegen/internal/infrastructure/llm"
	"sitegen/internal/infrastructure/lock"
	"sitegen/internal/infrastructure/mq"
	"sitegen/internal/job"
	"sitegen/internal/repository"
	"sitegen/internal/service"
	"sitegen/pkg/idgen"
	"sitegen/pkg/logger"

	"github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	workerID := flag.Int64("worker-id", 1, "snowflake worker id for ledger transaction numbers")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if missing := cfg.Missing(); len(missing) > 0 {
		// Start anyway; the affected routes answer 503 until configured.
		log.WithField("missing", missing).Warn("running with incomplete configuration")
	}

	if err := idgen.Init(*workerID); err != nil {
		log.WithError(err).Fatal("init id generator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.WithError(err).Warn("close resource")
			}
		}
	}()

	var rdb *redis.Client
	if client, err := cache.Open(ctx, &cfg.Redis); err == nil {
		rdb = client
		closers = append(closers, rdb)
	} else if !errors.Is(err, cache.ErrNotConfigured) {
		log.WithError(err).Warn("redis unavailable, continuing without token cache and job lock")
	}

	var producer *mq.Producer
	if p, err := mq.NewProducer(cfg.Kafka.Brokers); err == nil {
		producer = p
		closers = append(closers, producer)
	} else if !errors.Is(err, mq.ErrNotConfigured) {
		log.WithError(err).Warn("kafka unavailable, domain events disabled")
	}

	deps := handler.Deps{
		Pricing:   service.NewPricingService(&cfg.Business),
		Readiness: cfg.Readiness(),
		Log:       log,
	}

	var tokenCache identity.TokenCache
	if rdb != nil {
		tokenCache = identity.NewRedisTokenCache(rdb)
	}
	if v := identity.NewSupabaseVerifier(&cfg.Identity, tokenCache, log); v != nil {
		deps.Verifier = v
	}

	var generator llm.Generator
	if g, err := llm.New(ctx, &cfg.Generator); err == nil {
		generator = g
		if c, ok := g.(io.Closer); ok {
			closers = append(closers, c)
		}
		log.WithField("provider", g.Name()).Info("generation backend ready")
	} else if !errors.Is(err, llm.ErrNotConfigured) {
		log.WithError(err).Error("generation backend unavailable")
	}

	pools, err := database.Open(&cfg.Database, cfg.Server.Mode == "debug", log)
	switch {
	case err == nil:
		defer pools.Close()
		deps.Storage = pools
	case errors.Is(err, database.ErrNotConfigured):
		log.Warn("database not configured, ledger routes disabled")
	default:
		log.WithError(err).Error("database unavailable, ledger routes disabled")
	}

	var jobs []interface{ Stop() }
	if pools != nil {
		accounts := repository.NewAccountRepository(pools.Writer, pools.Reader)
		ledger := repository.NewTransactionRepository(pools.Writer, pools.Reader)
		websites := repository.NewWebsiteRepository(pools.Writer, pools.Reader)
		settlements := repository.NewSettlementRepository(pools.Writer, accounts)

		// Without a broker nothing would drain the outbox, so events are off.
		var topics service.EventTopics
		if producer != nil {
			topics = service.EventTopics{
				WebsiteGenerated: cfg.Kafka.Topic.WebsiteGenerated,
				Settlement:       cfg.Kafka.Topic.Settlement,
			}
		}

		deps.Accounts = service.NewAccountService(accounts, ledger, &cfg.Business, log)
		deps.Websites = service.NewWebsiteService(websites)
		if generator != nil {
			deps.Generation = service.NewGenerationService(
				accounts, websites, settlements, generator, cfg.Generator.SystemPrompt, topics, log)
		}

		var locker job.Locker
		if rdb != nil {
			host, _ := os.Hostname()
			locker = lock.NewReconcileLock(rdb, fmt.Sprintf("%s:%d", host, os.Getpid()), 2*cfg.Business.ReconcileInterval)
		}
		reconciler := job.NewSettlementReconciler(settlements, locker, topics.Settlement, &cfg.Business, log)
		go reconciler.Start(ctx)
		jobs = append(jobs, reconciler)

		if producer != nil {
			sender := job.NewOutboxSender(repository.NewOutboxRepository(pools.Writer), producer, &cfg.Business, log)
			go sender.Start(ctx)
			jobs = append(jobs, sender)
		}
	}

	router := handler.SetupRouter(handler.NewHandler(deps), &cfg.Server, log)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}

	for _, j := range jobs {
		j.Stop()
	}
	cancel()

	log.Info("server exited")
}
