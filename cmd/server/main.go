package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"dispatchctl/internal/api"
	natsbroker "dispatchctl/internal/broker/nats"
	"dispatchctl/internal/config"
	"dispatchctl/internal/delivery"
	"dispatchctl/internal/dispatch"
	"dispatchctl/internal/events"
	"dispatchctl/internal/logging"
	"dispatchctl/internal/notify"
	"dispatchctl/internal/registry"
	"dispatchctl/internal/retry"
	"dispatchctl/internal/store"
	"dispatchctl/internal/store/memory"
	"dispatchctl/internal/store/postgres"
	"dispatchctl/internal/worker"
)

func main() {
	configPath := flag.String("config", "dispatchd.yaml", "path to server config file")
	migrate := flag.Bool("migrate", false, "run schema migrations and exit")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logging.Init(cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		subscribers   store.SubscriberStore
		attempts      store.DeliveryAttemptStore
		notifications store.NotificationStore
		channels      store.ChannelConfigStore
	)

	if cfg.PostgresURL != "" {
		db, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			slog.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if *migrate {
			if err := db.Migrate(ctx); err != nil {
				slog.Error("migrate", slog.Any("error", err))
				os.Exit(1)
			}
			slog.Info("migrations applied")
			return
		}

		subscribers = postgres.NewSubscriberStore(db)
		attempts = postgres.NewDeliveryAttemptStore(db)
		notifications = postgres.NewNotificationStore(db)
		channels = postgres.NewChannelConfigStore(db)
	} else {
		slog.Warn("no postgres_url configured, using in-memory stores")
		subscribers = memory.NewSubscriberStore()
		attempts = memory.NewDeliveryAttemptStore()
		notifications = memory.NewNotificationStore()
		channels = memory.NewChannelConfigStore()
	}

	hub := events.NewHub()
	reg := registry.New(subscribers)
	executor := delivery.NewExecutor(cfg.DeliveryTimeout, attempts, hub)

	scheduler := retry.NewScheduler(retry.Config{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		JitterFactor:      cfg.Retry.JitterFactor,
	})

	notifier := notify.NewNotifier(
		notify.NewInAppSink(notifications),
		notify.NewPushSink(channels, cfg.DeliveryTimeout),
		notify.NewSlackSink(channels, cfg.DeliveryTimeout),
	)

	var dispatcher *dispatch.Dispatcher
	if cfg.NATSURL != "" {
		publisher, err := natsbroker.New(ctx, cfg.NATSURL)
		if err != nil {
			slog.Error("connect NATS", slog.Any("error", err))
			os.Exit(1)
		}
		defer publisher.Close()

		dispatcher = dispatch.New(reg, executor, scheduler, attempts, notifier, publisher)

		scheduler.WithStore(attempts).WithPublisher(publisher)
		go scheduler.Start(ctx)

		consumer, err := publisher.Consumer(ctx)
		if err != nil {
			slog.Error("create consumer", slog.Any("error", err))
			os.Exit(1)
		}
		retryWorker := worker.NewRetryWorker(subscribers, attempts, executor, consumer, publisher, scheduler)
		go func() {
			if err := retryWorker.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("retry worker stopped", slog.Any("error", err))
			}
		}()
	} else {
		slog.Warn("no nats_url configured, retries will not be re-attempted")
		dispatcher = dispatch.New(reg, executor, scheduler, attempts, notifier, nil)
	}

	server := api.NewServer(dispatcher, reg, attempts, hub)
	slog.Info("dispatchd listening", slog.String("addr", cfg.ListenAddr))
	if err := api.ListenAndServe(ctx, cfg.ListenAddr, server.Handler()); err != nil && ctx.Err() == nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
