package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"futures-botv1/config"
	"futures-botv1/internal/bot"
	"futures-botv1/internal/broker"
	"futures-botv1/internal/execution"
	"futures-botv1/internal/feed"
	"futures-botv1/internal/metrics"
	"futures-botv1/internal/notification"
	redisstore "futures-botv1/internal/store/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[futuresbot] starting...")

	// ---- Load and validate config ----
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[futuresbot] config: %v", err)
	}
	if cfg.PaperMode {
		log.Println("[futuresbot] *** PAPER MODE: simulated feed and fills, no broker connection ***")
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Notifications ----
	var backends []notification.Notifier
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TGBotToken != "" && cfg.TGChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TGBotToken, cfg.TGChatID))
	}
	notifier := notification.NewMulti(backends...)

	// ---- Trade journal (optional) ----
	var journal *execution.Journal
	if cfg.JournalPath != "" {
		os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755)
		j, err := execution.NewJournal(cfg.JournalPath)
		if err != nil {
			log.Printf("[futuresbot] WARNING: journal init failed: %v (continuing without journal)", err)
		} else {
			journal = j
			health.SetJournalOK(true)
			defer journal.Close()
		}
	}

	// ---- Redis event publisher (optional) ----
	var publisher *redisstore.Publisher
	if cfg.RedisAddr != "" {
		p, err := redisstore.NewPublisher(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
		})
		if err != nil {
			log.Printf("[futuresbot] WARNING: redis unavailable: %v (continuing without publishing)", err)
		} else {
			publisher = p
			defer publisher.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Collaborators: simulated in paper mode, broker otherwise ----
	deps := bot.Deps{
		Journal:   journal,
		Publisher: publisher,
		Notifier:  notifier,
		Metrics:   prom,
		Health:    health,
	}
	if cfg.PaperMode {
		sim := feed.NewSim(500000, time.Now().UnixNano())
		paper := execution.NewPaperGateway(5, 100*time.Millisecond)
		deps.History = sim
		deps.Stream = sim
		deps.Gateway = paper
		deps.Paper = paper
	} else {
		client := broker.NewClient(broker.Config{
			Host:       cfg.Host,
			Port:       cfg.Port,
			ClientID:   cfg.ClientID,
			APIKey:     cfg.APIKey,
			ClientCode: cfg.ClientCode,
			Password:   cfg.Password,
			TOTPSecret: cfg.TOTPSecret,
		})
		if err := client.Connect(ctx); err != nil {
			log.Fatalf("[futuresbot] %v", err)
		}
		defer client.Disconnect(context.Background())

		deps.History = client
		deps.Gateway = client
		deps.Stream = broker.NewStream(broker.StreamConfig{
			Host:      cfg.Host,
			Port:      cfg.Port,
			FeedToken: client.FeedToken(),
			OnConnect: func() { health.SetStreamConnected(true) },
		})
	}

	svc, err := bot.New(cfg, deps)
	if err != nil {
		log.Fatalf("[futuresbot] %v", err)
	}

	// ---- Signal handling ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[futuresbot] received %v, shutting down...", sig)
		cancel()
	}()

	runErr := svc.Run(ctx)

	// ---- Graceful shutdown ----
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	metricsSrv.Stop(shutCtx)

	if runErr != nil {
		notifier.Send(shutCtx, notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "Bot stopped",
			Message: runErr.Error(),
		})
		log.Fatalf("[futuresbot] %v", runErr)
	}
	log.Println("[futuresbot] stopped cleanly")
}
