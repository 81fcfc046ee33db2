// cmd/bot runs the live trading loop: poll candles, annotate
// indicators, scan for breakout signals, size orders and dispatch them
// to the venue, with break-even stop management between entries.
//
// PAPER_MODE=true runs against the built-in simulated venue and needs
// no bridge credentials.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"breakout-botv1/config"
	"breakout-botv1/internal/engine"
	"breakout-botv1/internal/indicator"
	"breakout-botv1/internal/lifecycle"
	"breakout-botv1/internal/logger"
	"breakout-botv1/internal/metrics"
	"breakout-botv1/internal/model"
	"breakout-botv1/internal/notification"
	"breakout-botv1/internal/risk"
	"breakout-botv1/internal/scheduler"
	redisstore "breakout-botv1/internal/store/redis"
	"breakout-botv1/internal/strategy"
	"breakout-botv1/internal/venue"
	"breakout-botv1/pkg/mtbridge"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[bot] starting...")

	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[bot] no symbols configured")
	}

	slogger := logger.Init("bot", logger.ParseLevel(cfg.LogLevel))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSymbols(symbols)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Venue adapters ----
	var (
		market  model.MarketData
		gateway model.OrderGateway
		account model.AccountData
		closes  model.PositionEvents
		quote   func(string) (float64, bool)
	)
	if cfg.PaperMode {
		log.Println("[bot] PAPER MODE: simulated venue, no bridge credentials required")
		paper := venue.NewPaperVenue(venue.PaperConfig{
			Symbols:        symbols,
			StartEquity:    10000,
			SlippagePoints: 2,
		})
		market, gateway, account, closes = paper, paper, paper, paper
		health.SetVenueConnected(true)
	} else {
		bridge := mtbridge.NewClient(mtbridge.Config{
			BaseURL:    cfg.BridgeURL,
			Login:      cfg.BridgeLogin,
			APIKey:     cfg.BridgeAPIKey,
			TOTPSecret: cfg.BridgeTOTPSecret,
			Magic:      cfg.Magic,
		})
		market, gateway, account, closes = bridge, bridge, bridge, bridge

		if err := bridge.Ping(ctx); err != nil {
			log.Printf("[bot] WARNING: bridge unreachable: %v (will keep retrying)", err)
			health.SetVenueConnected(false)
		} else {
			health.SetVenueConnected(true)
		}

		// Live quote stream for break-even checks between bars.
		stream := mtbridge.NewStream(cfg.BridgeWSURL, symbols)
		go stream.Run(ctx)
		quote = stream.LatestQuote

		// Periodic liveness probe.
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					health.SetVenueConnected(bridge.Ping(ctx) == nil)
				}
			}
		}()
	}

	// ---- Trade journal ----
	os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755)
	journal, err := venue.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("[bot] journal init failed: %v", err)
	}
	defer journal.Close()
	health.SetJournalOK(true)

	// ---- Decision event sinks ----
	sinks := engine.MultiSink{
		engine.LogSink{Logger: slogger},
		metrics.DecisionSink{M: prom},
	}
	if cfg.RedisAddr != "" {
		pub, err := redisstore.NewPublisher(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[bot] WARNING: redis init failed: %v (continuing without redis)", err)
			health.SetRedisConnected(false)
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
			health.SetRedisConnected(true)
		}
	}

	// ---- Notifications ----
	notifiers := notification.MultiNotifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[bot] telegram notifications enabled")
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[bot] webhook notifications enabled")
	}

	// ---- Decision engine ----
	policy := lifecycle.NewPolicy(cfg.MaxTradesPerPair, cfg.BreakEvenRR)
	eng := engine.New(
		indicator.NewPipeline(indicator.Config{
			RSIPeriod:  cfg.RSIPeriod,
			MACDFast:   cfg.MACDFast,
			MACDSlow:   cfg.MACDSlow,
			MACDSignal: cfg.MACDSignal,
			ATRPeriod:  cfg.ATRPeriod,
			ORBWindow:  cfg.ORBWindow,
		}),
		strategy.NewGenerator(),
		risk.NewSizer(cfg.AccountRisk, cfg.LotSize, cfg.Magic),
		policy,
		sinks,
	)

	sched, err := scheduler.New(scheduler.Config{
		Symbols:        symbols,
		Timeframe:      cfg.Timeframe,
		BarsPerRefresh: cfg.BarsPerRefresh,
		Interval:       cfg.PollInterval,
	}, scheduler.Deps{
		Market:   market,
		Gateway:  gateway,
		Account:  account,
		Closes:   closes,
		Engine:   eng,
		Policy:   policy,
		Recorder: journal,
		Notifier: notifiers,
		Metrics:  prom,
		Health:   health,
		Quote:    quote,
	})
	if err != nil {
		log.Fatalf("[bot] scheduler init failed: %v", err)
	}

	go sched.Run(ctx)

	log.Printf("[bot] running: symbols=%v tf=%s interval=%s risk=%.2f%% maxtrades=%d",
		symbols, cfg.Timeframe, cfg.PollInterval, cfg.AccountRisk*100, cfg.MaxTradesPerPair)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[bot] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Println("[bot] shutdown complete.")
}
