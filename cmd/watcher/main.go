// Command watcher is the long-running momentum daemon: it connects to the
// brokerage gateway, polls streaming scanners, combines and filters the
// results, confirms candidates against news catalysts, and records alerted
// sightings to Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"momentumwatch/internal/catalyst"
	"momentumwatch/internal/combine"
	"momentumwatch/internal/config"
	"momentumwatch/internal/enrich"
	"momentumwatch/internal/gateway"
	"momentumwatch/internal/history"
	"momentumwatch/internal/model"
	"momentumwatch/internal/poller"
	"momentumwatch/internal/scanner"
	"momentumwatch/internal/session"
	"momentumwatch/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/watcher.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("watcher", version.String())
		return
	}

	// .env lets DB credentials stay out of the YAML
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting watcher",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("watcher failed", "error", err)
		os.Exit(1)
	}
	logger.Info("watcher stopped")
}

func run(ctx context.Context, cfg *config.WatcherConfig, logger *slog.Logger) error {
	// History store
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := history.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	store := history.NewStore(pool, logger)
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info("database connected")

	// Gateway connection
	conn := gateway.New(gateway.Config{
		Host:               cfg.Gateway.Host,
		Ports:              cfg.Gateway.Ports,
		ClientID:           cfg.Gateway.ClientID,
		DialTimeout:        cfg.Gateway.DialTimeout,
		HandshakeTimeout:   cfg.Gateway.HandshakeTimeout,
		WriteTimeout:       cfg.Gateway.WriteTimeout,
		ReconnectBaseDelay: cfg.Gateway.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Gateway.ReconnectMaxDelay,
		MaxReconnects:      cfg.Gateway.MaxReconnects,
	}, logger)
	if err := conn.Start(ctx); err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}
	defer conn.Close()
	logger.Info("gateway connected", "port", conn.Stats().Port)

	// Subscription engine
	engine := scanner.NewEngine(scanner.Config{
		FallbackClientID: cfg.Gateway.ClientID,
		MarketDataType:   cfg.Scanner.MarketDataType,
	}, conn, logger)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start scanner engine: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		engine.Stop(stopCtx)
	}()

	settings := session.NewSettings(cfg.Gateway.Host, 0, cfg.Poller.Interval, cfg.Filters)
	filters := settings.Filters()

	params := scanner.SubscriptionParams{
		NumberOfRows: cfg.Scanner.NumberOfRows,
		AboveVolume:  cfg.Scanner.AboveVolume,
	}
	if filters.MinPrice > 0 {
		minPrice := filters.MinPrice
		params.MinPrice = &minPrice
	}
	if filters.MaxPrice > 0 {
		maxPrice := filters.MaxPrice
		params.MaxPrice = &maxPrice
	}

	codes := cfg.Scanner.Scanners
	if len(codes) == 0 {
		for _, as := range model.AlertScanners {
			codes = append(codes, as.Code)
		}
	}
	baseIDs := make([]int, 0, len(codes))
	for _, code := range codes {
		id, err := engine.Subscribe(code, params)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", code, err)
		}
		baseIDs = append(baseIDs, id)
	}
	logger.Info("scanners subscribed", "count", len(baseIDs))

	// Combination + confirmation
	// The combiner reads thresholds through settings each cycle, so a
	// runtime change applies on the next tick.
	seen := session.NewSeenSet()
	combiner := combine.New(settings, logger)

	client := enrich.NewClient(cfg.Enrich.BaseURL,
		enrich.WithTimeout(cfg.Enrich.Timeout),
		enrich.WithRetries(cfg.Enrich.MaxRetries, time.Second),
		enrich.WithRateLimit(cfg.Enrich.RatePerSec, cfg.Enrich.Burst),
		enrich.WithNewsCount(cfg.Enrich.NewsCount),
		enrich.WithLogger(logger),
	)
	pipeline := catalyst.New(catalyst.Config{
		MaxConcurrent: int64(cfg.Catalyst.MaxConcurrent),
		CheckTimeout:  cfg.Catalyst.CheckTimeout,
		MaxRetries:    cfg.Catalyst.MaxRetries,
		RetryBackoff:  cfg.Catalyst.RetryBackoff,
	}, client, nil, &alertNotifier{store: store, logger: logger}, seen, logger)

	// Poll cycle
	tick := func(tickCtx context.Context) {
		rowSets := make([][]model.ScanRow, 0, len(baseIDs))
		for _, id := range baseIDs {
			rowSets = append(rowSets, engine.Rows(id))
		}
		candidates := combiner.Combine(time.Now(), rowSets, seen)
		if len(candidates) == 0 {
			return
		}
		logger.Info("candidates survived filters", "count", len(candidates))

		sightings := make([]model.Sighting, 0, len(candidates))
		for _, cand := range candidates {
			sightings = append(sightings, history.SightingFromCandidate(cand))
		}
		if err := store.RecordBatch(tickCtx, sightings); err != nil {
			logger.Warn("record sightings failed", "error", err)
		}

		pipeline.Submit(tickCtx, candidates)
	}
	p := poller.New(poller.Config{Interval: settings.PollInterval()}, tick, logger)
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	logger.Info("watcher running",
		"session", seen.SessionID().String()[:8],
		"interval", settings.PollInterval(),
		"scanners", len(baseIDs),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		logger.Warn("poller stop timed out", "error", err)
	}
	pipeline.Drain()

	logger.Info("session summary",
		"poll_cycles", p.Stats().Ticks,
		"snapshots", engine.Stats().Snapshots,
		"alerted", seen.Len(),
		"upserts", store.Stats().Upserts,
		"reconnects", conn.Stats().Reconnects,
	)
	return nil
}

// alertNotifier logs the alert and records the sighting.
type alertNotifier struct {
	store  *history.Store
	logger *slog.Logger
}

func (n *alertNotifier) Alert(ctx context.Context, a model.Alert) error {
	n.logger.Info("ALERT",
		"symbol", a.Symbol,
		"catalyst", a.Catalyst,
		"headline", a.Headline,
		"scanners", a.Candidate.Scanners,
		"hits", a.Candidate.Hits(),
	)
	return n.store.Alert(ctx, a)
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, os.Stdout)
	}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return slog.New(slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	}))
}
