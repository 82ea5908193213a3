package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	apihttp "torrentsession/internal/api/http"
	"torrentsession/internal/app"
	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/metrics"
	"torrentsession/internal/registry"
	mongorepo "torrentsession/internal/repository/mongo"
	"torrentsession/internal/services/torrent/engine/anacrolix"
	"torrentsession/internal/telemetry"
	"torrentsession/internal/usecase"
)

const serviceName = "torrent-session"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv(serviceName))
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("dataDir", cfg.TorrentDataDir),
		slog.Int("listenPort", cfg.TorrentListenPort),
		slog.Duration("alertInterval", cfg.AlertInterval),
		slog.Bool("journal", cfg.JournalEnabled()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mongoClient *mongo.Client
		journal     ports.Journal
		history     apihttp.HistoryStore
	)
	if cfg.JournalEnabled() {
		mongoClient, journal, history = openJournal(rootCtx, cfg, logger)
	}

	rawEngine, err := anacrolix.New(anacrolix.Config{
		DataDir:       cfg.TorrentDataDir,
		ListenPort:    cfg.TorrentListenPort,
		AlertInterval: cfg.AlertInterval,
		Logger:        logger.With(slog.String("component", "engine")),
	})
	if err != nil {
		logger.Error("engine init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	engine := telemetry.TraceEngine(rawEngine)

	reg := registry.New()
	ucLogger := logger.With(slog.String("component", "usecase"))

	addUC := usecase.AddTransfer{Engine: engine, Registry: reg, Journal: journal, Logger: ucLogger}
	pauseUC := usecase.PauseTransfer{Engine: engine, Registry: reg, Journal: journal, Logger: ucLogger}
	resumeUC := usecase.ResumeTransfer{Engine: engine, Registry: reg, Journal: journal, Logger: ucLogger}
	removeUC := usecase.RemoveTransfer{Engine: engine, Registry: reg, Journal: journal, Logger: ucLogger}
	getUC := usecase.GetTransfer{Registry: reg}
	listUC := usecase.ListTransfers{Registry: reg}

	consumer := usecase.AlertConsumer{
		Alerts:   rawEngine.Alerts(),
		Registry: reg,
		Logger:   logger.With(slog.String("component", "alerts")),
	}
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(rootCtx)
	}()

	opts := []apihttp.ServerOption{
		apihttp.WithPauseTransfer(pauseUC),
		apihttp.WithResumeTransfer(resumeUC),
		apihttp.WithRemoveTransfer(removeUC),
		apihttp.WithGetTransfer(getUC),
		apihttp.WithListTransfers(listUC),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(float64(cfg.RateLimitRPS), cfg.RateLimitBurst),
		apihttp.WithRequestTimeout(cfg.RequestTimeout),
		apihttp.WithLogger(logger.With(slog.String("component", "http"))),
	}
	if history != nil {
		opts = append(opts, apihttp.WithHistory(history))
	}
	handler := apihttp.NewServer(addUC, opts...)

	go updateTransferMetrics(rootCtx, listUC, handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	exitCode := 0
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	handler.Close()
	if err := rawEngine.Close(); err != nil {
		logger.Warn("engine close error", slog.String("error", err.Error()))
	}
	<-consumerDone
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// openJournal connects the lifecycle journal. Failures are logged and leave
// the service running without one.
func openJournal(ctx context.Context, cfg app.Config, logger *slog.Logger) (*mongo.Client, ports.Journal, apihttp.HistoryStore) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Warn("mongo connect failed, journal disabled", slog.String("error", err.Error()))
		return nil, nil, nil
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		logger.Warn("mongo ping failed, journal disabled", slog.String("error", err.Error()))
		_ = client.Disconnect(context.Background())
		return nil, nil, nil
	}

	repo := mongorepo.NewJournalRepository(client, cfg.MongoDatabase, cfg.MongoJournalCollection)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}
	logger.Info("journal enabled",
		slog.String("database", cfg.MongoDatabase),
		slog.String("collection", cfg.MongoJournalCollection),
	)
	return client, repo, repo
}

func updateTransferMetrics(ctx context.Context, list usecase.ListTransfers, handler *apihttp.Server) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observeTransfers(list.Execute(ctx))
			handler.BroadcastTransfers(ctx)
		}
	}
}

func observeTransfers(items []domain.TransferInfo) {
	byStatus := map[domain.TransferStatus]int{
		domain.TransferDownloading: 0,
		domain.TransferPaused:      0,
		domain.TransferSeeding:     0,
	}
	var dlTotal, ulTotal, peersTotal int64
	for _, item := range items {
		byStatus[item.Status]++
		dlTotal += item.DownloadSpeed
		ulTotal += item.UploadSpeed
		peersTotal += int64(item.Peers)
	}
	metrics.TransfersTracked.Set(float64(len(items)))
	for status, n := range byStatus {
		metrics.TransfersByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
	metrics.DownloadSpeedBytes.Set(float64(dlTotal))
	metrics.UploadSpeedBytes.Set(float64(ulTotal))
	metrics.PeersConnected.Set(float64(peersTotal))
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	handlerOpts := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
