// Command server starts the media ingest and delivery HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/api"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/encoder"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/observability/logging"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/observability/metrics"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/preview"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/progress"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/registry"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/server"
	"github.com/LautaroPairuna/micaela-martinez-sub000/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	storageRoot := flag.String("storage-root", "", "root directory for stored media")
	tempDir := flag.String("temp-dir", "", "staging directory for uploads in flight")
	publicBase := flag.String("public-base-url", "", "public base URL prefix for stored media")
	transcodeMode := flag.String("transcode-mode", "", "video transcode mode (auto or off)")
	minTranscodeBytes := flag.Int64("min-transcode-bytes", 0, "size threshold for video transcoding")
	maxEncodes := flag.Int64("max-concurrent-encodes", 0, "maximum simultaneous ffmpeg processes")
	encoderThreads := flag.Int("encoder-threads", 0, "threads per ffmpeg process (0 = auto)")
	ffmpegBinary := flag.String("ffmpeg", "", "path to the ffmpeg binary")
	ffprobeBinary := flag.String("ffprobe", "", "path to the ffprobe binary")
	disableEncoder := flag.Bool("disable-encoder", false, "store every video as uploaded")
	disablePreviews := flag.Bool("disable-previews", false, "skip scrub preview generation")
	sweepInterval := flag.Duration("sweep-interval", 0, "interval between temp dir sweeps")
	sweepRetention := flag.Duration("sweep-retention", 0, "age before a temp entry is reclaimed")
	registryDriver := flag.String("registry-driver", "", "artifact registry driver (json or postgres)")
	registryPath := flag.String("registry-path", "", "path to the JSON artifact catalogue")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string for the artifact registry")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresConnectTimeout := flag.Duration("postgres-connect-timeout", 0, "timeout when opening Postgres connections")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	progressDriver := flag.String("progress-driver", "", "progress queue driver (memory or redis)")
	progressRedisAddr := flag.String("progress-redis-addr", "", "Redis address for progress event transport")
	progressRedisAddrs := flag.String("progress-redis-addrs", "", "comma separated Redis addresses for progress events")
	progressRedisUsername := flag.String("progress-redis-username", "", "Redis username for progress events")
	progressRedisPassword := flag.String("progress-redis-password", "", "Redis password for progress events")
	progressRedisStream := flag.String("progress-redis-stream", "", "Redis stream key for progress events")
	progressRedisMasterName := flag.String("progress-redis-sentinel-master", "", "Redis sentinel master name for progress events")
	progressRedisPoolSize := flag.Int("progress-redis-pool-size", 0, "maximum Redis connections for progress events")
	progressRedisTLSCA := flag.String("progress-redis-tls-ca", "", "path to Redis TLS CA certificate for progress events")
	progressRedisTLSCert := flag.String("progress-redis-tls-cert", "", "path to Redis TLS client certificate for progress events")
	progressRedisTLSKey := flag.String("progress-redis-tls-key", "", "path to Redis TLS client key for progress events")
	progressRedisTLSServerName := flag.String("progress-redis-tls-server-name", "", "override Redis TLS server name for progress events")
	progressRedisTLSSkipVerify := flag.Bool("progress-redis-tls-skip-verify", false, "skip Redis TLS verification for progress events")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	uploadLimit := flag.Int("rate-upload-limit", 0, "maximum uploads per window for a single IP")
	uploadWindow := flag.Duration("rate-upload-window", 0, "window for counting uploads")
	rateRedisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed upload throttling")
	rateRedisPassword := flag.String("rate-redis-password", "", "Redis password for distributed upload throttling")
	rateRedisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis rate limit operations")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed to call the API")
	flag.Parse()

	logger := logging.New(logging.Config{Level: firstNonEmpty(*logLevel, os.Getenv("MICAELA_MEDIA_LOG_LEVEL"))})
	recorder := metrics.Default()

	listenAddr := firstNonEmpty(*addr, os.Getenv("MICAELA_MEDIA_ADDR"), ":8080")
	root := firstNonEmpty(*storageRoot, os.Getenv("MICAELA_MEDIA_STORAGE_ROOT"), "data/media")
	staging := firstNonEmpty(*tempDir, os.Getenv("MICAELA_MEDIA_TEMP_DIR"), "data/tmp")

	mode, err := storage.ParseTranscodeMode(firstNonEmpty(*transcodeMode, os.Getenv("MICAELA_MEDIA_TRANSCODE_MODE")))
	if err != nil {
		logger.Error("invalid transcode mode", "error", err)
		os.Exit(1)
	}

	storeCfg := storage.Config{
		Root:                 root,
		TempDir:              staging,
		PublicBaseURL:        firstNonEmpty(*publicBase, os.Getenv("MICAELA_MEDIA_PUBLIC_BASE_URL"), "/media"),
		TranscodeMode:        mode,
		MinTranscodeBytes:    resolveInt64(*minTranscodeBytes, "MICAELA_MEDIA_MIN_TRANSCODE_BYTES"),
		MaxConcurrentEncodes: resolveInt64(*maxEncodes, "MICAELA_MEDIA_MAX_CONCURRENT_ENCODES"),
	}

	ffmpeg := firstNonEmpty(*ffmpegBinary, os.Getenv("MICAELA_MEDIA_FFMPEG"), "ffmpeg")
	ffprobe := firstNonEmpty(*ffprobeBinary, os.Getenv("MICAELA_MEDIA_FFPROBE"), "ffprobe")
	prober := encoder.NewProber(ffprobe)

	queue, err := configureProgressQueue(*progressDriver, progress.RedisQueueConfig{
		Addr:       firstNonEmpty(*progressRedisAddr, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_ADDR")),
		Addrs:      splitAndTrim(firstNonEmpty(*progressRedisAddrs, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_ADDRS"))),
		Username:   firstNonEmpty(*progressRedisUsername, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_USERNAME")),
		Password:   firstNonEmpty(*progressRedisPassword, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_PASSWORD")),
		Stream:     firstNonEmpty(*progressRedisStream, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_STREAM")),
		MasterName: firstNonEmpty(*progressRedisMasterName, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_SENTINEL_MASTER")),
		PoolSize:   resolveInt(*progressRedisPoolSize, "MICAELA_MEDIA_PROGRESS_REDIS_POOL_SIZE"),
		TLS: progress.RedisTLSConfig{
			CAFile:             firstNonEmpty(*progressRedisTLSCA, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_TLS_CA")),
			CertFile:           firstNonEmpty(*progressRedisTLSCert, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_TLS_CERT")),
			KeyFile:            firstNonEmpty(*progressRedisTLSKey, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_TLS_KEY")),
			ServerName:         firstNonEmpty(*progressRedisTLSServerName, os.Getenv("MICAELA_MEDIA_PROGRESS_REDIS_TLS_SERVER_NAME")),
			InsecureSkipVerify: resolveBool(*progressRedisTLSSkipVerify, "MICAELA_MEDIA_PROGRESS_REDIS_TLS_SKIP_VERIFY"),
		},
	}, logger)
	if err != nil {
		logger.Error("failed to configure progress queue", "error", err)
		os.Exit(1)
	}
	hub := progress.NewHub(queue, logging.WithComponent(logger, "progress"))

	repo, err := configureRegistry(registryConfig{
		Driver:          firstNonEmpty(*registryDriver, os.Getenv("MICAELA_MEDIA_REGISTRY_DRIVER")),
		JSONPath:        firstNonEmpty(*registryPath, os.Getenv("MICAELA_MEDIA_REGISTRY_PATH"), "data/catalogue.json"),
		DSN:             resolvePostgresDSN(*postgresDSN),
		MaxConns:        int32(resolveInt(*postgresMaxConns, "MICAELA_MEDIA_POSTGRES_MAX_CONNS")),
		MinConns:        int32(resolveInt(*postgresMinConns, "MICAELA_MEDIA_POSTGRES_MIN_CONNS")),
		MaxConnLifetime: resolveDuration(*postgresMaxConnLifetime, "MICAELA_MEDIA_POSTGRES_MAX_CONN_LIFETIME", 0),
		MaxConnIdle:     resolveDuration(*postgresMaxConnIdle, "MICAELA_MEDIA_POSTGRES_MAX_CONN_IDLE", 0),
		HealthInterval:  resolveDuration(*postgresHealthInterval, "MICAELA_MEDIA_POSTGRES_HEALTH_INTERVAL", 0),
		ConnectTimeout:  resolveDuration(*postgresConnectTimeout, "MICAELA_MEDIA_POSTGRES_CONNECT_TIMEOUT", 0),
		AppName:         firstNonEmpty(*postgresAppName, os.Getenv("MICAELA_MEDIA_POSTGRES_APP_NAME")),
	})
	if err != nil {
		logger.Error("failed to open artifact registry", "error", err)
		os.Exit(1)
	}

	storeOpts := []storage.Option{
		storage.WithRegistry(repo),
		storage.WithProgressHub(hub),
		storage.WithLogger(logging.WithComponent(logger, "storage")),
	}
	if !resolveBool(*disableEncoder, "MICAELA_MEDIA_DISABLE_ENCODER") {
		runner := encoder.NewRunner(ffmpeg, prober, logging.WithComponent(logger, "encoder"))
		storeOpts = append(storeOpts, storage.WithEncoder(runner))
		profile := encoder.DefaultProfile()
		profile.Threads = resolveInt(*encoderThreads, "MICAELA_MEDIA_ENCODER_THREADS")
		storeOpts = append(storeOpts, storage.WithEncodeProfile(profile))
	}
	if !resolveBool(*disablePreviews, "MICAELA_MEDIA_DISABLE_PREVIEWS") {
		generator := preview.NewGenerator(ffmpeg, prober, logging.WithComponent(logger, "preview"))
		storeOpts = append(storeOpts, storage.WithPreviewGenerator(generator))
	}

	store, err := storage.New(storeCfg, storeOpts...)
	if err != nil {
		logger.Error("failed to initialise storage", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, repo, hub, logging.WithComponent(logger, "api"))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	sweeper := storage.NewSweeper(
		staging,
		resolveDuration(*sweepRetention, "MICAELA_MEDIA_SWEEP_RETENTION", storage.DefaultRetention),
		logging.WithComponent(logger, "sweeper"),
	)
	cleanupStop := startCleanupWorker(
		workerCtx,
		logging.WithComponent(logger, "cleanup-worker"),
		sweeper,
		resolveDuration(*sweepInterval, "MICAELA_MEDIA_SWEEP_INTERVAL", storage.DefaultSweepInterval),
	)
	defer cleanupStop()

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("MICAELA_MEDIA_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("MICAELA_MEDIA_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     resolveFloat(*globalRPS, "MICAELA_MEDIA_RATE_GLOBAL_RPS"),
			GlobalBurst:   resolveInt(*globalBurst, "MICAELA_MEDIA_RATE_GLOBAL_BURST"),
			UploadLimit:   resolveInt(*uploadLimit, "MICAELA_MEDIA_RATE_UPLOAD_LIMIT"),
			UploadWindow:  resolveDuration(*uploadWindow, "MICAELA_MEDIA_RATE_UPLOAD_WINDOW", time.Minute),
			RedisAddr:     firstNonEmpty(*rateRedisAddr, os.Getenv("MICAELA_MEDIA_RATE_REDIS_ADDR")),
			RedisPassword: firstNonEmpty(*rateRedisPassword, os.Getenv("MICAELA_MEDIA_RATE_REDIS_PASSWORD")),
			RedisTimeout:  resolveDuration(*rateRedisTimeout, "MICAELA_MEDIA_RATE_REDIS_TIMEOUT", 2*time.Second),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("MICAELA_MEDIA_CORS_ORIGINS"))),
		},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("media service listening", "addr", listenAddr, "storage_root", root)
		logger.Info("metrics endpoint available", "path", "/metrics")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	workerCancel()
	cleanupStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	if err := repo.Close(ctx); err != nil {
		logger.Warn("failed to close artifact registry", "error", err)
	}
	if closer, ok := queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close progress queue", "error", err)
		}
	}

	logger.Info("server stopped")
}

type registryConfig struct {
	Driver          string
	JSONPath        string
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdle     time.Duration
	HealthInterval  time.Duration
	ConnectTimeout  time.Duration
	AppName         string
}

func configureRegistry(cfg registryConfig) (registry.Repository, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		if cfg.DSN != "" {
			driver = "postgres"
		} else {
			driver = "json"
		}
	}
	switch driver {
	case "json":
		return registry.NewJSONRepository(cfg.JSONPath)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres registry selected without DSN")
		}
		return registry.NewPostgresRepository(context.Background(), registry.PostgresConfig{
			DSN:                 cfg.DSN,
			MaxConnections:      cfg.MaxConns,
			MinConnections:      cfg.MinConns,
			MaxConnLifetime:     cfg.MaxConnLifetime,
			MaxConnIdleTime:     cfg.MaxConnIdle,
			HealthCheckInterval: cfg.HealthInterval,
			ConnectTimeout:      cfg.ConnectTimeout,
			ApplicationName:     cfg.AppName,
		})
	default:
		return nil, fmt.Errorf("unsupported registry driver %q", driver)
	}
}

func configureProgressQueue(driver string, cfg progress.RedisQueueConfig, logger *slog.Logger) (progress.Queue, error) {
	driver = strings.ToLower(strings.TrimSpace(firstNonEmpty(driver, os.Getenv("MICAELA_MEDIA_PROGRESS_DRIVER"))))
	switch driver {
	case "redis":
		if len(cfg.Addrs) == 0 && strings.TrimSpace(cfg.Addr) == "" {
			return nil, fmt.Errorf("redis addr is required for progress queue")
		}
		cfg.Logger = logging.WithComponent(logger, "progress-queue")
		return progress.NewRedisQueue(cfg)
	case "", "memory":
		return progress.NewMemoryQueue(128), nil
	default:
		return nil, fmt.Errorf("unsupported progress queue driver %q", driver)
	}
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("MICAELA_MEDIA_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt64(flagValue int64, envKey string) int64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseInt(strings.TrimSpace(env), 10, 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
