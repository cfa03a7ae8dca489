package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/app"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

const (
	envHTTPAddr            = "ORDERDESK_HTTP_ADDR"
	envMetricsAddr         = "ORDERDESK_METRICS_ADDR"
	envStorageDriver       = "ORDERDESK_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERDESK_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERDESK_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envNotifyTopic         = "ORDERDESK_NOTIFY_TOPIC"
	envDLQTopic            = "ORDERDESK_DLQ_TOPIC"
	envOutboxPollInterval  = "ORDERDESK_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "ORDERDESK_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "ORDERDESK_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "ORDERDESK_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending    = "ORDERDESK_OUTBOX_MAX_PENDING"
	envOutboxMaxAge        = "ORDERDESK_OUTBOX_MAX_AGE"
	envOutboxRetention     = "ORDERDESK_OUTBOX_RETENTION"
	envTimezone            = "ORDERDESK_TIMEZONE"
	envLogLevel            = "ORDERDESK_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).Warnf("invalid %s, using info", envLogLevel)
			return
		}
		log.SetLevel(level)
	}
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []error) {
	cfg := app.DefaultConfig()
	var warnings []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envPostgresDSN, &cfg.PostgresDSN)
	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envNotifyTopic, &cfg.NotifyTopic)
	str(envDLQTopic, &cfg.DLQTopic)
	str(envTimezone, &cfg.Timezone)
	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}

	if v, ok := lookup(envPostgresAutoMigrate); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", envPostgresAutoMigrate, err))
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }
	positiveInt := func(v int) bool { return v > 0 }
	nonNegativeInt := func(v int) bool { return v >= 0 }

	durations := []struct {
		key   string
		dst   *time.Duration
		valid func(time.Duration) bool
		rule  string
	}{
		{envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0"},
		{envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0"},
		{envOutboxRetention, &cfg.OutboxRetention, positiveDuration, "must be > 0"},
		{envOutboxMaxAge, &cfg.OutboxMaxAge, nonNegativeDuration, "must be >= 0"},
	}
	for _, d := range durations {
		if v, ok := lookup(d.key); ok {
			parsed, err := parseDuration(v, d.valid, d.rule)
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%s: %w", d.key, err))
				continue
			}
			*d.dst = parsed
		}
	}

	ints := []struct {
		key   string
		dst   *int
		valid func(int) bool
		rule  string
	}{
		{envOutboxBatchSize, &cfg.OutboxBatchSize, positiveInt, "must be > 0"},
		{envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positiveInt, "must be > 0"},
		{envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegativeInt, "must be >= 0"},
	}
	for _, i := range ints {
		if v, ok := lookup(i.key); ok {
			parsed, err := parseInt(v, i.valid, i.rule)
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%s: %w", i.key, err))
				continue
			}
			*i.dst = parsed
		}
	}

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}

// loadDotEnv подхватывает .env, если он есть. Переменные окружения имеют приоритет.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}
}

func main() {
	loadDotEnv()
	setupLogger(os.LookupEnv)

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.WithError(w).Warn("invalid configuration value ignored")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka":          cfg.KafkaBrokers != "",
		"version":        version.GetVersion(),
	}).Info("запускаем order-admin")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("order-admin остановлен")
}
