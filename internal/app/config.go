package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

// Поддерживаемые хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую. Пустое значение отключает публикацию уведомлений.
	KafkaBrokers  string
	KafkaClientID string
	NotifyTopic   string
	DLQTopic      string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending и OutboxMaxAge — пороги деградации в /healthz; 0 отключает порог.
	OutboxMaxPending int
	OutboxMaxAge     time.Duration

	// OutboxRetention — сколько хранить обработанные сообщения outbox до очистки.
	OutboxRetention time.Duration

	// Timezone — IANA-имя зоны для окон статистики и дат выгрузки. Пусто — локальная зона.
	Timezone        string
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		KafkaClientID:       "orderdesk",
		NotifyTopic:         kafka.TopicNotifications,
		DLQTopic:            kafka.TopicDeadLetterQueue,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OutboxMaxPending:    1000,
		OutboxMaxAge:        10 * time.Minute,
		OutboxRetention:     72 * time.Hour,
		ShutdownTimeout:     5 * time.Second,
	}
}

// Brokers разбирает KafkaBrokers, пропуская пустые элементы.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// Location загружает часовой пояс приложения.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func (c Config) storageDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if driver == "" {
		return StorageDriverMemory
	}
	return driver
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout
}
