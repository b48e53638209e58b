// Package config loads service configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "pixcore/pkg/platform/strings"
)

// Config is the full service configuration.
type Config struct {
	// Addr is the ops HTTP listen address (health, metrics).
	Addr string

	PostgresDSN string
	Redis       Redis
	Kafka       Kafka

	RegistryBaseURL string
	RegistryAPIKey  string
	GatewayTimeout  time.Duration

	Sweep Sweep
}

// Redis configures the distributed per-entity lease. An empty URL selects
// the in-process locker, which is only safe single-instance.
type Redis struct {
	URL string
}

// Kafka configures the command consumer and the event/dead-letter producer.
type Kafka struct {
	Brokers         []string
	Group           string
	CommandTopics   []string
	EventTopic      string
	DeadLetterTopic string
}

// Sweep configures the expiration sweeper.
type Sweep struct {
	Interval          time.Duration
	PendingKeyTTL     time.Duration
	OwnershipWindow   time.Duration
	PortabilityWindow time.Duration
	InboundWindow     time.Duration
	RefundOpenTTL     time.Duration
	Concurrency       int
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr:        envString("PIXCORE_ADDR", ":8080"),
		PostgresDSN: envString("PIXCORE_POSTGRES_DSN", ""),
		Redis: Redis{
			URL: envString("PIXCORE_REDIS_URL", ""),
		},
		Kafka: Kafka{
			Brokers:         splitNonEmpty(envString("PIXCORE_KAFKA_BROKERS", "localhost:9092")),
			Group:           envString("PIXCORE_KAFKA_GROUP", "pixcore"),
			CommandTopics:   splitNonEmpty(envString("PIXCORE_KAFKA_COMMAND_TOPICS", "pixcore.commands")),
			EventTopic:      envString("PIXCORE_KAFKA_EVENT_TOPIC", "pixcore.events"),
			DeadLetterTopic: envString("PIXCORE_KAFKA_DLQ_TOPIC", "pixcore.commands.dlq"),
		},
		RegistryBaseURL: envString("PIXCORE_REGISTRY_URL", "http://localhost:9090"),
		RegistryAPIKey:  envString("PIXCORE_REGISTRY_API_KEY", ""),
		GatewayTimeout:  envDuration("PIXCORE_GATEWAY_TIMEOUT", 10*time.Second),
		Sweep: Sweep{
			Interval:          envDuration("PIXCORE_SWEEP_INTERVAL", time.Minute),
			PendingKeyTTL:     envDuration("PIXCORE_PENDING_KEY_TTL", 30*time.Minute),
			OwnershipWindow:   envDuration("PIXCORE_OWNERSHIP_WINDOW", 30*24*time.Hour),
			PortabilityWindow: envDuration("PIXCORE_PORTABILITY_WINDOW", 7*24*time.Hour),
			InboundWindow:     envDuration("PIXCORE_INBOUND_WINDOW", 7*24*time.Hour),
			RefundOpenTTL:     envDuration("PIXCORE_REFUND_OPEN_TTL", 7*24*time.Hour),
			Concurrency:       envInt("PIXCORE_SWEEP_CONCURRENCY", 8),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// splitNonEmpty parses a comma-separated list, dropping blanks and
// duplicates. A duplicated broker or topic would otherwise double-subscribe.
func splitNonEmpty(csv string) []string {
	return pstrings.DedupeAndTrim(strings.Split(csv, ","))
}
