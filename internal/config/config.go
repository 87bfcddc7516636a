package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	CoreDatabaseURL string // CORE_DATABASE_URL — Postgres DSN for the node model store
	HTTPListenAddr  string // HTTP_LISTEN_ADDR — address the supervisor's /healthz and /metrics endpoints bind to
	LogLevel        string // LOG_LEVEL — zerolog level name (default: info)

	// Observability context
	RegionID    string // REGION_ID
	ClusterID   string // CLUSTER_ID
	ShardName   string // SHARD_NAME
	NodeRole    string // NODE_ROLE
	ServiceName string // SERVICE_NAME — default: fleet-supervisor
	MetricsAddr string // METRICS_ADDR — loaded but not used; /metrics is served on HTTP_LISTEN_ADDR

	// Reconciler tuning.
	VerifyInterval        time.Duration // FLEET_VERIFY_INTERVAL — periodic verify-all period (default: 60s)
	RestartMaxRate        string        // FLEET_RESTART_MAX_RATE — token bucket refill rate, "N/unit" (default: 1/m)
	BrokerRevivedCooldown time.Duration // FLEET_BROKER_REVIVE_COOLDOWN — post-revival restart cooldown (default: 35s)
	QueueCapacity         int           // FLEET_QUEUE_CAPACITY — bound on pending requests (default: 256)

	// Domain stack: gRPC transport to node agents, Postgres LISTEN/NOTIFY.
	GRPCDialTimeout time.Duration // FLEET_GRPC_DIAL_TIMEOUT — passed to broker.NewConnPool, which does not apply it to dials or calls (default: 30s)
	PingMaxAttempts int           // FLEET_PING_MAX_ATTEMPTS — geometric backoff steps after restart (default: 30)
	NotifyChannel   string        // FLEET_NOTIFY_CHANNEL — Postgres NOTIFY channel for node model changes (default: fleet_node_changes)
}

func Load() (*Config, error) {
	cfg := &Config{
		CoreDatabaseURL: getEnv("CORE_DATABASE_URL", ""),
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", ":8090"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		RegionID:    getEnv("REGION_ID", ""),
		ClusterID:   getEnv("CLUSTER_ID", ""),
		ShardName:   getEnv("SHARD_NAME", ""),
		NodeRole:    getEnv("NODE_ROLE", ""),
		ServiceName: getEnv("SERVICE_NAME", "fleet-supervisor"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		VerifyInterval:        getEnvDuration("FLEET_VERIFY_INTERVAL", 60*time.Second),
		RestartMaxRate:        getEnv("FLEET_RESTART_MAX_RATE", "1/m"),
		BrokerRevivedCooldown: getEnvDuration("FLEET_BROKER_REVIVE_COOLDOWN", 35*time.Second),
		QueueCapacity:         getEnvInt("FLEET_QUEUE_CAPACITY", 256),

		GRPCDialTimeout: getEnvDuration("FLEET_GRPC_DIAL_TIMEOUT", 30*time.Second),
		PingMaxAttempts: getEnvInt("FLEET_PING_MAX_ATTEMPTS", 30),
		NotifyChannel:   getEnv("FLEET_NOTIFY_CHANNEL", "fleet_node_changes"),
	}

	return cfg, nil
}

// Validate checks that all required config fields are set for the given binary.
func (c *Config) Validate(binary string) error {
	var missing []string

	switch binary {
	case "fleet-supervisor":
		if c.CoreDatabaseURL == "" {
			missing = append(missing, "CORE_DATABASE_URL")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
