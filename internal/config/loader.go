package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.run_migrations", true)

	v.SetDefault("broker.kafka.group_id", "notification-service")
	v.SetDefault("broker.kafka.events_topic", "notification_events")
	v.SetDefault("broker.kafka.rule_events_topic", "notification_rule_events")
	v.SetDefault("broker.kafka.dlq_topic", "notification_events_dlq")
	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", time.Second)
	v.SetDefault("broker.kafka.retry.max_interval", 30*time.Second)
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("gateway.timeout", 5*time.Second)
	v.SetDefault("gateway.info_cache_ttl_seconds", 300)

	v.SetDefault("history.backend", HistoryBackendPostgres)

	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", 60*time.Second)
	v.SetDefault("circuit_breaker.timeout", 60*time.Second)
	v.SetDefault("circuit_breaker.failure_ratio", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 3)
}

func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("broker.type", "BROKER_TYPE")
	_ = v.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	_ = v.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	_ = v.BindEnv("broker.kafka.events_topic", "BROKER_KAFKA_EVENTS_TOPIC")
	_ = v.BindEnv("broker.kafka.rule_events_topic", "BROKER_KAFKA_RULE_EVENTS_TOPIC")
	_ = v.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	_ = v.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	_ = v.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	_ = v.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	_ = v.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	_ = v.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	_ = v.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	_ = v.BindEnv("logging.level", "LOGGING_LEVEL")
	_ = v.BindEnv("logging.format", "LOGGING_FORMAT")

	_ = v.BindEnv("history.backend", "HISTORY_BACKEND")
	_ = v.BindEnv("gateway.timeout", "GATEWAY_TIMEOUT")

	_ = v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	_ = v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	_ = v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	_ = v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

// applyEnvOverrides handles values viper cannot decode from a flat env string.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}
}
