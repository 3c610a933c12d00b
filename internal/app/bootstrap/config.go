package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the investment engine.
type Config struct {
	ServiceID string
	LogLevel  slog.Level

	HTTPPort int
	GRPCPort int

	DatabaseURL        string
	MaxDBConns         int32
	AllowInMemoryStore bool
	RedisURL           string

	KafkaBrokers        []string
	KafkaConsumerGroup  string
	KafkaConsumerTopics []string
	KafkaTopicByEvent   map[string]string

	JWTSecret       string
	JWTPublicKeyPEM string
	JWTIssuer       string
	AllowDevAuth    bool

	// ScheduleInterval is how often the distribution batch fires.
	// MaturityInterval is how long an investment waits between increments.
	ScheduleInterval       time.Duration
	MaturityInterval       time.Duration
	RunDistributionOnStart bool
	BatchMaxAttempts       int
	BatchRetryDelay        time.Duration
	RunLockTTL             time.Duration

	PlanCacheTTL                 time.Duration
	EventDedupTTL                time.Duration
	EnableDomainEventConsumption bool
	SamplePrincipal              string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	OutboxClaimTTL       time.Duration
	OutboxMaxRetries     int
	ConsumerPollInterval time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Events struct {
		ConsumerGroup  string            `yaml:"consumer_group"`
		ConsumerTopics []string          `yaml:"consumer_topics"`
		TopicByEvent   map[string]string `yaml:"topic_by_event"`
		ConsumeDomain  *bool             `yaml:"consume_domain_events"`
	} `yaml:"events"`
	Auth struct {
		Issuer       string `yaml:"issuer"`
		AllowDevAuth *bool  `yaml:"allow_dev_auth"`
	} `yaml:"auth"`
	Distribution struct {
		ScheduleInterval string `yaml:"schedule_interval"`
		MaturityInterval string `yaml:"maturity_interval"`
		RunOnStart       *bool  `yaml:"run_on_start"`
		MaxAttempts      int    `yaml:"max_attempts"`
		RetryDelay       string `yaml:"retry_delay"`
		RunLockTTL       string `yaml:"run_lock_ttl"`
	} `yaml:"distribution"`
	Plans struct {
		CacheTTL        string `yaml:"cache_ttl"`
		SamplePrincipal string `yaml:"sample_principal"`
	} `yaml:"plans"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                    "M42-Investment-Engine",
		LogLevel:                     slog.LevelInfo,
		HTTPPort:                     8080,
		GRPCPort:                     9090,
		MaxDBConns:                   20,
		AllowInMemoryStore:           true,
		KafkaConsumerGroup:           "m42-investment-engine",
		KafkaConsumerTopics:          []string{"sale.approved", "sale.rejected"},
		KafkaTopicByEvent:            map[string]string{},
		AllowDevAuth:                 true,
		ScheduleInterval:             time.Hour,
		MaturityInterval:             30 * 24 * time.Hour,
		BatchMaxAttempts:             3,
		BatchRetryDelay:              5 * time.Second,
		RunLockTTL:                   30 * time.Minute,
		PlanCacheTTL:                 5 * time.Minute,
		EventDedupTTL:                7 * 24 * time.Hour,
		EnableDomainEventConsumption: true,
		SamplePrincipal:              "1000000",
		OutboxPollInterval:           2 * time.Second,
		OutboxBatchSize:              100,
		OutboxClaimTTL:               30 * time.Second,
		OutboxMaxRetries:             5,
		ConsumerPollInterval:         2 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if err := applyFile(&cfg, f); err != nil {
			return Config{}, err
		}
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.LogLevel = parseLogLevel(envOrDefault("LOG_LEVEL", ""), cfg.LogLevel)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.AllowInMemoryStore = envBool("ALLOW_IN_MEMORY_STORE", cfg.AllowInMemoryStore)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaConsumerTopics = envCSV("KAFKA_CONSUMER_TOPICS", cfg.KafkaConsumerTopics)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.AllowDevAuth = envBool("ALLOW_DEV_AUTH", cfg.AllowDevAuth)
	cfg.EnableDomainEventConsumption = envBool("ENABLE_DOMAIN_EVENT_CONSUMPTION", cfg.EnableDomainEventConsumption)
	cfg.RunDistributionOnStart = envBool("DISTRIBUTION_RUN_ON_START", cfg.RunDistributionOnStart)
	cfg.BatchMaxAttempts = envInt("DISTRIBUTION_MAX_ATTEMPTS", cfg.BatchMaxAttempts)
	cfg.SamplePrincipal = envOrDefault("PLAN_SAMPLE_PRINCIPAL", cfg.SamplePrincipal)

	cfg.ScheduleInterval = envSeconds("DISTRIBUTION_SCHEDULE_SECONDS", cfg.ScheduleInterval)
	cfg.MaturityInterval = envSeconds("DISTRIBUTION_MATURITY_SECONDS", cfg.MaturityInterval)
	cfg.BatchRetryDelay = envSeconds("DISTRIBUTION_RETRY_DELAY_SECONDS", cfg.BatchRetryDelay)
	cfg.RunLockTTL = envSeconds("DISTRIBUTION_LOCK_TTL_SECONDS", cfg.RunLockTTL)
	cfg.PlanCacheTTL = envSeconds("PLAN_CACHE_TTL_SECONDS", cfg.PlanCacheTTL)
	cfg.EventDedupTTL = envSeconds("EVENT_DEDUP_TTL_SECONDS", cfg.EventDedupTTL)
	cfg.OutboxPollInterval = envSeconds("OUTBOX_POLL_SECONDS", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = envSeconds("OUTBOX_CLAIM_TTL_SECONDS", cfg.OutboxClaimTTL)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ConsumerPollInterval = envSeconds("CONSUMER_POLL_SECONDS", cfg.ConsumerPollInterval)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) error {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	cfg.LogLevel = parseLogLevel(f.Service.LogLevel, cfg.LogLevel)
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if brokers := trimNonEmpty(f.Dependencies.KafkaBrokers); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	if f.Events.ConsumerGroup != "" {
		cfg.KafkaConsumerGroup = f.Events.ConsumerGroup
	}
	if topics := trimNonEmpty(f.Events.ConsumerTopics); len(topics) > 0 {
		cfg.KafkaConsumerTopics = topics
	}
	for event, topic := range f.Events.TopicByEvent {
		cfg.KafkaTopicByEvent[event] = topic
	}
	if f.Events.ConsumeDomain != nil {
		cfg.EnableDomainEventConsumption = *f.Events.ConsumeDomain
	}
	if f.Auth.Issuer != "" {
		cfg.JWTIssuer = f.Auth.Issuer
	}
	if f.Auth.AllowDevAuth != nil {
		cfg.AllowDevAuth = *f.Auth.AllowDevAuth
	}
	if f.Distribution.RunOnStart != nil {
		cfg.RunDistributionOnStart = *f.Distribution.RunOnStart
	}
	if f.Distribution.MaxAttempts > 0 {
		cfg.BatchMaxAttempts = f.Distribution.MaxAttempts
	}
	if f.Plans.SamplePrincipal != "" {
		cfg.SamplePrincipal = f.Plans.SamplePrincipal
	}

	durations := []struct {
		name   string
		raw    string
		target *time.Duration
	}{
		{"distribution.schedule_interval", f.Distribution.ScheduleInterval, &cfg.ScheduleInterval},
		{"distribution.maturity_interval", f.Distribution.MaturityInterval, &cfg.MaturityInterval},
		{"distribution.retry_delay", f.Distribution.RetryDelay, &cfg.BatchRetryDelay},
		{"distribution.run_lock_ttl", f.Distribution.RunLockTTL, &cfg.RunLockTTL},
		{"plans.cache_ttl", f.Plans.CacheTTL, &cfg.PlanCacheTTL},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.target = parsed
	}
	return nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" && !c.AllowInMemoryStore {
		return fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if c.JWTSecret == "" && c.JWTPublicKeyPEM == "" && !c.AllowDevAuth {
		return fmt.Errorf("missing JWT_SECRET or JWT_PUBLIC_KEY_PEM")
	}
	if c.ScheduleInterval <= 0 || c.MaturityInterval <= 0 {
		return fmt.Errorf("distribution schedule and maturity intervals must be positive")
	}
	if c.BatchMaxAttempts < 1 {
		return fmt.Errorf("distribution max attempts must be at least 1")
	}
	if c.BatchRetryDelay <= 0 {
		return fmt.Errorf("distribution retry delay must be positive")
	}
	return nil
}

func parseLogLevel(raw string, fallback slog.Level) slog.Level {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}
	return level
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	return time.Duration(envInt(name, int(fallback.Seconds()))) * time.Second
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := trimNonEmpty(strings.Split(raw, ","))
	if len(parts) == 0 {
		return fallback
	}
	return parts
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
