// Package config loads layered application configuration: built-in
// defaults, an application.yaml base file, an application-{profile}.yaml
// overlay, then environment variables as the highest-priority override.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration tree for the csms binary.
type Config struct {
	App            AppConfig            `mapstructure:"app"`
	PodID          string               `mapstructure:"pod_id"`
	Server         ServerConfig         `mapstructure:"server"`
	WebSocket      WebSocketConfig      `mapstructure:"websocket"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Log            LogConfig            `mapstructure:"log"`
	EventChannels  EventChannelConfig   `mapstructure:"event_channels"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	OCPP           OCPPConfig           `mapstructure:"ocpp"`
	Security       SecurityConfig       `mapstructure:"security"`
	SessionRegistry SessionRegistryConfig `mapstructure:"session_registry"`
	CommandEngine  CommandEngineConfig  `mapstructure:"command_engine"`
	Liveness       LivenessConfig       `mapstructure:"liveness"`
	Billing        BillingConfig        `mapstructure:"billing"`
}

// AppConfig identifies the running binary.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Profile string `mapstructure:"profile"`
}

// ServerConfig controls the main WebSocket/HTTP listener.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	WebSocketPath  string        `mapstructure:"websocket_path"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxConnections int           `mapstructure:"max_connections"`
}

// WebSocketConfig controls the gorilla/websocket upgrader and per-connection
// pumps.
type WebSocketConfig struct {
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	CheckOrigin       bool          `mapstructure:"check_origin"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	EnableSubprotocol bool          `mapstructure:"enable_subprotocol"`
	HandshakeRateLimitPerIP int     `mapstructure:"handshake_rate_limit_per_ip"`
}

// RedisConfig addresses the repository port's Redis-backed implementation.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig addresses the event bus's Kafka-backed implementation.
type KafkaConfig struct {
	Brokers         []string       `mapstructure:"brokers"`
	EventsTopic     string         `mapstructure:"events_topic"`
	CommandsTopic   string         `mapstructure:"commands_topic"`
	ConsumerGroup   string         `mapstructure:"consumer_group"`
	PartitionNum    int            `mapstructure:"partition_num"`
	Producer        ProducerConfig `mapstructure:"producer"`
	Consumer        ConsumerConfig `mapstructure:"consumer"`
}

// ProducerConfig tunes the sarama async producer.
type ProducerConfig struct {
	RetryMax       int           `mapstructure:"retry_max"`
	ReturnSuccess  bool          `mapstructure:"return_successes"`
	FlushFrequency time.Duration `mapstructure:"flush_frequency"`
}

// ConsumerConfig tunes the sarama consumer.
type ConsumerConfig struct {
	ReturnErrors   bool   `mapstructure:"return_errors"`
	OffsetsInitial string `mapstructure:"offsets_initial"`
}

// CacheConfig holds cache sizing knobs. It is loaded like the rest of the
// tree, but no component reads it: the pending-limits map and the command
// engine's correlation table use their own built-in TTL and shard count.
type CacheConfig struct {
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MemoryLimitMB   int           `mapstructure:"memory_limit_mb"`
}

// LogConfig mirrors logger.Config's fields for unmarshaling from viper.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	Async  bool   `mapstructure:"async"`
}

// EventChannelConfig sizes the event bus's internal buffering.
type EventChannelConfig struct {
	BufferSize int `mapstructure:"buffer_size" json:"buffer_size"`
}

// DefaultEventChannelConfig returns the service default buffer size.
func DefaultEventChannelConfig() EventChannelConfig {
	return EventChannelConfig{BufferSize: 50000}
}

// MonitoringConfig addresses the metrics/health HTTP surfaces.
type MonitoringConfig struct {
	MetricsAddr     string `mapstructure:"metrics_addr"`
	HealthCheckPort int    `mapstructure:"health_check_port"`
	PprofEnabled    bool   `mapstructure:"pprof_enabled"`
}

// OCPPConfig controls protocol-level defaults shared across C3/C4.
type OCPPConfig struct {
	SupportedVersions []string      `mapstructure:"supported_versions"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	MessageTimeout    time.Duration `mapstructure:"message_timeout"`
	WorkerCount       int           `mapstructure:"worker_count"`
}

// SecurityConfig controls TLS termination (handled by the caller, not this
// module, but the knobs are threaded through config the same way).
type SecurityConfig struct {
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	ClientAuth bool   `mapstructure:"client_auth"`
}

// SessionRegistryConfig controls C2's reconnect debounce window. The
// per-IP handshake rate limit is WebSocketConfig.HandshakeRateLimitPerIP.
type SessionRegistryConfig struct {
	ReconnectDebounce time.Duration `mapstructure:"reconnect_debounce"`
}

// CommandEngineConfig controls C5's correlation timeout.
type CommandEngineConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// LivenessConfig controls C7's two sweepers.
type LivenessConfig struct {
	HeartbeatSweepInterval   time.Duration `mapstructure:"heartbeat_sweep_interval"`
	ReservationSweepInterval time.Duration `mapstructure:"reservation_sweep_interval"`
	UnavailableThreshold     time.Duration `mapstructure:"unavailable_threshold"`
}

// BillingConfig carries a default currency. It is loaded and printed, but
// C6 does not read it: a billing record takes its currency from the tariff.
type BillingConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
}

// Load reads defaults, application.yaml, application-{profile}.yaml, then
// environment overrides, in that priority order, and unmarshals into Config.
func Load() (*Config, error) {
	setDefaults()

	profile := getProfile()
	fmt.Printf("Loading configuration for profile: %s\n", profile)

	if err := loadConfigFile("application"); err != nil {
		fmt.Printf("Warning: Could not load default config file: %v\n", err)
	}

	if profile != "" {
		configName := fmt.Sprintf("application-%s", profile)
		if err := loadConfigFile(configName); err != nil {
			fmt.Printf("Warning: Could not load profile config file %s: %v\n", configName, err)
		}
	}

	setupEnvironmentVariables()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.App.Profile = profile

	printConfigInfo(&cfg)

	return &cfg, nil
}

func getProfile() string {
	if profile := os.Getenv("APP_PROFILE"); profile != "" {
		return profile
	}
	if profile := viper.GetString("app.profile"); profile != "" {
		return profile
	}
	return "local"
}

func loadConfigFile(configName string) error {
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	return viper.MergeInConfig()
}

func setupEnvironmentVariables() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("monitoring.health_check_port", "MONITORING_HEALTH_CHECK_PORT")
	viper.BindEnv("app.profile", "APP_PROFILE")

	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		for i, broker := range brokers {
			brokers[i] = strings.TrimSpace(broker)
		}
		viper.Set("kafka.brokers", brokers)
	}
}

func printConfigInfo(cfg *Config) {
	fmt.Printf("=== Configuration Loaded ===\n")
	fmt.Printf("App: %s %s (profile=%s, pod=%s)\n", cfg.App.Name, cfg.App.Version, cfg.App.Profile, cfg.PodID)
	fmt.Printf("Server: %s:%d%s\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.WebSocketPath)
	fmt.Printf("Redis: %s db=%d pool=%d\n", cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.PoolSize)
	fmt.Printf("Kafka: brokers=%v events=%s commands=%s group=%s\n",
		cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.CommandsTopic, cfg.Kafka.ConsumerGroup)
	fmt.Printf("Log: level=%s format=%s output=%s async=%v\n", cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Async)
	fmt.Printf("Monitoring: metrics=%s health_port=%d\n", cfg.Monitoring.MetricsAddr, cfg.Monitoring.HealthCheckPort)
	fmt.Printf("OCPP: versions=%v message_timeout=%v workers=%d\n", cfg.OCPP.SupportedVersions, cfg.OCPP.MessageTimeout, cfg.OCPP.WorkerCount)
	fmt.Printf("SessionRegistry: reconnect_debounce=%v\n", cfg.SessionRegistry.ReconnectDebounce)
	fmt.Printf("CommandEngine: command_timeout=%v\n", cfg.CommandEngine.CommandTimeout)
	fmt.Printf("Liveness: heartbeat_sweep=%v reservation_sweep=%v unavailable_threshold=%v\n",
		cfg.Liveness.HeartbeatSweepInterval, cfg.Liveness.ReservationSweepInterval, cfg.Liveness.UnavailableThreshold)
	fmt.Printf("Billing: default_currency=%s\n", cfg.Billing.DefaultCurrency)
	fmt.Printf("Security: tls_enabled=%v\n", cfg.Security.TLSEnabled)
	fmt.Printf("============================\n")
}

func setDefaults() {
	viper.SetDefault("app.name", "csms")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.profile", "local")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.websocket_path", "/ocpp")
	viper.SetDefault("server.read_timeout", "60s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.max_connections", 100000)

	viper.SetDefault("websocket.read_buffer_size", 4096)
	viper.SetDefault("websocket.write_buffer_size", 4096)
	viper.SetDefault("websocket.handshake_timeout", "10s")
	viper.SetDefault("websocket.ping_interval", "30s")
	viper.SetDefault("websocket.pong_timeout", "10s")
	viper.SetDefault("websocket.max_message_size", 1048576)
	viper.SetDefault("websocket.enable_compression", false)
	viper.SetDefault("websocket.idle_timeout", "15m")
	viper.SetDefault("websocket.cleanup_interval", "10m")
	viper.SetDefault("websocket.check_origin", false)
	viper.SetDefault("websocket.allowed_origins", []string{})
	viper.SetDefault("websocket.enable_subprotocol", true)
	viper.SetDefault("websocket.handshake_rate_limit_per_ip", 60)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("redis.min_idle_conns", 10)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.events_topic", "csms-events")
	viper.SetDefault("kafka.commands_topic", "csms-commands")
	viper.SetDefault("kafka.consumer_group", "csms-consumer")
	viper.SetDefault("kafka.partition_num", 3)

	viper.SetDefault("cache.max_size", 10000)
	viper.SetDefault("cache.ttl", "2m")
	viper.SetDefault("cache.cleanup_interval", "1m")
	viper.SetDefault("cache.memory_limit_mb", 512)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")

	viper.SetDefault("event_channels.buffer_size", 50000)

	viper.SetDefault("monitoring.metrics_addr", ":9090")
	viper.SetDefault("monitoring.health_check_port", 8081)
	viper.SetDefault("monitoring.pprof_enabled", false)

	viper.SetDefault("ocpp.supported_versions", []string{"2.0.1", "1.6"})
	viper.SetDefault("ocpp.heartbeat_interval", "300s")
	viper.SetDefault("ocpp.connection_timeout", "60s")
	viper.SetDefault("ocpp.message_timeout", "30s")
	viper.SetDefault("ocpp.worker_count", 100)

	viper.SetDefault("security.tls_enabled", false)
	viper.SetDefault("security.cert_file", "")
	viper.SetDefault("security.key_file", "")
	viper.SetDefault("security.client_auth", false)

	viper.SetDefault("session_registry.reconnect_debounce", "500ms")
	viper.SetDefault("command_engine.command_timeout", "30s")
	viper.SetDefault("liveness.heartbeat_sweep_interval", "60s")
	viper.SetDefault("liveness.reservation_sweep_interval", "60s")
	viper.SetDefault("liveness.unavailable_threshold", "600s")
	viper.SetDefault("billing.default_currency", "USD")
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetMetricsAddr() string {
	return c.Monitoring.MetricsAddr
}

func (c *Config) GetHealthCheckAddr() string {
	return fmt.Sprintf(":%d", c.Monitoring.HealthCheckPort)
}

func (c *Config) IsProduction() bool {
	return c.App.Profile == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Profile == "dev"
}

func (c *Config) IsTest() bool {
	return c.App.Profile == "test" || c.App.Profile == "local"
}
