package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// RequireAuth demands a LiveKit-signed bearer token on mutating API calls.
		RequireAuth bool `yaml:"require_auth"`
	} `yaml:"server"`

	LiveKit struct {
		URL       string        `yaml:"url"`
		APIKey    string        `yaml:"api_key"`
		APISecret string        `yaml:"api_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"livekit"`

	Session struct {
		RoomName        string        `yaml:"room_name"`
		ParticipantName string        `yaml:"participant_name"`
		Token           string        `yaml:"token"`
		SDKVersion      string        `yaml:"sdk_version"`
		Simulcast       bool          `yaml:"simulcast"`
		Dynacast        bool          `yaml:"dynacast"`
		AdaptiveStream  bool          `yaml:"adaptive_stream"`
		AutoJoin        bool          `yaml:"auto_join"`
		AutoJoinDelay   time.Duration `yaml:"auto_join_delay"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	} `yaml:"session"`

	Resubscribe struct {
		Interval     time.Duration `yaml:"interval"`
		MaxAttempts  int           `yaml:"max_attempts"` // 0 = unlimited
		InitialDelay time.Duration `yaml:"initial_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		Multiplier   float64       `yaml:"multiplier"`
		ForcedDelay  time.Duration `yaml:"forced_delay"`
		ManualDelay  time.Duration `yaml:"manual_delay"`
	} `yaml:"resubscribe"`

	JoinRetry struct {
		MaxAttempts  int           `yaml:"max_attempts"`
		InitialDelay time.Duration `yaml:"initial_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
	} `yaml:"join_retry"`

	Media struct {
		PublishVideo bool `yaml:"publish_video"`
		PublishAudio bool `yaml:"publish_audio"`
		FPS          int  `yaml:"fps"`
		Width        int  `yaml:"width"`
		Height       int  `yaml:"height"`
	} `yaml:"media"`

	Publish struct {
		Enabled   bool          `yaml:"enabled"`
		Address   string        `yaml:"address"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		PoolSize  int           `yaml:"pool_size"`
		KeyPrefix string        `yaml:"key_prefix"`
		Channel   string        `yaml:"channel"`
		TTL       time.Duration `yaml:"ttl"`
		Hydrate   bool          `yaml:"hydrate"`
	} `yaml:"publish"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Stream struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"stream"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// LiveKit
	if c.LiveKit.URL == "" {
		return fmt.Errorf("livekit.url must not be empty")
	}
	if (c.LiveKit.APIKey == "") != (c.LiveKit.APISecret == "") {
		return fmt.Errorf("livekit.api_key and livekit.api_secret must be set together")
	}
	if c.Server.RequireAuth && c.LiveKit.APIKey == "" {
		return fmt.Errorf("server.require_auth needs livekit.api_key and livekit.api_secret")
	}
	if c.LiveKit.TokenTTL <= 0 {
		return fmt.Errorf("livekit.token_ttl must be > 0")
	}

	// Session
	if c.Session.RoomName == "" {
		return fmt.Errorf("session.room_name must not be empty")
	}
	if c.Session.ParticipantName == "" {
		return fmt.Errorf("session.participant_name must not be empty")
	}
	if c.Session.AutoJoinDelay < 0 {
		return fmt.Errorf("session.auto_join_delay must be >= 0")
	}
	if c.Session.ConnectTimeout <= 0 {
		return fmt.Errorf("session.connect_timeout must be > 0")
	}

	// Resubscribe
	if c.Resubscribe.Interval <= 0 {
		return fmt.Errorf("resubscribe.interval must be > 0")
	}
	if c.Resubscribe.MaxAttempts < 0 {
		return fmt.Errorf("resubscribe.max_attempts must be >= 0")
	}
	if c.Resubscribe.InitialDelay < 0 || c.Resubscribe.MaxDelay < c.Resubscribe.InitialDelay {
		return fmt.Errorf("resubscribe.initial_delay must be >= 0 and <= max_delay")
	}
	if c.Resubscribe.Multiplier < 1 {
		return fmt.Errorf("resubscribe.multiplier must be >= 1")
	}

	// Join retry
	if c.JoinRetry.MaxAttempts < 0 {
		return fmt.Errorf("join_retry.max_attempts must be >= 0")
	}

	// Media
	if c.Media.FPS <= 0 || c.Media.FPS > 120 {
		return fmt.Errorf("media.fps must be in (0, 120]")
	}
	if c.Media.Width <= 0 || c.Media.Height <= 0 {
		return fmt.Errorf("media.width and media.height must be > 0")
	}

	// Publish
	if c.Publish.Enabled {
		if c.Publish.Address == "" {
			return fmt.Errorf("publish.address must not be empty when publish.enabled=true")
		}
		if c.Publish.PoolSize <= 0 {
			return fmt.Errorf("publish.pool_size must be > 0 when publish.enabled=true")
		}
		if c.Publish.KeyPrefix == "" {
			return fmt.Errorf("publish.key_prefix must not be empty when publish.enabled=true")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Stream
	if c.Stream.PingInterval <= 0 {
		return fmt.Errorf("stream.ping_interval must be > 0")
	}
	if c.Stream.WriteTimeout <= 0 {
		return fmt.Errorf("stream.write_timeout must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second

	cfg.LiveKit.URL = DefaultLiveKitURL
	cfg.LiveKit.TokenTTL = 6 * time.Hour

	cfg.Session.RoomName = DefaultRoomName
	cfg.Session.ParticipantName = DefaultParticipantName
	cfg.Session.Token = DefaultToken
	cfg.Session.Simulcast = true
	cfg.Session.Dynacast = true
	cfg.Session.AdaptiveStream = true
	cfg.Session.AutoJoin = false
	cfg.Session.AutoJoinDelay = 2 * time.Second
	cfg.Session.ConnectTimeout = 30 * time.Second

	cfg.Resubscribe.Interval = 5 * time.Second
	cfg.Resubscribe.MaxAttempts = 10
	cfg.Resubscribe.InitialDelay = 5 * time.Second
	cfg.Resubscribe.MaxDelay = time.Minute
	cfg.Resubscribe.Multiplier = 2.0
	cfg.Resubscribe.ForcedDelay = 100 * time.Millisecond
	cfg.Resubscribe.ManualDelay = time.Second

	cfg.JoinRetry.MaxAttempts = 0
	cfg.JoinRetry.InitialDelay = 500 * time.Millisecond
	cfg.JoinRetry.MaxDelay = 5 * time.Second

	cfg.Media.PublishVideo = true
	cfg.Media.PublishAudio = true
	cfg.Media.FPS = 30
	cfg.Media.Width = 1280
	cfg.Media.Height = 720

	cfg.Publish.Enabled = false
	cfg.Publish.Address = "localhost:6379"
	cfg.Publish.DB = 0
	cfg.Publish.PoolSize = 10
	cfg.Publish.KeyPrefix = "meetprobe:"
	cfg.Publish.Channel = "meetprobe:snapshots"
	cfg.Publish.TTL = time.Hour

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Stream.PingInterval = 30 * time.Second
	cfg.Stream.WriteTimeout = 10 * time.Second

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("MEETPROBE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if url := os.Getenv("MEETPROBE_LIVEKIT_URL"); url != "" {
		c.LiveKit.URL = url
	}
	if key := os.Getenv("MEETPROBE_LIVEKIT_API_KEY"); key != "" {
		c.LiveKit.APIKey = key
	}
	if secret := os.Getenv("MEETPROBE_LIVEKIT_API_SECRET"); secret != "" {
		c.LiveKit.APISecret = secret
	}
	if room := os.Getenv("MEETPROBE_ROOM_NAME"); room != "" {
		c.Session.RoomName = room
	}
	if name := os.Getenv("MEETPROBE_PARTICIPANT_NAME"); name != "" {
		c.Session.ParticipantName = name
	}
	if autoJoin := os.Getenv("MEETPROBE_AUTO_JOIN"); autoJoin != "" {
		if v, err := strconv.ParseBool(autoJoin); err == nil {
			c.Session.AutoJoin = v
		}
	}
	if addr := os.Getenv("MEETPROBE_REDIS_ADDRESS"); addr != "" {
		c.Publish.Address = addr
		c.Publish.Enabled = true
	}
	if level := os.Getenv("MEETPROBE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
