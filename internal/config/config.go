package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	Secret         string        `mapstructure:"secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`

	// BackpressurePolicy is "drop" or "kick".
	BackpressurePolicy string `mapstructure:"backpressure_policy"`

	Relay     RelayConfig     `mapstructure:"relay"`
	Store     StoreConfig     `mapstructure:"store"`
	CountSync CountSyncConfig `mapstructure:"count_sync"`

	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

// RelayConfig limits offer/answer/candidate frames per connection.
// RateLimit 0 disables the limiter.
type RelayConfig struct {
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type CountSyncConfig struct {
	Workers int           `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

var (
	ErrBadPort     = errors.New("port out of range")
	ErrBadDriver   = errors.New("unknown store driver")
	ErrPingPeriod  = errors.New("ping_period must be shorter than pong_wait")
	ErrSendBuffer  = errors.New("send_buffer must be positive")
	ErrMissingAddr = errors.New("store address not set")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "studyroom-dev-secret")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("backpressure_policy", "drop")
	v.SetDefault("relay.rate_limit", 0)
	v.SetDefault("relay.rate_interval", "1s")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("count_sync.workers", 2)
	v.SetDefault("count_sync.timeout", "3s")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads config/config.<CONFIG_ENV>.yaml (or the file given with
// --config), then applies STUDYROOM_* environment overrides.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("studyroom", pflag.ContinueOnError)
	path := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("STUDYROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileName := *path
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		if *path != "" {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrBadPort, c.Port)
	}
	if c.PingPeriod >= c.PongWait {
		return ErrPingPeriod
	}
	if c.SendBuffer <= 0 {
		return ErrSendBuffer
	}
	switch c.Store.Driver {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr", ErrMissingAddr)
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn", ErrMissingAddr)
		}
	default:
		return fmt.Errorf("%w: %q", ErrBadDriver, c.Store.Driver)
	}
	return nil
}
