package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/Relay/internal/domain"
)

type Config struct {
	Mode              string        `mapstructure:"mode"`
	Address           string        `mapstructure:"address"`
	HTTPPort          int           `mapstructure:"http_port"`
	GamePort          int           `mapstructure:"game_port"`
	Transport         string        `mapstructure:"transport"`
	BinaryFormat      string        `mapstructure:"binary_format"`
	WSPath            string        `mapstructure:"ws_path"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	IdleCheckInterval time.Duration `mapstructure:"idle_check_interval"`
	CredentialTTL     time.Duration `mapstructure:"credential_ttl"`
	Secret            string        `mapstructure:"secret"`
	BodyLimit         int64         `mapstructure:"body_limit"`
	ReadLimit         int64         `mapstructure:"read_limit"`
	PingPeriod        time.Duration `mapstructure:"ping_period"`
	IssueRate         float64       `mapstructure:"issue_rate"`
	IssueBurst        int           `mapstructure:"issue_burst"`
	LogLevel          string        `mapstructure:"log_level"`
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.HTTPPort))
}

func (c *Config) GameAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.GamePort))
}

func (c *Config) TransportKind() (domain.TransportKind, error) {
	return domain.ParseTransportKind(c.Transport)
}

// Validate rejects configurations the server cannot start with. An empty
// secret is allowed; the caller warns and generates one.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.TransportKind(); err != nil {
		errs = append(errs, fmt.Errorf("transport %q: %w", c.Transport, err))
	}
	switch strings.ToLower(c.BinaryFormat) {
	case "", "protobuf", "cbor":
	default:
		errs = append(errs, fmt.Errorf("binary_format %q: must be protobuf or cbor", c.BinaryFormat))
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d out of range", c.HTTPPort))
	}
	if c.GamePort < 0 || c.GamePort > 65535 {
		errs = append(errs, fmt.Errorf("game_port %d out of range", c.GamePort))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("idle_timeout must be positive"))
	}
	if c.IdleCheckInterval <= 0 {
		errs = append(errs, errors.New("idle_check_interval must be positive"))
	}
	if c.CredentialTTL <= 0 {
		errs = append(errs, errors.New("credential_ttl must be positive"))
	}
	if c.IssueRate <= 0 {
		errs = append(errs, errors.New("issue_rate must be positive"))
	}
	if c.IssueBurst < 1 {
		errs = append(errs, errors.New("issue_burst must be at least 1"))
	}
	if c.BodyLimit < 0 {
		errs = append(errs, errors.New("body_limit must not be negative"))
	}
	if c.ReadLimit < 0 {
		errs = append(errs, errors.New("read_limit must not be negative"))
	}
	if c.PingPeriod < 0 {
		errs = append(errs, errors.New("ping_period must not be negative"))
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		errs = append(errs, fmt.Errorf("ws_path %q must start with /", c.WSPath))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("address", "0.0.0.0")
	v.SetDefault("http_port", 3000)
	v.SetDefault("game_port", 1934)
	v.SetDefault("transport", string(domain.TransportWS))
	v.SetDefault("binary_format", "protobuf")
	v.SetDefault("ws_path", "/ws")
	v.SetDefault("idle_timeout", "60s")
	v.SetDefault("idle_check_interval", "10s")
	v.SetDefault("credential_ttl", "10m")
	v.SetDefault("secret", "")
	v.SetDefault("body_limit", 50<<20)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("issue_rate", 5.0)
	v.SetDefault("issue_burst", 10)
	v.SetDefault("log_level", "info")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default) on top of
// the defaults. RELAY_* environment variables override both.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("relay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Str("transport", cfg.Transport).
		Int("http_port", cfg.HTTPPort).Int("game_port", cfg.GamePort).Msg("config resolved")
	return &cfg, nil
}
