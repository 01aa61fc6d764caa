package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix prefixes every environment override, e.g. TALKWIRE_API_BASE_URL.
const EnvPrefix = "TALKWIRE"

// Config contains all runtime configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Ops      OpsConfig      `mapstructure:"ops"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RealtimeConfig struct {
	URL            string        `mapstructure:"url"`
	Origin         string        `mapstructure:"origin"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	// RequireToken fails the CONNECT early when no bearer token is known.
	RequireToken bool `mapstructure:"require_token"`
	// Resync is how often views without a live subscription are remounted.
	// Zero remounts only when a transport is reported lost.
	Resync time.Duration `mapstructure:"resync"`

	PublishRateEvents int           `mapstructure:"publish_rate_events"`
	PublishRateWindow time.Duration `mapstructure:"publish_rate_window"`
}

// AuthConfig holds the credentials the daemon signs in with. Empty disables
// automatic sign-in.
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OpsConfig configures the health and metrics listener. An empty Addr disables it.
type OpsConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", "5s")

	v.SetDefault("realtime.url", "ws://localhost:8080/ws/websocket")
	v.SetDefault("realtime.origin", "")
	v.SetDefault("realtime.connect_timeout", "10s")
	v.SetDefault("realtime.heartbeat", "10s")
	v.SetDefault("realtime.require_token", false)
	v.SetDefault("realtime.resync", "15s")
	v.SetDefault("realtime.publish_rate_events", 30)
	v.SetDefault("realtime.publish_rate_window", "10s")

	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ops.addr", "")
	v.SetDefault("ops.read_header_timeout", "5s")
}

// LoadConfig reads defaults, then the config file, then TALKWIRE_* environment
// overrides. With an empty path it looks for an optional talkwire.yaml in the
// working directory; an explicit path must exist.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("talkwire")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configs the daemon cannot start with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(validURL(c.API.BaseURL, "http", "https"), "api.base_url %q", c.API.BaseURL)
	check(c.API.Timeout > 0, "api.timeout must be positive")

	check(validURL(c.Realtime.URL, "ws", "wss", "http", "https"), "realtime.url %q", c.Realtime.URL)
	check(c.Realtime.ConnectTimeout > 0, "realtime.connect_timeout must be positive")
	check(c.Realtime.Heartbeat >= 0, "realtime.heartbeat must not be negative")
	check(c.Realtime.Resync >= 0, "realtime.resync must not be negative")
	check(c.Realtime.PublishRateEvents >= 0, "realtime.publish_rate_events must not be negative")
	check(c.Realtime.PublishRateWindow >= 0, "realtime.publish_rate_window must not be negative")

	check((c.Auth.Username == "") == (c.Auth.Password == ""), "auth.username and auth.password go together")

	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "json", "pretty":
	default:
		check(false, "log.format %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

func validURL(raw string, schemes ...string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}
