// Package config loads and validates the application configuration.
// Defaults are struct-tag driven, so a zero-value file (or no file at
// all) yields a runnable configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/perpsignal/crashwatch/internal/domain/factors"
	"github.com/perpsignal/crashwatch/internal/domain/signals"
	"github.com/perpsignal/crashwatch/internal/domain/thresholds"
)

var validate = validator.New()

// Duration is a time.Duration that unmarshals from the usual "10s",
// "1h" notation in both YAML documents and default tags.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

// UnmarshalText implements encoding.TextUnmarshaler; creasty/defaults
// uses it to fill default tags.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full application configuration.
type Config struct {
	Symbols  []string `yaml:"symbols" default:"[\"BTC-USDT\"]" validate:"min=1,dive,required"`
	Interval Duration `yaml:"interval" default:"1h" validate:"required"`

	Engine Engine `yaml:"engine"`
	Alerts Alerts `yaml:"alerts"`
	Feed   Feed   `yaml:"feed"`
	Store  Store  `yaml:"store"`
	Server Server `yaml:"server"`
	Log    Log    `yaml:"log"`
}

// Engine configures the risk-scoring strategy. Factor weights live in
// a separate weights file so they can be tuned without touching the
// rest of the configuration; WeightsFile empty means built-in weights.
type Engine struct {
	Strategy        string           `yaml:"strategy" default:"default" validate:"required"`
	SmoothingWindow int              `yaml:"smoothing_window" default:"4" validate:"min=1,max=64"`
	ChangeLookback  int              `yaml:"change_lookback" default:"24" validate:"min=1"`
	WeightsFile     string           `yaml:"weights_file"`
	Thresholds      thresholds.Set   `yaml:"thresholds"`
	Stops           signals.StopBand `yaml:"stops"`

	// Weights is populated by Load from WeightsFile or the built-in
	// defaults; it is not read from the main YAML document.
	Weights factors.Weights `yaml:"-"`
}

// Alerts configures the notification surface. Telegram credentials
// come from the environment when the yaml values are empty.
type Alerts struct {
	Enabled        bool     `yaml:"enabled"`
	Threshold      float64  `yaml:"threshold" default:"0.2" validate:"min=0,max=1"`
	Cooldown       Duration `yaml:"cooldown" default:"1h"`
	TelegramToken  string   `yaml:"telegram_token"`
	TelegramChatID string   `yaml:"telegram_chat_id"`
}

// Feed configures where bars come from.
type Feed struct {
	Source    string   `yaml:"source" default:"rest" validate:"oneof=rest websocket csv"`
	BaseURL   string   `yaml:"base_url" default:"https://api.exchange.example.com"`
	WSUrl     string   `yaml:"ws_url"`
	CSVDir    string   `yaml:"csv_dir" default:"./data"`
	History   int      `yaml:"history" default:"500" validate:"min=60"`
	Timeout   Duration `yaml:"timeout" default:"10s"`
	RateLimit float64  `yaml:"rate_limit" default:"5" validate:"gt=0"`
	RateBurst int      `yaml:"rate_burst" default:"10" validate:"min=1"`
}

// Store configures the snapshot cache and history database. Empty
// values disable the corresponding store.
type Store struct {
	RedisAddr   string   `yaml:"redis_addr"`
	RedisTTL    Duration `yaml:"redis_ttl" default:"1h"`
	PostgresDSN string   `yaml:"postgres_dsn"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr" default:":8087"`
}

// Log configures zerolog.
type Log struct {
	Level string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
}

// Default returns the configuration with every default applied and no
// file consulted.
func Default() (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: applying defaults: %w", err)
	}
	cfg.Engine.Thresholds = thresholds.Default()
	cfg.Engine.Stops = signals.DefaultStopBand()
	cfg.Engine.Weights = factors.DefaultWeights()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path, layers it over the defaults, resolves the factor
// weights and validates everything. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		if err := defaults.Set(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: applying defaults: %w", err)
		}
	}

	loader := NewWeightsLoader()
	if cfg.Engine.WeightsFile != "" {
		err = loader.LoadFromFile(cfg.Engine.WeightsFile)
	} else {
		err = loader.LoadDefault()
	}
	if err != nil {
		return Config{}, err
	}
	cfg.Engine.Weights = loader.Weights()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs the struct-tag rules plus the domain-level checks the
// tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Engine.Thresholds.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Engine.Stops.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Engine.Weights.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Alerts.Enabled && (c.TelegramToken() == "" || c.TelegramChatID() == "") {
		return fmt.Errorf("config: alerts enabled but telegram credentials missing")
	}
	return nil
}

// TelegramToken resolves the bot token, preferring the configuration
// file over the TELEGRAM_BOT_TOKEN environment variable.
func (c Config) TelegramToken() string {
	if c.Alerts.TelegramToken != "" {
		return c.Alerts.TelegramToken
	}
	return os.Getenv("TELEGRAM_BOT_TOKEN")
}

// TelegramChatID resolves the chat id, preferring the configuration
// file over the TELEGRAM_CHAT_ID environment variable.
func (c Config) TelegramChatID() string {
	if c.Alerts.TelegramChatID != "" {
		return c.Alerts.TelegramChatID
	}
	return os.Getenv("TELEGRAM_CHAT_ID")
}
