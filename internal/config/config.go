// Package config loads relaysheet settings from defaults, an optional config
// file, a local .env file and RELAYSHEET_* environment variables, in that
// order of precedence (lowest first).
package config

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentworkforce/relaysheet/internal/callsheet"
)

var ErrInvalidConfig = errors.New("invalid config")

// Mode selects how the root route interprets request bodies.
type Mode string

const (
	// ModeStrict expects {"action", "data"} and answers in JSON.
	ModeStrict Mode = "strict"
	// ModeVoice infers the action from loosely shaped bodies and answers in plain text.
	ModeVoice Mode = "voice"
)

type Config struct {
	Addr           string           `mapstructure:"addr"`
	Mode           Mode             `mapstructure:"mode"`
	Store          StoreConfig      `mapstructure:"store"`
	SpreadsheetID  string           `mapstructure:"spreadsheet_id"`
	Tables         callsheet.Tables `mapstructure:"tables"`
	MaxBodyBytes   int64            `mapstructure:"max_body_bytes"`
	RequestTimeout time.Duration    `mapstructure:"request_timeout"`
	Signature      SignatureConfig  `mapstructure:"signature"`
	Events         EventsConfig     `mapstructure:"events"`
	Log            LogConfig        `mapstructure:"log"`
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SignatureConfig controls inbound HMAC verification. An empty secret turns
// verification off.
type SignatureConfig struct {
	Header          string        `mapstructure:"header"`
	TimestampHeader string        `mapstructure:"timestamp_header"`
	Secret          string        `mapstructure:"secret"`
	MaxSkew         time.Duration `mapstructure:"max_skew"`
}

// EventsConfig guards the live event feed and dashboard. An empty token
// keeps both disabled. Origins are host patterns allowed to open the feed
// from a browser on another host.
type EventsConfig struct {
	Token   string   `mapstructure:"token"`
	Origins []string `mapstructure:"origins"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// New returns a viper instance with defaults, env binding and, when
// configFile is set, that file merged in.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	configFile = strings.TrimSpace(configFile)
	if configFile == "" {
		return v, nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", configFile)
	}
	return v, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped and variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "load %s", path)
		}
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	c.SpreadsheetID = strings.TrimSpace(c.SpreadsheetID)
	if c.Store.DSN == "" && c.SpreadsheetID != "" {
		c.Store.DSN = "sheets://" + c.SpreadsheetID
	}
	if c.Signature.Header == "" {
		c.Signature.Header = DefaultSignatureHeader
	}
	if c.Signature.TimestampHeader == "" {
		c.Signature.TimestampHeader = DefaultTimestampHeader
	}
	if c.Signature.MaxSkew <= 0 {
		c.Signature.MaxSkew = DefaultSignatureMaxSkew
	}
	c.Events.Token = strings.TrimSpace(c.Events.Token)
	origins := c.Events.Origins[:0]
	for _, origin := range c.Events.Origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.Events.Origins = origins
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeStrict, ModeVoice:
	default:
		return errors.Wrapf(ErrInvalidConfig, "mode %q must be %s or %s", c.Mode, ModeStrict, ModeVoice)
	}
	if err := c.Tables.Validate(); err != nil {
		return errors.Mark(errors.Wrap(err, "tables"), ErrInvalidConfig)
	}
	if c.Store.DSN == "" {
		return errors.Wrap(ErrInvalidConfig, "store.dsn or spreadsheet_id is required")
	}
	if _, err := url.Parse(c.Store.DSN); err != nil {
		return errors.Mark(errors.Wrapf(err, "store.dsn %q", c.Store.DSN), ErrInvalidConfig)
	}
	return nil
}
