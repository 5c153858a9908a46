// Package config loads widget host settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/toolink/widgets/limiter"
)

// Defaults for the wrapper element and its id.
const (
	DefaultWrapperTag = "div"
	DefaultIDPrefix   = "core-"
)

var tagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// Config holds every setting of a widget host.
type Config struct {
	WrapperTag string `yaml:"wrapper_tag"` // element created around a loaded widget
	IDPrefix   string `yaml:"id_prefix"`   // prepended to the widget name to form the element id
	Errors     bool   `yaml:"errors"`      // report missing/duplicate names instead of ignoring them
	LogLevel   string `yaml:"log_level"`

	Relay   RelayConfig    `yaml:"relay"`
	GRPC    GRPCConfig     `yaml:"grpc"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Limits  limiter.Config `yaml:"limits"`
	Widgets []Widget       `yaml:"widgets"`
}

// RelayConfig configures the Redis relay. It is disabled when RedisAddr is empty.
type RelayConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// GRPCConfig configures the gRPC push gateway. It is disabled when Addr is empty.
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig configures the Prometheus endpoint. It is disabled when Addr is empty.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Widget declares one text widget for the CLI host.
type Widget struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"` // id of the parent element, "body", or "" for none
	Params string `yaml:"params"`
	Event  string `yaml:"event"` // event whose pushes replace the widget text
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		WrapperTag: DefaultWrapperTag,
		IDPrefix:   DefaultIDPrefix,
		LogLevel:   zerolog.LevelInfoValue,
		Limits:     limiter.Config{StorageType: limiter.StorageMemory},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if err := cfg.ValidateAndPrepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateAndPrepare checks the settings and fills derived defaults.
func (c *Config) ValidateAndPrepare() error {
	if !tagPattern.MatchString(c.WrapperTag) {
		return fmt.Errorf("invalid wrapper_tag: %q", c.WrapperTag)
	}
	if c.LogLevel == "" {
		c.LogLevel = zerolog.LevelInfoValue
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if err := c.Limits.ValidateAndPrepare(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if c.Limits.StorageType == limiter.StorageRedis && c.Relay.RedisAddr == "" {
		return errors.New("limits: storage_type redis requires relay.redis_addr")
	}

	seen := make(map[string]bool, len(c.Widgets))
	for _, w := range c.Widgets {
		if seen[w.Name] {
			return fmt.Errorf("duplicate widget: %q", w.Name)
		}
		seen[w.Name] = true
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
