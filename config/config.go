// Package config loads sage's configuration from YAML and SAGE_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides.  For example,
// SAGE_HTTP_LISTEN overrides http.listen.
const EnvPrefix = "SAGE"

type Config struct {
	KB      KBConfig      `mapstructure:"kb" yaml:"kb"`
	Text    TextConfig    `mapstructure:"text" yaml:"text"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Sweep   SweepConfig   `mapstructure:"sweep" yaml:"sweep"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
}

// KBConfig says where knowledge bases live.
type KBConfig struct {
	// Dir is searched for *.kb.yaml, *.kb.yml, and *.kb.json.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// Default is the KB used when none is named.
	Default string `mapstructure:"default" yaml:"default"`
}

// TextConfig names an extra text resource file that overrides what
// KBs provide.
type TextConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type HTTPConfig struct {
	Listen   string `mapstructure:"listen" yaml:"listen"`
	MaxConns int    `mapstructure:"max_conns" yaml:"max_conns"`
}

// StorageConfig picks the history backend: "none", "bolt", or
// "sqlite".
type StorageConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	Path string `mapstructure:"path" yaml:"path"`
}

// SweepConfig controls dropping idle sessions.  Schedule is a cron
// expression.
type SweepConfig struct {
	Schedule string        `mapstructure:"schedule" yaml:"schedule"`
	Idle     time.Duration `mapstructure:"idle" yaml:"idle"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker" yaml:"broker"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	QoS      int    `mapstructure:"qos" yaml:"qos"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

type EngineConfig struct {
	PassLimit int `mapstructure:"pass_limit" yaml:"pass_limit"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		KB: KBConfig{
			Dir:     "examples/rpg",
			Default: "rpg",
		},
		Text: TextConfig{
			Path: "examples/rpg/strings.json",
		},
		HTTP: HTTPConfig{
			Listen:   ":8080",
			MaxConns: 128,
		},
		Storage: StorageConfig{
			Kind: "none",
			Path: "sage-history.db",
		},
		Sweep: SweepConfig{
			Schedule: "*/5 * * * *",
			Idle:     30 * time.Minute,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "sage",
			Prefix:   "sage",
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			PassLimit: 100,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("kb.dir", d.KB.Dir)
	v.SetDefault("kb.default", d.KB.Default)
	v.SetDefault("text.path", d.Text.Path)
	v.SetDefault("http.listen", d.HTTP.Listen)
	v.SetDefault("http.max_conns", d.HTTP.MaxConns)
	v.SetDefault("storage.kind", d.Storage.Kind)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("sweep.schedule", d.Sweep.Schedule)
	v.SetDefault("sweep.idle", d.Sweep.Idle)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.prefix", d.MQTT.Prefix)
	v.SetDefault("mqtt.qos", d.MQTT.QoS)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("engine.pass_limit", d.Engine.PassLimit)
}

// Load reads the given YAML file (if not empty) and applies
// environment overrides.  With no path, Load looks for sage.yaml in
// the current directory and in $HOME/.config/sage, and a missing file
// is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sage")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch c.Storage.Kind {
	case "", "none", "bolt", "sqlite":
	default:
		return fmt.Errorf("invalid storage kind: %s (must be none, bolt, or sqlite)", c.Storage.Kind)
	}
	if c.HTTP.MaxConns < 0 {
		return fmt.Errorf("invalid http.max_conns: %d", c.HTTP.MaxConns)
	}
	if c.Engine.PassLimit < 0 {
		return fmt.Errorf("invalid engine.pass_limit: %d", c.Engine.PassLimit)
	}
	if c.MQTT.QoS < 0 || 2 < c.MQTT.QoS {
		return fmt.Errorf("invalid mqtt.qos: %d", c.MQTT.QoS)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	bs, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bs, 0644)
}
