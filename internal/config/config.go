// Package config loads the server and engine configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig configures the demo HTTP/websocket server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// EngineConfig bounds the engine's iteration guards.
type EngineConfig struct {
	MaxEventChain     int   `mapstructure:"max_event_chain"`
	MaxPhaseAdvances  int   `mapstructure:"max_phase_advances"`
	MaxConditionDepth int   `mapstructure:"max_condition_depth"`
	Seed              int64 `mapstructure:"seed"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from the given file path. A missing file yields
// the defaults; a malformed file is an error. Environment variables prefixed
// with TABLEFORGE_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TABLEFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("engine.max_event_chain", 1000)
	v.SetDefault("engine.max_phase_advances", 10)
	v.SetDefault("engine.max_condition_depth", 3)
	v.SetDefault("engine.seed", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}
