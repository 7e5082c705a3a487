package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds web server settings. File values come from assess.yaml;
// environment variables with the ASSESS_ prefix override the file.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	PollerInterval  time.Duration `mapstructure:"poller_interval"`
	PollerAttempts  int           `mapstructure:"poller_attempts"`
	FlowRetention   time.Duration `mapstructure:"flow_retention"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoadServerConfig reads assess.yaml from the given directory (or the working
// directory when empty). A missing file is not an error; defaults apply.
func LoadServerConfig(dir string) (*ServerConfig, error) {
	v := viper.New()
	v.SetConfigName("assess")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("ASSESS")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8181")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("poller_interval", 5*time.Second)
	v.SetDefault("poller_attempts", 10)
	v.SetDefault("flow_retention", 30*24*time.Hour)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading server config: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling server config: %w", err)
	}
	if cfg.PollerAttempts <= 0 {
		cfg.PollerAttempts = 10
	}
	return &cfg, nil
}
