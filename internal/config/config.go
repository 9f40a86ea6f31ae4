// Package config loads process configuration from environment variables
// (and, if present, a config file), with viper providing defaults and
// unmarshalling.
package config

import (
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the dispatch service. Mapstructure
// tags are used by viper to unmarshal the data; viper's AutomaticEnv
// resolves each key against its uppercased environment variable, so
// "queue_port" is read from QUEUE_PORT.
type Config struct {
	QueuePort       int           `mapstructure:"queue_port"`
	EtcdEndpoints   []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout     time.Duration `mapstructure:"etcd_timeout"`
	StatsReportCron string        `mapstructure:"stats_report_cron"`
}

// Load loads configuration from an optional config file and from
// environment variables, falling back to documented defaults.
func Load() (*Config, error) {
	viper.SetDefault("queue_port", 7000)
	viper.SetDefault("etcd_endpoints", []string{})
	viper.SetDefault("etcd_timeout", "5s")
	viper.SetDefault("stats_report_cron", "0 * * * * *")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ListenAddr renders the configured port as a net/http listen address.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.QueuePort)
}
