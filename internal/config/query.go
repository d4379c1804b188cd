package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// QueryConfig holds configuration for the query command.
type QueryConfig struct {
	PGDSN           string
	EntityType      string
	Sender          string
	Recipient       string
	OccurredAfter   int64
	OccurredBefore  int64
	MessageContains string
	Direction       string
	Limit           int
	Offset          int
	LogLevel        string
}

// LoadQuery merges config file, environment variables, and flags into
// QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("entity-type", "data_record")
	v.SetDefault("direction", "desc")
	v.SetDefault("limit", 50)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return QueryConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return QueryConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return QueryConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := QueryConfig{
		PGDSN:           v.GetString("pg-dsn"),
		EntityType:      v.GetString("entity-type"),
		Sender:          v.GetString("sender"),
		Recipient:       v.GetString("recipient"),
		OccurredAfter:   v.GetInt64("after"),
		OccurredBefore:  v.GetInt64("before"),
		MessageContains: v.GetString("contains"),
		Direction:       v.GetString("direction"),
		Limit:           v.GetInt("limit"),
		Offset:          v.GetInt("offset"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
