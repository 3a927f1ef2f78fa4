// Package config loads the gateway's Settings from a TOML file with
// environment-variable overrides, using viper for flag/env/file
// precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// CouchDBSettings configures the upstream CouchDB fall-through: where it
// lives, how to authenticate, and the per-database read-through/read-only
// policy.
type CouchDBSettings struct {
	URL                  string            `mapstructure:"url"`
	Username             string            `mapstructure:"username"`
	Password             string            `mapstructure:"password"`
	ReadThrough          bool              `mapstructure:"read_through"`
	ReadOnly             bool              `mapstructure:"read_only"`
	ReadThroughDatabases []string          `mapstructure:"read_through_databases"`
	ReadOnlyDatabases    []string          `mapstructure:"read_only_databases"`
	Mappings             map[string]string `mapstructure:"mappings"`
}

// Settings is the gateway's full configuration, loaded once at startup
// from config.toml (or whatever --config points at) and environment
// variables sharing the COUCHMONGO_ prefix.
type Settings struct {
	Debug                bool             `mapstructure:"debug"`
	ListenAddress        string           `mapstructure:"listen_address"`
	BodyLimit            string           `mapstructure:"body_limit"`
	RateLimit            float64          `mapstructure:"rate_limit"`
	MongoDBConnectString string           `mapstructure:"mongodb_connect_string"`
	MongoDBDatabase      string           `mapstructure:"mongodb_database"`
	ViewFolder           string           `mapstructure:"view_folder"`
	UpdatesFolder        string           `mapstructure:"updates_folder"`
	CouchDBSettings      *CouchDBSettings `mapstructure:"couchdb_settings"`
	LogFormat            string           `mapstructure:"log_format"`
	LogLevel             string           `mapstructure:"log_level"`
}

// EnvPrefix is the common prefix environment-variable overrides share,
// e.g. COUCHMONGO_MONGODB_DATABASE overrides mongodb_database.
const EnvPrefix = "couchmongo"

// defaults applies the gateway's default values to v before the config
// file and environment are read, so an empty or partial config file
// still produces a usable Settings.
func defaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("listen_address", "0.0.0.0:3000")
	v.SetDefault("body_limit", "10M")
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("log_format", "Compact")
	v.SetDefault("log_level", "Debug")
}

// Load reads Settings from path (a TOML file) with environment-variable
// overrides sharing EnvPrefix, validating the two required Mongo fields.
func Load(path string) (*Settings, error) {
	v := viper.New()
	defaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if settings.MongoDBConnectString == "" {
		return nil, fmt.Errorf("mongodb_connect_string is required")
	}
	if settings.MongoDBDatabase == "" {
		return nil, fmt.Errorf("mongodb_database is required")
	}

	return &settings, nil
}
