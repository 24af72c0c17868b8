// Package config loads quadstore's environment options from a TOML
// file or QUADSTORE_* environment variables, the way
// evalgo-org-eve/cli's root command binds flags and env vars through
// github.com/spf13/viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ldpstore/quadstore/internal/codec"
	"github.com/ldpstore/quadstore/internal/kv"
)

// Config mirrors kv.Options plus the data directory the CLI opens.
type Config struct {
	DataDir    string `mapstructure:"data_dir"`
	MapSize    int64  `mapstructure:"map_size"`
	MaxDBs     int    `mapstructure:"max_dbs"`
	MaxReaders int    `mapstructure:"max_readers"`
	NoSubdir   bool   `mapstructure:"no_subdir"`
	ReadAhead  bool   `mapstructure:"read_ahead"`
	KeyWidth   int    `mapstructure:"key_width"`
}

// Default returns the configuration matching kv.DefaultOptions plus a
// conventional local data directory.
func Default() Config {
	d := kv.DefaultOptions()
	return Config{
		DataDir:    "./data",
		MapSize:    d.MapSize,
		MaxDBs:     d.MaxDBs,
		MaxReaders: d.MaxReaders,
		NoSubdir:   d.NoSubdir,
		ReadAhead:  d.ReadAhead,
		KeyWidth:   int(d.KeyWidth),
	}
}

// Load reads quadstore.toml (if present, at configFile or the working
// directory) and overlays QUADSTORE_* environment variables, the way
// root.go overlays RABBITMQ_*/COUCHDB_*-prefixed env vars onto a
// viper-bound config struct.
func Load(configFile string) (Config, error) {
	v := viper.New()
	cfg := Default()

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("map_size", cfg.MapSize)
	v.SetDefault("max_dbs", cfg.MaxDBs)
	v.SetDefault("max_readers", cfg.MaxReaders)
	v.SetDefault("no_subdir", cfg.NoSubdir)
	v.SetDefault("read_ahead", cfg.ReadAhead)
	v.SetDefault("key_width", cfg.KeyWidth)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("quadstore")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("quadstore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: reading config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// KVOptions translates the loaded config into kv.Options, validating
// KeyWidth against the engine's permitted set (spec §9 bullet 9).
func (c Config) KVOptions() (kv.Options, error) {
	w := codec.Width(c.KeyWidth)
	if !w.Valid() {
		return kv.Options{}, fmt.Errorf("config: key_width must be 4, 5, or 8, got %d", c.KeyWidth)
	}
	opts := kv.DefaultOptions()
	opts.MapSize = c.MapSize
	opts.MaxDBs = c.MaxDBs
	opts.MaxReaders = c.MaxReaders
	opts.NoSubdir = c.NoSubdir
	opts.ReadAhead = c.ReadAhead
	opts.KeyWidth = w
	return opts, nil
}
