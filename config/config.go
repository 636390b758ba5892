// Package config loads bdt settings from an optional YAML file, BDT_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/TFMV/bdt/pkg/compare"
	"github.com/TFMV/bdt/pkg/readers"
	"github.com/TFMV/bdt/report"
)

// EnvPrefix prefixes every environment override, e.g. BDT_COMPARE_LIMIT.
const EnvPrefix = "BDT"

// --- Configuration Structs ---

type CompareConfig struct {
	AbsoluteEpsilon float64 `mapstructure:"absolute_epsilon" yaml:"absolute_epsilon"`
	RelativeEpsilon float64 `mapstructure:"relative_epsilon" yaml:"relative_epsilon"`
	Limit           uint64  `mapstructure:"limit" yaml:"limit"`
	MaxRowsShown    int     `mapstructure:"max_rows_shown" yaml:"max_rows_shown"`
	Format          string  `mapstructure:"format" yaml:"format"`
	SuggestRenames  bool    `mapstructure:"suggest_renames" yaml:"suggest_renames"`
}

type ReaderConfig struct {
	BatchSize   int64 `mapstructure:"batch_size" yaml:"batch_size"`
	NoHeaderRow bool  `mapstructure:"no_header_row" yaml:"no_header_row"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

type ServerConfig struct {
	Port      int  `mapstructure:"port" yaml:"port"`
	AccessLog bool `mapstructure:"access_log" yaml:"access_log"`

	// DataDir is the only directory the compare endpoint may read from.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

type ADBCConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	URI        string `mapstructure:"uri" yaml:"uri"`
	Entrypoint string `mapstructure:"entrypoint" yaml:"entrypoint"`
}

type Config struct {
	Compare CompareConfig `mapstructure:"compare" yaml:"compare"`
	Reader  ReaderConfig  `mapstructure:"reader" yaml:"reader"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	ADBC    ADBCConfig    `mapstructure:"adbc" yaml:"adbc"`
}

// Policy returns the tolerance policy described by the compare section.
func (c CompareConfig) Policy() compare.TolerancePolicy {
	return compare.TolerancePolicy{
		AbsoluteEpsilon: c.AbsoluteEpsilon,
		RelativeEpsilon: c.RelativeEpsilon,
	}
}

// --- Load Configuration ---

// SetDefaults registers every key with its default so that environment
// overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("compare.absolute_epsilon", 0.0)
	v.SetDefault("compare.relative_epsilon", 0.0)
	v.SetDefault("compare.limit", 0)
	v.SetDefault("compare.max_rows_shown", 20)
	v.SetDefault("compare.format", report.FormatText)
	v.SetDefault("compare.suggest_renames", false)
	v.SetDefault("reader.batch_size", readers.DefaultBatchSize)
	v.SetDefault("reader.no_header_row", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.access_log", false)
	v.SetDefault("server.data_dir", ".")
	v.SetDefault("adbc.driver", "")
	v.SetDefault("adbc.uri", "")
	v.SetDefault("adbc.entrypoint", "")
}

// Load reads configuration into v and decodes it. An empty configPath
// searches for .bdt.yaml in the working directory and then the home
// directory; a missing file is not an error in that case.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName(".bdt")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads a single YAML configuration file.
func LoadConfig(configPath string) (*Config, error) {
	return Load(viper.New(), filepath.Clean(configPath))
}

// --- Validation Functions ---

// validate is a helper function to reduce repetition.
func validate(condition bool, format string, a ...any) error {
	if !condition {
		return fmt.Errorf(format, a...)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Compare.Validate(); err != nil {
		return fmt.Errorf("compare configuration error: %w", err)
	}
	if err := c.Reader.Validate(); err != nil {
		return fmt.Errorf("reader configuration error: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log configuration error: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration error: %w", err)
	}
	return nil
}

func (cc *CompareConfig) Validate() error {
	if err := validate(finite(cc.AbsoluteEpsilon) && cc.AbsoluteEpsilon >= 0,
		"absolute epsilon must be a finite value >= 0, got %v", cc.AbsoluteEpsilon); err != nil {
		return err
	}
	if err := validate(finite(cc.RelativeEpsilon) && cc.RelativeEpsilon >= 0,
		"relative epsilon must be a finite value >= 0, got %v", cc.RelativeEpsilon); err != nil {
		return err
	}
	if err := validate(cc.MaxRowsShown >= 0, "max rows shown must be >= 0, got %d", cc.MaxRowsShown); err != nil {
		return err
	}
	return validate(slices.Contains(report.Formats(), cc.Format),
		"unknown format %q, want one of %v", cc.Format, report.Formats())
}

func (rc *ReaderConfig) Validate() error {
	return validate(rc.BatchSize > 0, "batch size must be > 0, got %d", rc.BatchSize)
}

var logLevels = []string{"debug", "info", "warn", "error"}

func (lc *LogConfig) Validate() error {
	return validate(slices.Contains(logLevels, lc.Level),
		"unknown log level %q, want one of %v", lc.Level, logLevels)
}

func (sc *ServerConfig) Validate() error {
	if err := validate(sc.Port > 0 && sc.Port < 65536, "port must be between 1 and 65535, got %d", sc.Port); err != nil {
		return err
	}
	return validate(sc.DataDir != "", "server data_dir must not be empty")
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
