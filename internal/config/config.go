package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Detect  DetectConfig  `yaml:"detect" mapstructure:"detect"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Source  SourceConfig  `yaml:"source" mapstructure:"source"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DetectConfig tunes conflict detection.
type DetectConfig struct {
	NumericTolerance float64 `yaml:"numeric_tolerance" mapstructure:"numeric_tolerance"`
}

// ResolveConfig tunes conflict resolution.
type ResolveConfig struct {
	SourcePriorities map[string]int `yaml:"source_priorities" mapstructure:"source_priorities"`
	PolicyPath       string         `yaml:"policy_path" mapstructure:"policy_path"`
}

// SourceConfig configures how source files are loaded.
type SourceConfig struct {
	DefaultConfidence  float64 `yaml:"default_confidence" mapstructure:"default_confidence"`
	MaxConcurrentLoads int     `yaml:"max_concurrent_loads" mapstructure:"max_concurrent_loads"`
}

// StoreConfig configures where run history is persisted.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECONCILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("detect.numeric_tolerance", 0.01)
	v.SetDefault("resolve.source_priorities", map[string]int{"excel": 1, "word": 2, "pdf": 3})
	v.SetDefault("resolve.policy_path", "")
	v.SetDefault("source.default_confidence", 0.5)
	v.SetDefault("source.max_concurrent_loads", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reconcile.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var problems []string
	if c.Detect.NumericTolerance < 0 {
		problems = append(problems, "detect.numeric_tolerance must be >= 0")
	}
	if c.Source.DefaultConfidence < 0 || c.Source.DefaultConfidence > 1 {
		problems = append(problems, "source.default_confidence must be within [0,1]")
	}
	if c.Source.MaxConcurrentLoads < 1 {
		problems = append(problems, "source.max_concurrent_loads must be >= 1")
	}
	switch c.Store.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		problems = append(problems, "store.driver must be one of sqlite, postgres, none")
	}
	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
