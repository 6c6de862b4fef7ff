// Package config loads bacond configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Build   BuildConfig   `mapstructure:"build"`
	Query   QueryConfig   `mapstructure:"query"`
	Server  ServerConfig  `mapstructure:"server"`
	Graph   GraphConfig   `mapstructure:"graph"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Log     LogConfig     `mapstructure:"log"`
}

// DataConfig locates the raw dumps and the built dataset.
type DataConfig struct {
	Dir             string `mapstructure:"dir"`
	DatasetPath     string `mapstructure:"dataset_path"`
	TitleBasics     string `mapstructure:"title_basics"`
	TitlePrincipals string `mapstructure:"title_principals"`
	NameBasics      string `mapstructure:"name_basics"`
}

// BuildConfig controls the batch build.
type BuildConfig struct {
	Shards        int      `mapstructure:"shards"`
	MaxSkipRatio  float64  `mapstructure:"max_skip_ratio"`
	TitleTypes    []string `mapstructure:"title_types"`
	JobCategories []string `mapstructure:"job_categories"`
}

// QueryConfig parameterizes the query engine.
type QueryConfig struct {
	// ReferenceActor is the fixed endpoint all distances are measured to.
	ReferenceActor string `mapstructure:"reference_actor"`
}

// ServerConfig controls the HTTP adapter.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Watch reloads the dataset when the file changes on disk.
	Watch bool `mapstructure:"watch"`
	// Refresh fetches and rebuilds the dataset on startup.
	Refresh bool `mapstructure:"refresh"`
}

// GraphConfig holds Neo4j connection settings for the optional bulk load.
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// BatchSize bounds the number of relationships written per transaction.
	BatchSize int `mapstructure:"batch_size"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir:             "data",
			DatasetPath:     "data/dataset.json",
			TitleBasics:     "data/title.basics.tsv",
			TitlePrincipals: "data/title.principals.tsv",
			NameBasics:      "data/name.basics.tsv",
		},
		Build: BuildConfig{
			MaxSkipRatio: 0.1,
		},
		Query: QueryConfig{
			ReferenceActor: "Kevin Bacon",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Graph: GraphConfig{
			URI:       "bolt://localhost:7687",
			Username:  "neo4j",
			BatchSize: 500,
		},
		Tracing: TracingConfig{
			SampleRate:  1.0,
			Environment: "development",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Build.MaxSkipRatio < 0 || c.Build.MaxSkipRatio > 1 {
		warnings = append(warnings, fmt.Sprintf("build max_skip_ratio %.2f is outside [0.0, 1.0]", c.Build.MaxSkipRatio))
	}
	if c.Build.Shards < 0 {
		warnings = append(warnings, fmt.Sprintf("build shards %d is negative", c.Build.Shards))
	}
	if c.Query.ReferenceActor == "" {
		warnings = append(warnings, "query reference_actor is empty, falling back to Kevin Bacon")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// Load reads configuration from file and environment. A missing config file
// is not an error: defaults plus BACOND_ environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BACOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data.dir", cfg.Data.Dir)
	v.SetDefault("data.dataset_path", cfg.Data.DatasetPath)
	v.SetDefault("data.title_basics", cfg.Data.TitleBasics)
	v.SetDefault("data.title_principals", cfg.Data.TitlePrincipals)
	v.SetDefault("data.name_basics", cfg.Data.NameBasics)
	v.SetDefault("build.max_skip_ratio", cfg.Build.MaxSkipRatio)
	v.SetDefault("query.reference_actor", cfg.Query.ReferenceActor)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("graph.uri", cfg.Graph.URI)
	v.SetDefault("graph.username", cfg.Graph.Username)
	v.SetDefault("graph.batch_size", cfg.Graph.BatchSize)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
	v.SetDefault("tracing.environment", cfg.Tracing.Environment)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
