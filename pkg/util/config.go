package util

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type StoreConfig struct {
	Engine    string `mapstructure:"engine"`
	Path      string `mapstructure:"path"`
	InMemory  bool   `mapstructure:"in_memory"`
	ChunkRows int    `mapstructure:"chunk_rows"`
}

type GraphConfig struct {
	CellSize        float64       `mapstructure:"cell_size"`
	EdgeWaitTimeout time.Duration `mapstructure:"edge_wait_timeout"`
	MaxRing         int           `mapstructure:"max_ring"`
}

type RoutingConfig struct {
	DefaultSpeedKmh   float64       `mapstructure:"default_speed_kmh"`
	HeuristicSpeedKmh float64       `mapstructure:"heuristic_speed_kmh"`
	HeuristicWeight   float64       `mapstructure:"heuristic_weight"`
	EarlyStopFactor   float64       `mapstructure:"early_stop_factor"`
	SearchTimeout     time.Duration `mapstructure:"search_timeout"`
	KSPTimeout        time.Duration `mapstructure:"ksp_timeout"`
	SearchRadiusM     float64       `mapstructure:"search_radius_m"`
	CacheSize         int           `mapstructure:"cache_size"`
	KSPWorkers        int           `mapstructure:"ksp_workers"`
}

type CHConfig struct {
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	MaxSettledNodes   int           `mapstructure:"max_settled_nodes"`
	MaxSettledWitness int           `mapstructure:"max_settled_witness"`
	SampleSize        int           `mapstructure:"sample_size"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UseRateLimit bool          `mapstructure:"use_rate_limit"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Graph   GraphConfig   `mapstructure:"graph"`
	Routing RoutingConfig `mapstructure:"routing"`
	CH      CHConfig      `mapstructure:"ch"`
	Server  ServerConfig  `mapstructure:"server"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.engine", "badger")
	v.SetDefault("store.path", "./data/graph")
	v.SetDefault("store.in_memory", false)
	v.SetDefault("store.chunk_rows", 1000)

	v.SetDefault("graph.cell_size", 0.01)
	v.SetDefault("graph.edge_wait_timeout", "30s")
	v.SetDefault("graph.max_ring", 50)

	v.SetDefault("routing.default_speed_kmh", 50.0)
	v.SetDefault("routing.heuristic_speed_kmh", 130.0)
	v.SetDefault("routing.heuristic_weight", 1.0)
	v.SetDefault("routing.early_stop_factor", 1.0)
	v.SetDefault("routing.search_timeout", "5s")
	v.SetDefault("routing.ksp_timeout", "15s")
	v.SetDefault("routing.search_radius_m", 500.0)
	v.SetDefault("routing.cache_size", 4096)
	v.SetDefault("routing.ksp_workers", 4)

	v.SetDefault("ch.query_timeout", "2s")
	v.SetDefault("ch.max_settled_nodes", 2_000_000)
	v.SetDefault("ch.max_settled_witness", 500)
	v.SetDefault("ch.sample_size", 0)

	v.SetDefault("server.port", 6060)
	v.SetDefault("server.timeout", "60s")
	v.SetDefault("server.use_rate_limit", false)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// ReadConfig loads config.yaml from ./data/ or the working directory. A missing
// file is not an error; defaults and NAVIGATORX_* environment variables apply.
func ReadConfig(paths ...string) (Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./data/", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("NAVIGATORX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Routing.HeuristicWeight < 1 {
		return WrapErrorf(nil, ErrBadParamInput, "routing.heuristic_weight must be >= 1, got %v", c.Routing.HeuristicWeight)
	}
	if c.Routing.EarlyStopFactor < 1 {
		return WrapErrorf(nil, ErrBadParamInput, "routing.early_stop_factor must be >= 1, got %v", c.Routing.EarlyStopFactor)
	}
	if c.Graph.CellSize <= 0 {
		return WrapErrorf(nil, ErrBadParamInput, "graph.cell_size must be positive, got %v", c.Graph.CellSize)
	}
	switch c.Store.Engine {
	case "badger", "pebble":
	default:
		return WrapErrorf(nil, ErrBadParamInput, "unknown store.engine %q", c.Store.Engine)
	}
	return nil
}
