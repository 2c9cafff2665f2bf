package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	CursorNone  = "none"
	CursorFile  = "file"
	CursorStore = "store"

	// MaxBatchSize is the most contract ids the RPC accepts in one getEvents filter.
	MaxBatchSize = 5

	DefaultNetworkPassphrase = "Public Global Stellar Network ; September 2015"
	DefaultFactory           = "CA4HEQTL2WPEUYKYKCDOHCDNIV4QHNJ7EL4J4NQ6VADP7SYHVRYZ7AW2"
)

// Config holds configuration values loaded from flags, env, .env, or config file.
type Config struct {
	RPCURL            string
	NetworkPassphrase string
	AdminSecret       string
	Factory           string

	Store      string
	PGDSN      string
	SQLitePath string

	Workers          int
	BatchSize        int
	BatchConcurrency int
	PageLimit        uint
	PollInterval     time.Duration
	QueryTimeout     time.Duration
	RPCTimeout       time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	MaxLookback      uint32
	CursorBackend    string
	CursorPath       string
	SkipDiscovery    bool
	SkipNetworkCheck bool

	OpsAddr  string
	Journal  string
	LogLevel string
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SYNCER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("admin-secret", "SYNCER_ADMIN_SECRET", "ADMIN_SECRET_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	v.SetDefault("network-passphrase", DefaultNetworkPassphrase)
	v.SetDefault("factory", DefaultFactory)
	v.SetDefault("store", StoreSQLite)
	v.SetDefault("sqlite-path", "./data/pairs.db")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("batch-size", MaxBatchSize)
	v.SetDefault("batch-concurrency", 4)
	v.SetDefault("page-limit", uint(100))
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("query-timeout", 15*time.Second)
	v.SetDefault("rpc-timeout", 30*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("cursor", CursorNone)
	v.SetDefault("cursor-path", "./data/cursor.json")
	v.SetDefault("ops-addr", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		NetworkPassphrase: v.GetString("network-passphrase"),
		AdminSecret:       v.GetString("admin-secret"),
		Factory:           v.GetString("factory"),
		Store:             strings.ToLower(v.GetString("store")),
		PGDSN:             v.GetString("pg-dsn"),
		SQLitePath:        v.GetString("sqlite-path"),
		Workers:           v.GetInt("workers"),
		BatchSize:         v.GetInt("batch-size"),
		BatchConcurrency:  v.GetInt("batch-concurrency"),
		PageLimit:         v.GetUint("page-limit"),
		PollInterval:      v.GetDuration("poll-interval"),
		QueryTimeout:      v.GetDuration("query-timeout"),
		RPCTimeout:        v.GetDuration("rpc-timeout"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MaxLookback:       v.GetUint32("max-lookback"),
		CursorBackend:     strings.ToLower(v.GetString("cursor")),
		CursorPath:        v.GetString("cursor-path"),
		SkipDiscovery:     v.GetBool("skip-discovery"),
		SkipNetworkCheck:  v.GetBool("skip-network-check"),
		OpsAddr:           v.GetString("ops-addr"),
		Journal:           v.GetString("journal"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks settings the sync loop cannot run without.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if c.AdminSecret == "" {
		return fmt.Errorf("admin secret is required (--admin-secret, SYNCER_ADMIN_SECRET or ADMIN_SECRET_KEY)")
	}
	if c.NetworkPassphrase == "" {
		return fmt.Errorf("network passphrase is required")
	}
	if c.Factory == "" {
		return fmt.Errorf("factory is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", MaxBatchSize, c.BatchSize)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}

	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	switch c.CursorBackend {
	case CursorNone, CursorStore:
	case CursorFile:
		if c.CursorPath == "" {
			return fmt.Errorf("cursor path is required for the file cursor")
		}
	default:
		return fmt.Errorf("unknown cursor backend %q", c.CursorBackend)
	}
	return nil
}
