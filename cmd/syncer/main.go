package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reserveSync/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "syncer",
		Short:        "Soroswap pair reserve synchronizer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll new ledgers and keep pair reserves in sync",
		RunE:  runSyncer,
	}

	addConnectionFlags(runCmd.Flags())
	addStoreFlags(runCmd.Flags())
	runCmd.Flags().Int("workers", 0, "parallel scan workers (default: number of CPUs)")
	runCmd.Flags().Int("batch-size", config.MaxBatchSize, "contract ids per event query (the RPC accepts at most 5)")
	runCmd.Flags().Int("batch-concurrency", 4, "concurrent event queries per worker")
	runCmd.Flags().Uint("page-limit", 100, "events per page, 0 disables pagination")
	runCmd.Flags().Duration("poll-interval", 5*time.Second, "wait between ledger checks")
	runCmd.Flags().Duration("query-timeout", 15*time.Second, "timeout for a single event query")
	runCmd.Flags().Uint32("max-lookback", 0, "maximum ledgers a resumed cycle scans back, 0 means unlimited")
	runCmd.Flags().String("cursor", config.CursorNone, "cursor persistence (none, file, store)")
	runCmd.Flags().String("cursor-path", "./data/cursor.json", "cursor file path")
	runCmd.Flags().String("ops-addr", ":8080", "ops HTTP listen address, empty disables it")
	runCmd.Flags().String("journal", "", "optional JSONL journal of applied updates")
	runCmd.Flags().Bool("skip-discovery", false, "do not run factory discovery at start")

	root.AddCommand(runCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Read every pair from the factory and upsert it into the store",
		RunE:  runDiscover,
	}

	addConnectionFlags(discoverCmd.Flags())
	addStoreFlags(discoverCmd.Flags())

	root.AddCommand(discoverCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConnectionFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "Soroban RPC URL")
	fs.String("network-passphrase", config.DefaultNetworkPassphrase, "expected network passphrase")
	fs.Bool("skip-network-check", false, "do not compare the node passphrase with network-passphrase")
	fs.String("admin-secret", "", "secret key of the simulation source account")
	fs.String("factory", config.DefaultFactory, "factory contract id")
	fs.Duration("rpc-timeout", 30*time.Second, "HTTP timeout for RPC calls")
	fs.Int("max-retries", 3, "maximum retry attempts")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("store", config.StoreSQLite, "pair store backend (postgres, sqlite, memory)")
	fs.String("pg-dsn", "", "Postgres DSN")
	fs.String("sqlite-path", "./data/pairs.db", "SQLite database path")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
