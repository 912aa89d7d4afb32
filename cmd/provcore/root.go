package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"provcore/internal/blob"
	"provcore/internal/config"
	"provcore/internal/core"
	"provcore/internal/infra/persistence"
	"provcore/pkg/domain"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "provcore",
	Short: "Tamper-evident supply chain product registry",
	Long: `provcore tracks products through their supply chain. Every product
carries an append-only, hash-chained custody history, so any
out-of-band modification of stored state is detectable at
verification time.`,
	SilenceUsage: true,
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./provcore.yaml, then /etc/provcore/provcore.yaml)")
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}

func storeDSN(cfg config.StoreConfig) string {
	if cfg.Driver == persistence.DriverSQLite {
		return cfg.Path
	}
	return cfg.DSN
}

// openStore builds the configured registry backend and returns it with
// a release function.
func openStore(cfg config.Config, opts ...core.StoreOption) (domain.RegistryStore, func(), error) {
	store, err := persistence.Open(persistence.Config{
		Driver: cfg.Store.Driver,
		DSN:    storeDSN(cfg.Store),
	}, cfg.Admin, core.NewDefaultRulesEngine(), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	release := func() {}
	if closer, ok := store.(io.Closer); ok {
		release = func() { closer.Close() }
	}
	return store, release, nil
}

func openBlob(ctx context.Context, cfg config.Config) (blob.Store, error) {
	store, err := blob.Open(ctx, blob.Config{
		Driver: cfg.Blob.Driver,
		Root:   cfg.Blob.Root,
		S3: blob.S3Config{
			Region:    cfg.Blob.S3.Region,
			Bucket:    cfg.Blob.S3.Bucket,
			Endpoint:  cfg.Blob.S3.Endpoint,
			PathStyle: cfg.Blob.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return store, nil
}
