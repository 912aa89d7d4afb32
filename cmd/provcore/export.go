package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"provcore/internal/archive"
	"provcore/internal/core"
)

var exportRequestedBy string

var exportCmd = &cobra.Command{
	Use:   "export <product-id>",
	Short: "Archive a product's verification bundle to the blob store",
	Long: `Export captures the product record, its full supply-chain history,
and the hash-chain verdict, and writes the bundle to the configured
blob store under products/<id>/bundle-<seq>.json. Exporting the same
chain state twice keeps the first capture.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportRequestedBy, "requested-by", "", "identity recorded on the archived bundle")
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("product id must be a positive integer, got %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, releaseStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer releaseStore()
	service := core.NewService(store)

	blobs, err := openBlob(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	record, err := archive.Export(cmd.Context(), service, blobs, id, exportRequestedBy)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive record: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}
