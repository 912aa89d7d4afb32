package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"provcore/internal/core"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <product-id>",
	Short: "Verify a product's custody chain against the configured store",
	Long: `Verify recomputes the hash chain over a product's supply-chain
history and prints the verification bundle as JSON. The command exits
non-zero when the product is unknown or the stored history does not
recompute.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	verification, err := service.VerifyProduct(cmd.Context(), id)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(verification, "", "  ")
	if err != nil {
		return fmt.Errorf("encode verification: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	if !verification.ChainIntact {
		return fmt.Errorf("history chain for product %d does not recompute", id)
	}
	return nil
}
