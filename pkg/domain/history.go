package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// ComputeStepHash derives the tamper-evidence hash of a step from its
// canonical fields and the hash of the preceding step (empty for the
// first). The hash must be computed after Seq, Timestamp, and PrevHash
// are fixed.
func ComputeStepHash(productID uint64, step SupplyChainStep) string {
	parts := []string{
		strconv.FormatUint(productID, 10),
		strconv.FormatUint(step.Seq, 10),
		step.Participant,
		step.Role,
		step.Action,
		step.Location,
		step.Notes,
		step.Timestamp.UTC().Format(time.RFC3339Nano),
		step.PrevHash,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// VerifyChain recomputes the hash chain over a history snapshot and
// returns ErrChainBroken at the first divergence. A nil error means the
// chain is intact.
func VerifyChain(productID uint64, steps []SupplyChainStep) error {
	prev := ""
	for i, step := range steps {
		seq := uint64(i + 1)
		if step.Seq != seq || step.PrevHash != prev {
			return ErrChainBroken{ProductID: productID, Seq: seq}
		}
		if ComputeStepHash(productID, step) != step.Hash {
			return ErrChainBroken{ProductID: productID, Seq: seq}
		}
		prev = step.Hash
	}
	return nil
}

// Verification is the public trust-anchor read: a product, its full
// history oldest-first, and the hash-chain verdict at capture time.
type Verification struct {
	Product     Product           `json:"product"`
	History     []SupplyChainStep `json:"history"`
	ChainIntact bool              `json:"chain_intact"`
	CapturedAt  time.Time         `json:"captured_at"`
}
