// Package archive captures verification bundles and writes them to the
// configured blob store. A bundle is the product record, its full
// supply-chain history, and the hash-chain verdict at capture time,
// keyed by the sequence number of the newest step so every distinct
// chain state archives to its own immutable object.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"provcore/internal/blob"
	"provcore/pkg/domain"
)

// Status describes the lifecycle stage of an archive job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record tracks an archive job and the resulting bundle object.
type Record struct {
	ID          string     `json:"id"`
	ProductID   uint64     `json:"product_id"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Key         string     `json:"key,omitempty"`
	Sequence    uint64     `json:"sequence,omitempty"`
	ETag        string     `json:"etag,omitempty"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
	URL         string     `json:"url,omitempty"`
	Note        string     `json:"note,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	dup := r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

// Registry is the slice of the product registry the archiver consumes.
type Registry interface {
	GetProduct(ctx context.Context, id uint64) (domain.Product, error)
	VerifyProduct(ctx context.Context, id uint64) (domain.Verification, error)
}

// BundleKey returns the object key for a product's bundle at the given
// chain sequence.
func BundleKey(productID, seq uint64) string {
	return fmt.Sprintf("products/%d/bundle-%06d.json", productID, seq)
}

// Export archives one product synchronously, bypassing the worker
// queue. The CLI export command uses it.
func Export(ctx context.Context, reg Registry, blobs blob.Store, productID uint64, requestedBy string) (Record, error) {
	started := time.Now().UTC()
	info, seq, existed, err := capture(ctx, reg, blobs, productID, requestedBy)
	done := time.Now().UTC()
	record := Record{
		ID:          uuid.NewString(),
		ProductID:   productID,
		RequestedBy: requestedBy,
		CreatedAt:   started,
		UpdatedAt:   done,
		CompletedAt: &done,
	}
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		return record, err
	}
	record.Status = StatusSucceeded
	record.Key = info.Key
	record.Sequence = seq
	record.ETag = info.ETag
	record.SizeBytes = info.Size
	record.URL = info.URL
	if existed {
		record.Note = "bundle already archived for this chain state"
	}
	return record, nil
}

// capture verifies the product, encodes the bundle, and stores it under
// its chain-sequence key. A key collision means the exact chain state
// was archived before; the first capture wins and its metadata is
// returned unchanged.
func capture(ctx context.Context, reg Registry, blobs blob.Store, productID uint64, requestedBy string) (blob.Info, uint64, bool, error) {
	verification, err := reg.VerifyProduct(ctx, productID)
	if err != nil {
		return blob.Info{}, 0, false, err
	}
	var seq uint64
	if n := len(verification.History); n > 0 {
		seq = verification.History[n-1].Seq
	}
	key := BundleKey(productID, seq)
	if info, err := blobs.Head(ctx, key); err == nil {
		return info, seq, true, nil
	}
	payload, err := json.Marshal(verification)
	if err != nil {
		return blob.Info{}, 0, false, fmt.Errorf("encode bundle: %w", err)
	}
	metadata := map[string]string{
		"product_id": strconv.FormatUint(productID, 10),
		"sequence":   strconv.FormatUint(seq, 10),
	}
	if requestedBy != "" {
		metadata["requested_by"] = requestedBy
	}
	info, err := blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    metadata,
	})
	if err != nil {
		return blob.Info{}, 0, false, fmt.Errorf("store bundle: %w", err)
	}
	return info, seq, false, nil
}
