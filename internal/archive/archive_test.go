package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"provcore/internal/blob"
	"provcore/internal/core"
	"provcore/pkg/domain"
)

func newRegistry(t *testing.T) *core.Service {
	t.Helper()
	svc := core.NewInMemoryService("admin")
	ctx := context.Background()
	if _, _, err := svc.AuthorizeParticipant(ctx, "admin", "acme", "manufacturer"); err != nil {
		t.Fatalf("authorize acme: %v", err)
	}
	if _, _, err := svc.RegisterProduct(ctx, "acme", domain.ProductInput{
		Name:           "Alpine Jacket",
		MaterialType:   "recycled polyester",
		Origin:         "Hanoi",
		Price:          129.50,
		Certifications: []string{"GRS"},
	}); err != nil {
		t.Fatalf("register product: %v", err)
	}
	return svc
}

func TestBundleKey(t *testing.T) {
	if got := BundleKey(1, 1); got != "products/1/bundle-000001.json" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := BundleKey(7, 12); got != "products/7/bundle-000012.json" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestExportWritesBundle(t *testing.T) {
	svc := newRegistry(t)
	blobs := blob.NewMemory()
	ctx := context.Background()

	record, err := Export(ctx, svc, blobs, 1, "ops@example.com")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if record.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", record.Status, record.Error)
	}
	if record.Key != "products/1/bundle-000001.json" || record.Sequence != 1 {
		t.Fatalf("unexpected key %q seq %d", record.Key, record.Sequence)
	}
	if record.ETag == "" || record.SizeBytes == 0 {
		t.Fatalf("expected stored object details, got %+v", record)
	}
	if record.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}

	info, rc, err := blobs.Get(ctx, record.Key)
	if err != nil {
		t.Fatalf("get bundle: %v", err)
	}
	payload, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	var bundle domain.Verification
	if err := json.Unmarshal(payload, &bundle); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if bundle.Product.ID != 1 || bundle.Product.Name != "Alpine Jacket" {
		t.Fatalf("unexpected product in bundle: %+v", bundle.Product)
	}
	if !bundle.ChainIntact {
		t.Fatalf("expected intact chain verdict")
	}
	if len(bundle.History) != 1 || bundle.History[0].Action != "Product Manufactured" {
		t.Fatalf("unexpected history in bundle: %+v", bundle.History)
	}
	if info.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", info.ContentType)
	}
	if info.Metadata["product_id"] != "1" || info.Metadata["sequence"] != "1" {
		t.Fatalf("unexpected metadata %v", info.Metadata)
	}
	if info.Metadata["requested_by"] != "ops@example.com" {
		t.Fatalf("expected requester metadata, got %v", info.Metadata)
	}
}

func TestExportKeepsFirstCapture(t *testing.T) {
	svc := newRegistry(t)
	blobs := blob.NewMemory()
	ctx := context.Background()

	first, err := Export(ctx, svc, blobs, 1, "ops@example.com")
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, err := Export(ctx, svc, blobs, 1, "ops@example.com")
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if second.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", second.Status)
	}
	if second.Note == "" {
		t.Fatalf("expected duplicate-capture note")
	}
	if second.Key != first.Key || second.ETag != first.ETag {
		t.Fatalf("expected first capture to win: %+v vs %+v", first, second)
	}
	infos, err := blobs.List(ctx, "products/1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected a single bundle, got %d", len(infos))
	}
}

func TestExportFollowsChainSequence(t *testing.T) {
	svc := newRegistry(t)
	blobs := blob.NewMemory()
	ctx := context.Background()

	if _, err := Export(ctx, svc, blobs, 1, ""); err != nil {
		t.Fatalf("export at seq 1: %v", err)
	}
	if _, _, err := svc.AuthorizeParticipant(ctx, "admin", "globex", "distributor"); err != nil {
		t.Fatalf("authorize globex: %v", err)
	}
	if _, _, err := svc.TransferProduct(ctx, "acme", 1, domain.TransferInput{
		To:       "globex",
		Location: "Rotterdam",
		Action:   "Shipped",
		Notes:    "container 114",
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	record, err := Export(ctx, svc, blobs, 1, "")
	if err != nil {
		t.Fatalf("export at seq 2: %v", err)
	}
	if record.Key != "products/1/bundle-000002.json" || record.Sequence != 2 {
		t.Fatalf("unexpected key %q seq %d", record.Key, record.Sequence)
	}
	infos, err := blobs.List(ctx, "products/1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected two bundles, got %d", len(infos))
	}
	if infos[0].Key != "products/1/bundle-000001.json" || infos[1].Key != "products/1/bundle-000002.json" {
		t.Fatalf("unexpected listing order: %+v", infos)
	}
}

func TestExportUnknownProduct(t *testing.T) {
	svc := core.NewInMemoryService("admin")
	blobs := blob.NewMemory()

	record, err := Export(context.Background(), svc, blobs, 42, "")
	if err == nil {
		t.Fatalf("expected error for unknown product")
	}
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) || notFound.ProductID != 42 {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if record.Status != StatusFailed || record.Error == "" {
		t.Fatalf("expected failed record, got %+v", record)
	}
}

func TestExportToMockS3(t *testing.T) {
	svc := newRegistry(t)
	blobs := blob.NewMockS3ForTests()
	ctx := context.Background()

	record, err := Export(ctx, svc, blobs, 1, "ops@example.com")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if record.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", record.Status, record.Error)
	}
	info, err := blobs.Head(ctx, record.Key)
	if err != nil {
		t.Fatalf("head bundle: %v", err)
	}
	if info.Size != record.SizeBytes {
		t.Fatalf("size mismatch: %d vs %d", info.Size, record.SizeBytes)
	}
}
