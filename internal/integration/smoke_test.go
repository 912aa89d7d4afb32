package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"provcore/internal/archive"
	"provcore/internal/blob"
	"provcore/internal/core"
	"provcore/internal/infra/persistence"
	"provcore/pkg/domain"
)

// TestRegistrySmoke drives one register/transfer/verify/archive cycle
// through each storage and blob backend that runs in process. Scope is
// deliberately small so the test stays a fast CI health check.
func TestRegistrySmoke(t *testing.T) {
	ctx := context.Background()

	storeVariants := []struct {
		name string
		cfg  func(t *testing.T) persistence.Config
	}{
		{
			name: "memory-store",
			cfg: func(_ *testing.T) persistence.Config {
				return persistence.Config{Driver: persistence.DriverMemory}
			},
		},
		{
			name: "sqlite-store",
			cfg: func(t *testing.T) persistence.Config {
				return persistence.Config{
					Driver: persistence.DriverSQLite,
					DSN:    filepath.Join(t.TempDir(), "registry.db"),
				}
			},
		},
	}

	for _, sv := range storeVariants {
		t.Run(sv.name, func(t *testing.T) {
			dispatcher := core.NewDispatcher()
			store, err := persistence.Open(sv.cfg(t), "admin", core.NewDefaultRulesEngine(), core.WithEventSink(dispatcher))
			if err != nil {
				t.Fatalf("open store: %v", err)
			}
			if closer, ok := store.(io.Closer); ok {
				t.Cleanup(func() { _ = closer.Close() })
			}

			metricsRecorder := core.NewExpvarMetricsRecorder("")
			var traceBuffer bytes.Buffer
			tracer := core.NewJSONTracer(&traceBuffer)
			service := core.NewService(store,
				core.WithDispatcher(dispatcher),
				core.WithMetricsRecorder(metricsRecorder),
				core.WithTracer(tracer),
			)

			var (
				mu     sync.Mutex
				events []domain.Event
			)
			cancel := service.Subscribe(func(event domain.Event) {
				mu.Lock()
				events = append(events, event)
				mu.Unlock()
			})
			defer cancel()

			if _, _, err := service.AuthorizeParticipant(ctx, "admin", "acme", domain.RoleManufacturer); err != nil {
				t.Fatalf("authorize acme: %v", err)
			}
			if _, _, err := service.AuthorizeParticipant(ctx, "admin", "globex", domain.RoleDistributor); err != nil {
				t.Fatalf("authorize globex: %v", err)
			}

			product, res, err := service.RegisterProduct(ctx, "acme", domain.ProductInput{
				Name:         "Alpine Jacket",
				MaterialType: "recycled polyester",
				Origin:       "Hanoi",
				Price:        129.50,
			})
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			if res.HasBlocking() {
				t.Fatalf("unexpected blocking violations: %+v", res.Violations)
			}

			if _, _, err := service.TransferProduct(ctx, "acme", product.ID, domain.TransferInput{
				To: "globex", Location: "Rotterdam", Action: "Shipped",
			}); err != nil {
				t.Fatalf("transfer: %v", err)
			}

			verification, err := service.VerifyProduct(ctx, product.ID)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if !verification.ChainIntact {
				t.Fatalf("chain not intact: %+v", verification)
			}
			if len(verification.History) != 2 {
				t.Fatalf("history length = %d, want 2", len(verification.History))
			}
			if verification.History[1].PrevHash != verification.History[0].Hash {
				t.Fatalf("steps not linked: %+v", verification.History)
			}

			stored, err := store.FindProduct(ctx, product.ID)
			if err != nil {
				t.Fatalf("find product: %v", err)
			}
			if stored.CurrentOwner != "globex" || stored.Manufacturer != "acme" {
				t.Fatalf("stored product = %+v", stored)
			}

			mu.Lock()
			var productEvents []domain.EventType
			for _, event := range events {
				if event.ProductID == product.ID {
					productEvents = append(productEvents, event.Type)
				}
			}
			mu.Unlock()
			wantOrder := []domain.EventType{
				domain.EventProductRegistered,
				domain.EventSupplyChainStepAdded,
				domain.EventProductTransferred,
				domain.EventSupplyChainStepAdded,
			}
			if len(productEvents) != len(wantOrder) {
				t.Fatalf("product events = %v, want %v", productEvents, wantOrder)
			}
			for i, want := range wantOrder {
				if productEvents[i] != want {
					t.Fatalf("event[%d] = %s, want %s (all %v)", i, productEvents[i], want, productEvents)
				}
			}

			snapshot := metricsRecorder.Snapshot()
			if snapshot.Results["register_product"]["success"] != 1 {
				t.Fatalf("register_product metric missing: %+v", snapshot.Results)
			}
			if snapshot.Results["transfer_product"]["success"] != 1 {
				t.Fatalf("transfer_product metric missing: %+v", snapshot.Results)
			}
			if len(snapshot.DurationsMS) == 0 {
				t.Fatal("expected operation durations recorded")
			}
			if traceBuffer.Len() == 0 {
				t.Fatal("expected trace spans emitted")
			}
			foundSpan := false
			for _, entry := range tracer.Entries() {
				if entry.Operation == "register_product" && entry.Status == "success" {
					foundSpan = true
					break
				}
			}
			if !foundSpan {
				t.Fatalf("no register_product span, entries=%+v", tracer.Entries())
			}
		})
	}

	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{
			name: "memory-blob",
			open: func(_ *testing.T) blob.Store { return blob.NewMemory() },
		},
		{
			name: "filesystem-blob",
			open: func(t *testing.T) blob.Store {
				store, err := blob.NewFilesystem(t.TempDir())
				if err != nil {
					t.Fatalf("new filesystem blob: %v", err)
				}
				return store
			},
		},
		{
			name: "mock-s3-blob",
			open: func(_ *testing.T) blob.Store { return blob.NewMockS3ForTests() },
		},
	}

	for _, bv := range blobVariants {
		t.Run(bv.name, func(t *testing.T) {
			service := core.NewInMemoryService("admin")
			if _, _, err := service.AuthorizeParticipant(ctx, "admin", "acme", domain.RoleManufacturer); err != nil {
				t.Fatalf("authorize: %v", err)
			}
			product, _, err := service.RegisterProduct(ctx, "acme", domain.ProductInput{
				Name: "Trail Boot", MaterialType: "leather", Origin: "Porto",
			})
			if err != nil {
				t.Fatalf("register: %v", err)
			}

			blobs := bv.open(t)
			record, err := archive.Export(ctx, service, blobs, product.ID, "smoke")
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if record.Status != archive.StatusSucceeded || record.Key == "" {
				t.Fatalf("record = %+v", record)
			}

			_, rc, err := blobs.Get(ctx, record.Key)
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
			if bundle.Product.ID != product.ID || !bundle.ChainIntact {
				t.Fatalf("bundle = %+v", bundle)
			}

			if ok, err := blobs.Delete(ctx, record.Key); err != nil || !ok {
				t.Fatalf("delete bundle: ok=%v err=%v", ok, err)
			}
		})
	}
}
