package out_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	deviceout "breathkit/internal/modules/device/adapter/out"
)

func writeDriversJSON(t *testing.T, base, raw string) {
	t.Helper()
	dir := filepath.Join(base, "drivers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir drivers: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "drivers.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write drivers.json: %v", err)
	}
}

func TestFileManifestStoreLoadMissingReturnsEmpty(t *testing.T) {
	t.Parallel()
	store := deviceout.NewFileManifestStore(t.TempDir())
	manifests, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 0 {
		t.Fatalf("expected empty manifests, got %d", len(manifests))
	}
}

func TestFileManifestStoreResolvesRelativeBinary(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	writeDriversJSON(t, base, `[
  {
    "name": "simulated",
    "version": "1.0.0",
    "binary": "drivers/simulated/simulated-driver",
    "sha256": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
    "enabled": true,
    "raw_hid": true
  }
]`)
	manifests, err := deviceout.NewFileManifestStore(base).Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("expected one manifest, got %d", len(manifests))
	}
	want := filepath.Join(base, "drivers", "simulated", "simulated-driver")
	if manifests[0].Binary != want {
		t.Fatalf("expected binary %s, got %s", want, manifests[0].Binary)
	}
	if !manifests[0].RawHID {
		t.Fatalf("expected raw_hid to be decoded")
	}
}

func TestFileManifestStoreRejectsUnknownField(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	writeDriversJSON(t, base, `[
  {
    "name": "simulated",
    "version": "1.0.0",
    "binary": "/tmp/simulated-driver",
    "sha256": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
    "enabled": true,
    "capabilities": ["command"]
  }
]`)
	if _, err := deviceout.NewFileManifestStore(base).Load(context.Background()); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
