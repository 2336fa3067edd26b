package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.json")
	content := `[
  {"symbol": "EURUSD", "price": 1.085, "change_percent": 0.8, "high": 1.0958, "low": 1.0742, "volume": 1000000},
  {"symbol": "GBPUSD", "price": 1.27, "change_percent": 0.1, "high": 1.2827, "low": 1.2573, "volume": 1000000}
]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	snaps, err := readSnapshots(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Symbol != "EURUSD" || snaps[0].ChangePercent != 0.8 {
		t.Errorf("unexpected first snapshot: %+v", snaps[0])
	}
}

func TestReadSnapshots_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := readSnapshots(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"symbol":`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readSnapshots(bad); err == nil {
		t.Error("expected error for malformed file")
	}
}
