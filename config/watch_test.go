package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHotReloader_DeliversValidChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(minimalConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	reloaded := make(chan AppConfig, 1)
	h, err := NewHotReloader(path, 10*time.Millisecond, func(cfg AppConfig) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("create reloader: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// Let the watcher settle before the write.
	time.Sleep(100 * time.Millisecond)

	updated := minimalConfig + `
analysis:
  confirmations: 5
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("update config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Analysis.Confirmations != 5 {
			t.Errorf("reloaded confirmations = %d, want 5", cfg.Analysis.Confirmations)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestHotReloader_IgnoresInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(minimalConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	reloaded := make(chan AppConfig, 1)
	h, err := NewHotReloader(path, 10*time.Millisecond, func(cfg AppConfig) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("create reloader: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	// shortMAPeriod >= longMAPeriod fails validation; the callback must not
	// fire for it.
	broken := minimalConfig + `
analysis:
  shortMAPeriod: 50
  longMAPeriod: 50
`
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatalf("update config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid edit was delivered: %+v", cfg.Analysis)
	case <-time.After(500 * time.Millisecond):
	}
}
