package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/store"
)

func TestRestore_ReplacesLiveFileFromBackup(t *testing.T) {
	root := t.TempDir()
	storage := store.New(filepath.Join(root, ".claude", "playbook.json"))

	original := &models.Playbook{Stable: []models.KPT{{Name: "kpt_001", When: "a", Do: "b", Tags: []string{"x"}}}}
	if err := storage.Store(context.Background(), original); err != nil {
		t.Fatalf("seeding original: %v", err)
	}
	backupPath := filepath.Join(root, ".claude", "original.json")
	data, err := os.ReadFile(storage.Path())
	if err != nil {
		t.Fatalf("reading seeded file: %v", err)
	}
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		t.Fatalf("writing backup copy: %v", err)
	}

	replacement := &models.Playbook{Stable: []models.KPT{{Name: "kpt_001", When: "c", Do: "d", Tags: []string{"y"}}}}
	if err := storage.Store(context.Background(), replacement); err != nil {
		t.Fatalf("overwriting live: %v", err)
	}

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newRestoreCmd())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"restore", backupPath, "--root", root})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := storage.Load(context.Background())
	if err != nil {
		t.Fatalf("loading restored playbook: %v", err)
	}
	if restored.Stable[0].Do != "b" {
		t.Errorf("expected the restored KPT's body from the backup, got Do=%q", restored.Stable[0].Do)
	}
}
