package provision

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadRecord(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "extern", cacheFile)

	now := time.Now().Truncate(time.Second)
	rec := &record{}
	rec.set("cnl", &recordEntry{
		URL:      "https://github.com/johnmcfarlane/cnl.git",
		Ref:      "v1.1.7",
		ClonedAt: now,
	})

	if err := saveRecord(path, rec); err != nil {
		t.Fatalf("saveRecord failed: %v", err)
	}

	loaded, err := loadRecord(path)
	if err != nil {
		t.Fatalf("loadRecord failed: %v", err)
	}
	entry, ok := loaded.get("cnl")
	if !ok {
		t.Fatal("entry for cnl missing")
	}
	if entry.Ref != "v1.1.7" {
		t.Errorf("Ref mismatch: got %q, want %q", entry.Ref, "v1.1.7")
	}
	if !entry.ClonedAt.Equal(now) {
		t.Errorf("ClonedAt mismatch: got %v, want %v", entry.ClonedAt, now)
	}
	if _, ok := loaded.get("sdl"); ok {
		t.Error("unexpected entry for sdl")
	}
}

func TestLoadRecord_NotExist(t *testing.T) {
	_, err := loadRecord(filepath.Join(t.TempDir(), "not_exist.json"))
	if err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestLoadRecord_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), cacheFile)
	if err := os.WriteFile(path, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := loadRecord(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}
