package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweepRemovesOnlyStaleEntries(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	stale := filepath.Join(dir, "upload-old")
	fresh := filepath.Join(dir, "upload-new")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chtimes(stale, now.Add(-25*time.Hour), now.Add(-25*time.Hour)); err != nil {
		t.Fatal(err)
	}

	sweeper := NewSweeper(dir, 24*time.Hour, nil)
	sweeper.now = func() time.Time { return now }

	if err := sweeper.Sweep(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale entry survived the sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh entry removed: %v", err)
	}
}

func TestSweepRemovesStaleDirectories(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	nested := filepath.Join(dir, "chunks")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "part-0"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(nested, now.Add(-48*time.Hour), now.Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}

	sweeper := NewSweeper(dir, DefaultRetention, nil)
	sweeper.now = func() time.Time { return now }

	if err := sweeper.Sweep(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := os.Stat(nested); !os.IsNotExist(err) {
		t.Fatal("stale directory survived the sweep")
	}
}

func TestSweepMissingDirIsNotAnError(t *testing.T) {
	sweeper := NewSweeper(filepath.Join(t.TempDir(), "never-created"), time.Hour, nil)
	if err := sweeper.Sweep(); err != nil {
		t.Fatalf("sweep of missing dir: %v", err)
	}
}

func TestNewSweeperDefaultsRetention(t *testing.T) {
	sweeper := NewSweeper(t.TempDir(), 0, nil)
	if sweeper.retention != DefaultRetention {
		t.Fatalf("retention = %v", sweeper.retention)
	}
}
