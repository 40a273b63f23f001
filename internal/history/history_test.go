package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dygy/gape-select/internal/effect"
	apperrors "github.com/dygy/gape-select/internal/errors"
)

func TestStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Run("EmptyHasNoLatest", func(t *testing.T) {
		if _, err := store.Latest(); !errors.Is(err, apperrors.ErrNoHistory) {
			t.Errorf("expected ErrNoHistory, got %v", err)
		}
	})

	t.Run("SaveAssignsVersions", func(t *testing.T) {
		first := &Record{Effect: effect.Delay, Preset: "Large Room", PresetNo: 1, Output: effect.Output{1, 255, 128, 0}}
		second := &Record{Effect: effect.Equalizer, Fields: map[string]string{"low": "0", "mid": "0", "high": "0"}, Output: effect.Output{3, 10, 10, 10}}

		if err := store.Save(first); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := store.Save(second); err != nil {
			t.Fatalf("save: %v", err)
		}
		if first.Version != 1 || second.Version != 2 {
			t.Errorf("versions = %d, %d", first.Version, second.Version)
		}

		latest, err := store.Latest()
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if latest.Effect != effect.Equalizer || latest.Output != (effect.Output{3, 10, 10, 10}) {
			t.Errorf("latest = %+v", latest)
		}
		if latest.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set")
		}

		if _, err := os.Stat(filepath.Join(store.Dir(), "latest.json")); err != nil {
			t.Errorf("latest.json missing: %v", err)
		}
	})

	t.Run("SkipsForeignFiles", func(t *testing.T) {
		os.WriteFile(filepath.Join(store.Dir(), "submission_v999.json"), []byte("{not json"), 0644)
		os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("hello"), 0644)

		records, err := store.List()
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := store.Clear(); err != nil {
			t.Fatalf("clear: %v", err)
		}
		records, err := store.List()
		if err != nil || len(records) != 0 {
			t.Errorf("after clear: %v, %v", records, err)
		}

		rec := &Record{Effect: effect.Compressor, Output: effect.Output{2, 188, 2, 0}}
		if err := store.Save(rec); err != nil {
			t.Fatalf("save after clear: %v", err)
		}
		if rec.Version != 1 {
			t.Errorf("version after clear = %d, want 1", rec.Version)
		}
	})
}
