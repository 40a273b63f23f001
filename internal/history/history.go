package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dygy/gape-select/internal/effect"
	apperrors "github.com/dygy/gape-select/internal/errors"
)

const latestFile = "latest.json"

// Record is one successful submission
type Record struct {
	Version   int               `json:"version"`
	Effect    effect.Effect     `json:"effect"`
	Preset    string            `json:"preset,omitempty"`
	PresetNo  int               `json:"preset_number,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Output    effect.Output     `json:"output"`
	Sinks     []string          `json:"sinks,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store keeps submission records as versioned JSON files in a directory
type Store struct {
	dir string
	mu  sync.Mutex
}

// Open creates the history directory if needed
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory records are written to
func (s *Store) Dir() string {
	return s.dir
}

// Save assigns the next version to rec and writes it
func (s *Store) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	records, err := s.List()
	if err != nil {
		return err
	}
	rec.Version = 1
	if len(records) > 0 {
		rec.Version = records[len(records)-1].Version + 1
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	filename := fmt.Sprintf("submission_v%03d.json", rec.Version)
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	// Also keep a copy under a fixed name for other tools
	if err := os.WriteFile(filepath.Join(s.dir, latestFile), data, 0644); err != nil {
		return fmt.Errorf("write latest: %w", err)
	}
	return nil
}

// Latest returns the most recent record, or ErrNoHistory
func (s *Store) Latest() (*Record, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.ErrNoHistory
	}
	return records[len(records)-1], nil
}

// List returns all records sorted by version. Unreadable files are skipped.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history dir: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "submission_v") || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Version < records[j].Version
	})
	return records, nil
}

// Clear removes every record
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.dir)
}
