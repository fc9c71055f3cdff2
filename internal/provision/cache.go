package provision

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Record layout:
//
//	extern/
//	  .cache.json    # maps dependency name → recordEntry
const cacheFile = ".cache.json"

// recordEntry remembers what was retrieved for a dependency and when it
// was last installed.
type recordEntry struct {
	URL           string    `json:"url"`
	Ref           string    `json:"ref,omitempty"`
	Requires      []string  `json:"requires,omitempty"`
	ClonedAt      time.Time `json:"cloned_at"`
	ProvisionedAt time.Time `json:"provisioned_at"`
}

type record struct {
	Deps map[string]*recordEntry `json:"deps"`
}

func (r *record) get(name string) (*recordEntry, bool) {
	entry, ok := r.Deps[name]
	return entry, ok
}

func (r *record) set(name string, entry *recordEntry) {
	if r.Deps == nil {
		r.Deps = make(map[string]*recordEntry)
	}
	r.Deps[name] = entry
}

func loadRecord(path string) (*record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func saveRecord(path string, r *record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
