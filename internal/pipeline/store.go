package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Store persists final run states on disk, one directory per run id with a
// state.json inside. In-flight states are never persisted; the store only
// sees completed (or fatally terminated) snapshots.
type Store struct {
	baseDir string // defaults to ~/.codepilot/runs
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.codepilot/runs, creating the directory
// if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".codepilot", "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) statePath(runID string) string {
	return filepath.Join(s.baseDir, runID, "state.json")
}

// Save writes the state snapshot for its run id, replacing any previous one.
func (s *Store) Save(state *State) error {
	if state.RunID == "" {
		return fmt.Errorf("state has no run id")
	}
	if err := writeJSON(s.statePath(state.RunID), state); err != nil {
		return fmt.Errorf("write state.json: %w", err)
	}
	return nil
}

// Get reads the stored state for a run.
func (s *Store) Get(runID string) (*State, error) {
	var state State
	if err := readJSON(s.statePath(runID), &state); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, err
	}
	return &state, nil
}

// List returns all stored run states, newest first by directory mtime.
func (s *Store) List() ([]State, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}

	type stamped struct {
		state State
		mod   int64
	}
	var found []stamped
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		state, err := s.Get(entry.Name())
		if err != nil {
			continue // skip broken entries
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{state: *state, mod: info.ModTime().UnixNano()})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].mod > found[j].mod })
	states := make([]State, len(found))
	for i, f := range found {
		states[i] = f.state
	}
	return states, nil
}

// Delete removes all stored data for a run.
func (s *Store) Delete(runID string) error {
	dir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("run %s not found", runID)
	}
	return os.RemoveAll(dir)
}

// writeJSON writes v as pretty-printed JSON to path atomically: temp file in
// the same directory, then rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	tmpName = "" // prevent deferred removal
	return nil
}

// readJSON reads the JSON file at path into v.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}
