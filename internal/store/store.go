// Package store persists license records as a single JSON document on disk.
// Every operation re-reads current on-disk state and every mutation is a
// read-modify-write under the store lock, written back with an atomic
// replace. This trades throughput for correctness under low request volume:
// a crash mid-write never leaves a corrupted document, and restarts (or
// sibling processes) observe a consistent view.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"arklicense/internal/license"
)

// Store is a durable mapping from license key to license record.
type Store struct {
	path    string
	mu      sync.Mutex
	logger  *slog.Logger
	onWrite func()
}

// ErrPersist wraps failures to write the store document back to disk.
// Callers must abort the operation rather than report success for a
// mutation that did not survive to durable storage.
var ErrPersist = errors.New("failed to persist license store")

// New creates a store backed by the JSON document at path.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger.With(slog.String("component", "store")),
	}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// SetWriteHook registers fn to run after every successful document write.
// Used to count store writes; fn must not call back into the store.
func (s *Store) SetWriteHook(fn func()) {
	s.onWrite = fn
}

// Get returns the record for key, re-read from disk.
func (s *Store) Get(key string) (license.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	rec, ok := records[key]
	if !ok {
		return license.Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

// List returns all license keys in lexical order.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Count returns the number of stored license keys.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.load()), nil
}

// Mutate runs fn against the current on-disk record for key inside the store
// lock. fn may mutate rec in place; when it reports a change the full
// document is written back atomically before Mutate returns. When fn returns
// an error nothing is persisted and the error propagates unchanged. The
// record as fn left it is returned either way.
func (s *Store) Mutate(key string, fn func(rec *license.Record, exists bool) (changed bool, err error)) (license.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	rec, exists := records[key]
	if exists {
		rec.Normalize()
	}

	changed, err := fn(&rec, exists)
	if err != nil {
		return rec.Clone(), err
	}

	if changed {
		records[key] = rec.Clone()
		if err := s.save(records); err != nil {
			return rec.Clone(), err
		}
	}

	return rec.Clone(), nil
}

// UpsertFields replaces the scalar fields of the record wholesale, creating
// it when absent. The machine list is preserved but renormalized and
// de-duplicated; when the new seat count is below the bound machine count
// the earliest bindings win and the rest are dropped.
func (s *Store) UpsertFields(key string, active bool, plan string, expiresUnix int64, seats int) (license.Record, error) {
	return s.Mutate(key, func(rec *license.Record, exists bool) (bool, error) {
		rec.Active = active
		rec.Plan = plan
		rec.ExpiresUnix = expiresUnix
		rec.Seats = seats
		rec.Machines, _ = license.RepairMachines(rec.Machines)
		rec.Normalize()
		if len(rec.Machines) > rec.Seats {
			rec.Machines = rec.Machines[:rec.Seats]
		}
		return true, nil
	})
}

// AppendMachine binds a canonical fingerprint to the record, enforcing the
// seat limit.
func (s *Store) AppendMachine(key, fingerprint string) (license.Record, error) {
	return s.Mutate(key, func(rec *license.Record, exists bool) (bool, error) {
		if !exists {
			return false, license.ErrNotFound
		}
		return license.Bind(rec, fingerprint)
	})
}

// RemoveMachine removes any entry matching the canonical form of machine
// from the record's machine list. Removing a machine that is not bound is a
// no-op success; an unknown key is an error.
func (s *Store) RemoveMachine(key, machine string) (license.Record, error) {
	target := license.NormalizeMachineID(machine)
	return s.Mutate(key, func(rec *license.Record, exists bool) (bool, error) {
		if !exists {
			return false, license.ErrNotFound
		}

		repaired, changed := license.RepairMachines(rec.Machines)
		kept := repaired[:0]
		for _, m := range repaired {
			if m == target {
				changed = true
				continue
			}
			kept = append(kept, m)
		}
		rec.Machines = kept
		return changed, nil
	})
}

// load reads the full document from disk. A missing or malformed file yields
// an empty store: corruption is an operational concern, never a request
// error, so the service stays available.
func (s *Store) load() map[string]license.Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read license store, treating as empty",
				slog.String("path", s.path),
				slog.String("error", err.Error()))
		}
		return map[string]license.Record{}
	}

	var records map[string]license.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("license store is malformed, treating as empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return map[string]license.Record{}
	}
	if records == nil {
		records = map[string]license.Record{}
	}

	for key, rec := range records {
		rec.Normalize()
		records[key] = rec
	}
	return records
}

// save writes the full document atomically: marshal to a temp file in the
// same directory, fsync, then rename over the live document.
func (s *Store) save(records map[string]license.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	if s.onWrite != nil {
		s.onWrite()
	}
	return nil
}
