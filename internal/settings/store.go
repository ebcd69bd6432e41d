package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"
)

// Load reads a settings document. A missing file yields an empty snapshot.
// Comments and trailing commas are accepted.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewSnapshot(), nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	snap := &Snapshot{}
	if len(data) > 0 {
		if err := json.Unmarshal(jsonc.ToJSON(data), snap); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}
	snap.ensure()
	return snap, nil
}

// rename is swapped in tests to exercise the overwrite fallback.
var rename = os.Rename

// WriteAtomic writes data to path+".0", syncs it and renames it over path.
// If the rename fails the file is overwritten in place.
func WriteAtomic(path string, data []byte) error {
	tmp := path + ".0"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp settings: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp settings: %w", err)
	}

	if err := rename(tmp, path); err != nil {
		os.Remove(tmp)
		if werr := os.WriteFile(path, data, 0o644); werr != nil {
			return fmt.Errorf("overwrite settings after rename failure (%v): %w", err, werr)
		}
	}
	return nil
}

// Store owns the live snapshot and serializes writes to disk. At most one
// write is in flight; saves requested meanwhile collapse into one more write.
// Save and Flush must be called from the goroutine exec delivers to.
type Store struct {
	path      string
	snap      *Snapshot
	exec      func(func())
	writeFile func(path string, data []byte) error
	log       *zerolog.Logger

	writing bool
	pending bool
	writes  int
	seq     uint64

	// mu serializes disk writes; written is the newest seq on disk.
	mu      sync.Mutex
	written uint64
}

// NewStore wraps snap. exec marshals write completions back onto the owning
// goroutine.
func NewStore(path string, snap *Snapshot, exec func(func()), logger *zerolog.Logger) *Store {
	if snap == nil {
		snap = NewSnapshot()
	}
	snap.ensure()
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{
		path:      path,
		snap:      snap,
		exec:      exec,
		writeFile: WriteAtomic,
		log:       logger,
	}
}

// Snapshot returns the live document.
func (s *Store) Snapshot() *Snapshot {
	return s.snap
}

// Writes returns how many writes have completed.
func (s *Store) Writes() int {
	return s.writes
}

// Save persists the current snapshot asynchronously.
func (s *Store) Save() {
	if s.path == "" {
		return
	}
	if s.writing {
		s.pending = true
		return
	}

	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("marshal settings")
		return
	}

	s.writing = true
	s.seq++
	seq := s.seq
	go func() {
		err := s.persist(seq, data)
		s.exec(func() { s.finish(err) })
	}()
}

// Flush synchronously writes the snapshot when a save is in flight or
// pending. Completions of earlier writes may never be delivered after the
// owner stops, so this is the last write on shutdown.
func (s *Store) Flush() error {
	if s.path == "" || (!s.writing && !s.pending) {
		return nil
	}
	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	s.pending = false
	s.seq++
	return s.persist(s.seq, data)
}

// persist writes data unless a newer snapshot already reached disk.
func (s *Store) persist(seq uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.written {
		return nil
	}
	if err := s.writeFile(s.path, data); err != nil {
		return err
	}
	s.written = seq
	return nil
}

func (s *Store) finish(err error) {
	s.writing = false
	s.writes++
	if err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("write settings")
	}
	if s.pending {
		s.pending = false
		s.Save()
	}
}
