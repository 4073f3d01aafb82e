package dedupe

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// compactEvery is the number of journal appends between rewrites.
const compactEvery = 1000

// seenRecord is one journal line.
type seenRecord struct {
	ID string `json:"id"`
	At int64  `json:"at"` // unix milli
}

// FileStore persists seen IDs as an append-only JSON Lines journal with
// an in-memory index. The journal is replayed on open and rewritten in
// place (via temp file and rename) every compactEvery appends so expiry
// and duplicate marks do not grow it without bound.
type FileStore struct {
	mu      sync.Mutex
	path    string
	journal *os.File
	seen    map[string]time.Time
	ttl     time.Duration
	writes  int
	nowFunc func() time.Time
}

// OpenFileStore opens or creates the journal at path and replays it.
func OpenFileStore(path string, ttl time.Duration) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	s := &FileStore{
		path:    path,
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		nowFunc: time.Now,
	}
	if err := s.replay(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	s.journal = f
	return s, nil
}

// IsNew reports whether id has not been marked, treating expired marks
// as absent.
func (s *FileStore) IsNew(_ context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.seen[id]
	if !ok {
		return true, nil
	}
	if s.expired(at) {
		delete(s.seen, id)
		return true, nil
	}
	return false, nil
}

// MarkSeen records id and appends it to the journal.
func (s *FileStore) MarkSeen(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal == nil {
		return errors.New("journal closed")
	}
	now := s.nowFunc()
	s.seen[id] = now

	if err := json.NewEncoder(s.journal).Encode(seenRecord{ID: id, At: now.UnixMilli()}); err != nil {
		return fmt.Errorf("appending journal record: %w", err)
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		// Best effort; the journal stays valid if the rewrite fails.
		_ = s.compactLocked()
	}
	return nil
}

// Len returns the number of live entries.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Close flushes and closes the journal.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func (s *FileStore) expired(at time.Time) bool {
	return s.ttl > 0 && s.nowFunc().Sub(at) > s.ttl
}

// replay loads journal lines into the index, skipping malformed lines
// so a torn final write does not poison the store.
func (s *FileStore) replay() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening journal for replay: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r seenRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.ID == "" {
			continue
		}
		at := time.UnixMilli(r.At)
		if s.expired(at) {
			continue
		}
		s.seen[r.ID] = at
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("replaying journal: %w", err)
	}
	return nil
}

// compactLocked rewrites the journal with only live entries.
func (s *FileStore) compactLocked() error {
	for id, at := range s.seen {
		if s.expired(at) {
			delete(s.seen, id)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for id, at := range s.seen {
		if err := enc.Encode(seenRecord{ID: id, At: at.UnixMilli()}); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}

	// Rename first: if it fails the old journal handle is still valid.
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	_ = s.journal.Close()
	j, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.journal = nil
		return err
	}
	s.journal = j
	return nil
}
