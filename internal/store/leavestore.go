// Package store implements load/save of the single JSON leave document
// (spec §3, §4.5, §6). Every write goes through renameio, per spec §9's
// explicit instruction to fix the source's latent torn-write bug: "write
// them atomically (write temp file, rename)".
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

// Store owns the single leave JSON document. Only the sync lock holder may
// call Save (spec §4.6); Load may be called by anyone and always returns a
// deep copy (spec §4.5's "reads return a deep copy" rule, applied here too
// even though that sentence is written under the active-index section).
type Store struct {
	path string
	mu   sync.RWMutex
	doc  *domain.LeaveDocument
}

// Open loads path if it exists, or starts with an empty document.
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: domain.NewLeaveDocument()}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, domain.NewStoreError(err, "read leave store %s", path)
	}
	doc := domain.NewLeaveDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, domain.NewStoreError(err, "parse leave store %s", path)
	}
	s.doc = doc
	return s, nil
}

// Load returns a deep copy of the current document.
func (s *Store) Load() *domain.LeaveDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Save persists doc as the new whole document, stamping UpdatedAt with a
// fresh ISO timestamp (invariant I5) if the caller didn't already set one,
// and atomically replaces both the in-memory copy and the on-disk file.
// Callers MUST hold the sync lock before calling Save (spec §4.6).
func (s *Store) Save(doc *domain.LeaveDocument) error {
	if doc.UpdatedAt == "" {
		doc.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return domain.NewStoreError(err, "marshal leave store")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return domain.NewStoreError(err, "mkdir for leave store")
	}
	if err := renameio.WriteFile(s.path, raw, 0o644); err != nil {
		return domain.NewStoreError(err, "write leave store %s", s.path)
	}

	s.mu.Lock()
	s.doc = doc.Clone()
	s.mu.Unlock()
	return nil
}
