// Package activeindex implements load/save of the shadow index of pending
// approvals (spec §3, §4.5), keyed by approval number, with a cutoff
// timestamp invariant (I4).
package activeindex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

// Store owns the active-index JSON document exclusively (spec §3: "The
// active index exclusively owns ApprovalRecord state").
type Store struct {
	path string
	mu   sync.RWMutex
	doc  *domain.ActiveIndexDocument
}

// Open loads path if present, seeding an empty index with the given cutoff
// if not. cutoff is only used on first creation; an existing file's
// metadata.cutoffTimestamp is authoritative thereafter.
func Open(path string, cutoff int64) (*Store, error) {
	s := &Store{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.doc = emptyDocument(cutoff)
			return s, nil
		}
		return nil, domain.NewStoreError(err, "read active index %s", path)
	}
	doc := &domain.ActiveIndexDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, domain.NewStoreError(err, "parse active index %s", path)
	}
	if doc.Approvals == nil {
		doc.Approvals = map[string]*domain.ApprovalRecord{}
	}
	s.doc = doc
	return s, nil
}

func emptyDocument(cutoff int64) *domain.ActiveIndexDocument {
	return &domain.ActiveIndexDocument{
		Metadata: domain.ActiveIndexMetadata{
			CutoffTimestamp: cutoff,
			CutoffDate:      time.Unix(cutoff, 0).UTC().Format(time.RFC3339),
		},
		Approvals: map[string]*domain.ApprovalRecord{},
	}
}

// Load returns a deep copy of the current document.
func (s *Store) Load() *domain.ActiveIndexDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Cutoff returns the configured cutoff timestamp (invariant I4).
func (s *Store) Cutoff() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Metadata.CutoffTimestamp
}

// Save persists doc as the new whole document. Every entry with ApplyTime
// below the cutoff is dropped before writing, enforcing invariant I4 at the
// single choke point all writers pass through. Callers MUST hold the sync
// lock before calling Save (spec §4.6).
func (s *Store) Save(doc *domain.ActiveIndexDocument) error {
	cutoff := doc.Metadata.CutoffTimestamp
	for spNo, rec := range doc.Approvals {
		if rec.ApplyTime < cutoff {
			delete(doc.Approvals, spNo)
		}
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return domain.NewStoreError(err, "marshal active index")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return domain.NewStoreError(err, "mkdir for active index")
	}
	if err := renameio.WriteFile(s.path, raw, 0o644); err != nil {
		return domain.NewStoreError(err, "write active index %s", s.path)
	}

	s.mu.Lock()
	s.doc = doc.Clone()
	s.mu.Unlock()
	return nil
}
