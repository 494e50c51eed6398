// Package synccursor persists the incremental poller's time-window cursor
// (spec §3 SyncCursor, §4.7). The cursor advances only on a fully
// successful incremental cycle (invariant backing P5: cursor monotonicity).
package synccursor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

// Store owns the sync-cursor JSON document.
type Store struct {
	path string
	mu   sync.Mutex
	doc  domain.SyncCursorDocument
}

// Open loads path if present, or seeds a cursor at baseline.
func Open(path string, baseline int64) (*Store, error) {
	s := &Store{path: path, doc: domain.SyncCursorDocument{LastSyncEndTimestamp: baseline}}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, domain.NewStoreError(err, "read sync cursor %s", path)
	}
	var doc domain.SyncCursorDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domain.NewStoreError(err, "parse sync cursor %s", path)
	}
	s.doc = doc
	return s, nil
}

// Get returns a copy of the current cursor document.
func (s *Store) Get() domain.SyncCursorDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Reset sets the cursor back to baseline, per the control-plane "reset
// cursor to baseline" operation (spec §6).
func (s *Store) Reset(baseline int64) error {
	s.mu.Lock()
	doc := domain.SyncCursorDocument{LastSyncEndTimestamp: baseline}
	s.mu.Unlock()
	return s.persist(doc)
}

// AdvanceSuccess moves the cursor forward to end and bumps the success
// counters. Callers MUST hold the sync lock.
func (s *Store) AdvanceSuccess(end int64, synced int) error {
	s.mu.Lock()
	doc := s.doc
	doc.LastSyncEndTimestamp = end
	doc.LastSyncTime = time.Now().UTC().Format(time.RFC3339)
	doc.TotalSynced += synced
	doc.SuccessfulSyncs++
	s.mu.Unlock()
	return s.persist(doc)
}

// RecordFailure bumps the failure counter without moving the cursor,
// satisfying P5's "on a failed cycle it is unchanged" half.
func (s *Store) RecordFailure() error {
	s.mu.Lock()
	doc := s.doc
	doc.FailedSyncs++
	s.mu.Unlock()
	return s.persist(doc)
}

func (s *Store) persist(doc domain.SyncCursorDocument) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return domain.NewStoreError(err, "marshal sync cursor")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return domain.NewStoreError(err, "mkdir for sync cursor")
	}
	if err := renameio.WriteFile(s.path, raw, 0o644); err != nil {
		return domain.NewStoreError(err, "write sync cursor %s", s.path)
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}
