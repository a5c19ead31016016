package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mandate-run/mandate/internal/merrors"
)

// Store persists Conversations as one JSON document per session, at
// conversations/<session-id>.json under the given root, and tracks which
// session is currently active.
type Store struct {
	mu      sync.Mutex
	root    string
	current *Conversation
}

// NewStore opens a Store rooted at conversationsDir, starting a fresh
// session.
func NewStore(conversationsDir string) *Store {
	return &Store{root: conversationsDir, current: New()}
}

func (s *Store) pathFor(sessionID string) string {
	return filepath.Join(s.root, sessionID+".json")
}

// Current returns the active conversation.
func (s *Store) Current() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Save atomically flushes the active conversation to disk, unless it is
// empty (an empty session is never persisted).
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(s.current)
}

func (s *Store) saveLocked(c *Conversation) error {
	if c == nil || c.IsEmpty() {
		return nil
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return merrors.Wrap(err, merrors.CodeIoFailure, "creating conversations directory")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return merrors.Wrap(err, merrors.CodeIoFailure, "serializing conversation")
	}

	tmp := s.pathFor(c.SessionID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return merrors.Wrap(err, merrors.CodeIoFailure, "writing conversation")
	}
	if err := os.Rename(tmp, s.pathFor(c.SessionID)); err != nil {
		return merrors.Wrap(err, merrors.CodeIoFailure, "finalizing conversation write")
	}
	return nil
}

// StartNew atomically flushes the prior session (if non-empty) and begins a
// fresh one.
func (s *Store) StartNew() (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(s.current); err != nil {
		return nil, err
	}
	s.current = New()
	return s.current, nil
}

// Load reads the named session from disk and makes it the active
// conversation, flushing the previously active one first.
func (s *Store) Load(sessionID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(s.current); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.pathFor(sessionID))
	if err != nil {
		return nil, merrors.Wrap(err, merrors.CodeIoFailure, "reading session "+sessionID)
	}
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, merrors.Wrap(err, merrors.CodeParse, "parsing session "+sessionID)
	}
	s.current = &c
	return s.current, nil
}

// SessionSummary is the enumerable metadata for a stored session.
type SessionSummary struct {
	SessionID    string
	LastActivity int64 // unix nanos, for ordering
}

// List enumerates stored sessions ordered by last-modified, newest first.
func (s *Store) List() ([]SessionSummary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, merrors.Wrap(err, merrors.CodeIoFailure, "listing sessions")
	}

	var out []SessionSummary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, SessionSummary{
			SessionID:    entry.Name()[:len(entry.Name())-len(".json")],
			LastActivity: info.ModTime().UnixNano(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity > out[j].LastActivity
	})
	return out, nil
}

// Teardown flushes the active conversation on graceful shutdown.
func (s *Store) Teardown() error {
	return s.Save()
}
