package upload

import (
	"context"
	"io"
	"sync"
)

// Slot is one file input of a form. Selecting a new file discards the
// previous session.
type Slot struct {
	Label    string
	uploader *Uploader

	mu      sync.Mutex
	current *Session
}

// NewSlot returns an empty slot backed by uploader.
func NewSlot(label string, uploader *Uploader) *Slot {
	return &Slot{Label: label, uploader: uploader}
}

// Select starts uploading a newly chosen file.
func (s *Slot) Select(ctx context.Context, name string, r io.Reader, size int64) *Session {
	sess := s.uploader.Upload(ctx, name, r, size)
	s.Attach(sess)
	return sess
}

// Attach makes an existing session the slot's current one.
func (s *Slot) Attach(sess *Session) {
	s.mu.Lock()
	prev := s.current
	s.current = sess
	s.mu.Unlock()

	if prev != nil && prev != sess {
		prev.Cancel()
		s.uploader.Forget(prev.ID)
	}
}

// Session returns the current session or nil.
func (s *Slot) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Progress returns the current session's progress, or 0.
func (s *Slot) Progress() int {
	if sess := s.Session(); sess != nil {
		return sess.Progress()
	}
	return 0
}

// Hash returns the resolved document hash of the current session, or "".
func (s *Slot) Hash() string {
	sess := s.Session()
	if sess == nil || !sess.Completed() {
		return ""
	}
	return sess.Hash()
}

// Clear drops the current session.
func (s *Slot) Clear() {
	s.Attach(nil)
}
