package upload

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"landRegistry/pkg/docstore"
)

// Storage is the content storage the uploader writes to.
type Storage interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, progress docstore.ProgressFunc) (*docstore.Manifest, error)
}

// Uploader starts uploads and keeps track of their sessions.
type Uploader struct {
	storage Storage

	mu        sync.RWMutex
	sessions  map[string]*Session
	retention time.Duration
}

// NewUploader returns an Uploader writing to storage.
func NewUploader(storage Storage) *Uploader {
	return &Uploader{
		storage:  storage,
		sessions: make(map[string]*Session),
	}
}

// Upload starts an asynchronous upload of r. If r implements io.Closer it is
// closed when the upload ends. Failures are logged and recorded on the
// session; they are never returned to the caller.
func (u *Uploader) Upload(ctx context.Context, name string, r io.Reader, size int64) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := newSession(uuid.NewString(), name, size, cancel)

	u.mu.Lock()
	u.pruneLocked(time.Now())
	u.sessions[s.ID] = s
	u.mu.Unlock()

	go u.run(ctx, s, r)
	return s
}

func (u *Uploader) run(ctx context.Context, s *Session, r io.Reader) {
	defer s.cancel()
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	m, err := u.storage.Put(ctx, s.Name, r, s.Size, func(done, total int64) {
		if total <= 0 {
			return
		}
		// 100 is reserved for a stored manifest
		pct := int(done * 100 / total)
		if pct > 99 {
			pct = 99
		}
		s.setProgress(pct)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"session": s.ID,
			"file":    s.Name,
			"error":   err,
		}).Error("upload failed")
		s.finish("", fmt.Errorf("upload %s: %w", s.Name, err))
		return
	}

	logrus.WithFields(logrus.Fields{
		"session": s.ID,
		"file":    s.Name,
		"cid":     m.CID,
	}).Info("upload complete")
	s.finish(m.CID, nil)
}

// Session looks up a session by id.
func (u *Uploader) Session(id string) (*Session, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	s, ok := u.sessions[id]
	return s, ok
}

// SetRetention sets how long finished sessions stay registered. Zero keeps
// them until Forget.
func (u *Uploader) SetRetention(d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.retention = d
}

// Prune drops sessions that finished longer than the retention ago and
// returns how many were dropped.
func (u *Uploader) Prune() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pruneLocked(time.Now())
}

func (u *Uploader) pruneLocked(now time.Time) int {
	if u.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-u.retention)
	n := 0
	for id, s := range u.sessions {
		if s.finishedBefore(cutoff) {
			delete(u.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of registered sessions.
func (u *Uploader) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.sessions)
}

// Forget drops a finished session from the registry.
func (u *Uploader) Forget(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.sessions, id)
}
