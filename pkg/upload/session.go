// Package upload 提供表单使用的文件上传适配器
//
// 对外暴露三个信号:
//   - Progress: 上传进度 0-100
//   - Hash: 上传完成后的文档哈希（CID）
//   - Err: 上传失败原因（表单不感知，只记录日志）
//
// 主要组件:
//   - Uploader: 启动异步上传并登记会话
//   - Session: 单个文件的上传会话
//   - Slot: 表单中的一个文件输入框，重新选择文件时取消旧会话
package upload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Session is the transient state of one file upload.
type Session struct {
	ID        string
	Name      string
	Size      int64
	StartedAt time.Time

	progress atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}

	mu         sync.RWMutex
	hash       string
	err        error
	watchers   []chan int
	finishedAt time.Time
}

func newSession(id, name string, size int64, cancel context.CancelFunc) *Session {
	return &Session{
		ID:        id,
		Name:      name,
		Size:      size,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Progress returns the upload progress in percent.
func (s *Session) Progress() int {
	return int(s.progress.Load())
}

// Hash returns the document hash once the upload has completed, or "".
func (s *Session) Hash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hash
}

// Err returns the upload failure, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed when the upload finishes, successfully or not.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Completed reports whether the upload finished with a hash.
func (s *Session) Completed() bool {
	select {
	case <-s.done:
		return s.Hash() != ""
	default:
		return false
	}
}

// Wait blocks until the upload finishes and returns its hash.
func (s *Session) Wait(ctx context.Context) (string, error) {
	select {
	case <-s.done:
		return s.Hash(), s.Err()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// finishedBefore reports whether the upload ended before t.
func (s *Session) finishedBefore(t time.Time) bool {
	select {
	case <-s.done:
	default:
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finishedAt.Before(t)
}

// Cancel stops an in-flight upload.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Watch returns a channel that receives every progress change. The channel
// is closed when the upload finishes. Slow readers miss intermediate values
// but always see the final one.
func (s *Session) Watch() <-chan int {
	ch := make(chan int, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		ch <- s.Progress()
		close(ch)
		return ch
	default:
	}
	s.watchers = append(s.watchers, ch)
	return ch
}

func (s *Session) setProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	for {
		old := s.progress.Load()
		if int32(p) <= old {
			return
		}
		if s.progress.CompareAndSwap(old, int32(p)) {
			break
		}
	}
	s.notify(p)
}

func (s *Session) notify(p int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers {
		// keep only the latest value for slow readers
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}

func (s *Session) finish(hash string, err error) {
	if err == nil {
		s.setProgress(100)
	}
	s.mu.Lock()
	s.hash = hash
	s.err = err
	s.finishedAt = time.Now()
	watchers := s.watchers
	s.watchers = nil
	close(s.done)
	s.mu.Unlock()

	for _, ch := range watchers {
		close(ch)
	}
}
