// Package lock serializes extraction passes per contact. An extraction reads
// a snapshot of the contact's memories and writes back a result computed from
// it, so two passes for the same contact must not overlap.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cubomagico/memoria/internal/domain"
)

var ErrLockTimeout = errors.New("contact lock not acquired before deadline")

// ContactLocker hands out exclusive per-contact locks. Acquire blocks until
// the lock is held or ctx is done; the returned func releases it.
type ContactLocker interface {
	Acquire(ctx context.Context, scope domain.ContactScope) (release func(), err error)
}

func key(scope domain.ContactScope) string {
	return fmt.Sprintf("lock:contact:%s:%s:%s", scope.TenantID, scope.ProjectID, scope.ContactID)
}

// LocalLocker is an in-process ContactLocker for single-replica deployments
// and tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Acquire(ctx context.Context, scope domain.ContactScope) (func(), error) {
	k := key(scope)

	l.mu.Lock()
	s, ok := l.slots[k]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[k] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.leave(k, s)
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.leave(k, s)
		})
	}, nil
}

func (l *LocalLocker) leave(k string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, k)
	}
}

// held reports how many contacts have a holder or waiters.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
