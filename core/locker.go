package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultSessionLockTTL = 30 * time.Second

type MemorySessionLocker struct {
	mu    sync.Mutex
	locks map[SessionKey]time.Time
	nowFn func() time.Time
}

func NewMemorySessionLocker() *MemorySessionLocker {
	return &MemorySessionLocker{
		locks: make(map[SessionKey]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemorySessionLocker) Acquire(_ context.Context, key SessionKey, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: session locker is not configured")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultSessionLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[key]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: session lock already held for %q", key.String())
	}
	l.locks[key] = now.Add(ttl)
	return &memoryLockHandle{locker: l, key: key}, nil
}

type memoryLockHandle struct {
	locker *MemorySessionLocker
	key    SessionKey
	once   sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.key)
		h.locker.mu.Unlock()
	})
	return nil
}

var _ SessionLocker = (*MemorySessionLocker)(nil)
