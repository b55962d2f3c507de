package digest

import "sync"

// KeyLocks is a non-blocking single-flight table keyed by subject key.
type KeyLocks struct {
	held sync.Map
}

// NewKeyLocks creates an empty lock table.
func NewKeyLocks() *KeyLocks {
	return &KeyLocks{}
}

// TryAcquire claims key. It never waits: ok is false when another caller
// already holds it. The returned release is idempotent.
func (l *KeyLocks) TryAcquire(key string) (release func(), ok bool) {
	token := new(struct{})
	if _, loaded := l.held.LoadOrStore(key, token); loaded {
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.held.CompareAndDelete(key, token) })
	}, true
}

// Held reports whether key is currently claimed.
func (l *KeyLocks) Held(key string) bool {
	_, ok := l.held.Load(key)
	return ok
}
