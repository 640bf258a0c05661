package audit

import "sync/atomic"

// latch is a write-once string cell. The first Set wins.
type latch struct {
	v atomic.Pointer[string]
}

// Set stores s if nothing has been stored yet and reports whether it did.
func (l *latch) Set(s string) bool {
	return l.v.CompareAndSwap(nil, &s)
}

// Get returns the stored value, or "" and false.
func (l *latch) Get() (string, bool) {
	p := l.v.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}
