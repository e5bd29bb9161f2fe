package http

import "sync"

// lazy computes a value once and memoizes both the value and the error.
type lazy[T any] struct {
	mu   sync.Mutex
	done bool
	val  T
	err  error
}

func (l *lazy[T]) get(fn func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.done {
		l.val, l.err = fn()
		l.done = true
	}
	return l.val, l.err
}
