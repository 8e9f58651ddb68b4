// ABOUTME: Thread-safe TTL window remembering recently published update keys
// ABOUTME: Keys inside the window are held back so bursts of edits publish once

package updates

import (
	"container/list"
	"sync"
	"time"
)

type windowEntry struct {
	published time.Time
	element   *list.Element
}

// window is a size-limited TTL set of update keys. The oldest key is
// evicted when the window is full. Expired keys are swept by a background
// goroutine until Close.
type window struct {
	mu      sync.Mutex
	keys    map[string]*windowEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

func newWindow(ttl time.Duration, maxSize int) *window {
	w := &window{
		keys:    make(map[string]*windowEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go w.sweepLoop()
	return w
}

// Held reports whether key was published less than ttl ago.
func (w *window) Held(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.keys[key]
	return ok && w.now().Sub(e.published) < w.ttl
}

// HeldKeys lists every key still inside the window.
func (w *window) HeldKeys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var out []string
	for key, e := range w.keys {
		if now.Sub(e.published) < w.ttl {
			out = append(out, key)
		}
	}
	return out
}

// Mark records that key was just published.
func (w *window) Mark(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.keys[key]; ok {
		e.published = w.now()
		w.order.MoveToBack(e.element)
		return
	}
	if len(w.keys) >= w.maxSize {
		if front := w.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			w.order.Remove(front)
			delete(w.keys, oldest)
		}
	}
	w.keys[key] = &windowEntry{published: w.now(), element: w.order.PushBack(key)}
}

// Len returns the number of remembered keys, expired or not.
func (w *window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.keys)
}

func (w *window) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.done:
			return
		}
	}
}

func (w *window) sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for key, e := range w.keys {
		if now.Sub(e.published) >= w.ttl {
			w.order.Remove(e.element)
			delete(w.keys, key)
		}
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (w *window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}
