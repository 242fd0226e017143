package expiry

import "sync"

// Readiness is the host UI's "ready to show alerts" signal. Subscribers are
// called on every change, outside the lock.
type Readiness struct {
	mu     sync.Mutex
	ready  bool
	nextID int
	subs   map[int]func(bool)
}

func NewReadiness(ready bool) *Readiness {
	return &Readiness{
		ready: ready,
		subs:  make(map[int]func(bool)),
	}
}

// Set updates the value. Setting the current value again is a no-op.
func (r *Readiness) Set(ready bool) {
	r.mu.Lock()
	if r.ready == ready {
		r.mu.Unlock()
		return
	}
	r.ready = ready
	subs := make([]func(bool), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(ready)
	}
}

func (r *Readiness) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Subscribe registers fn and returns a function that removes it.
func (r *Readiness) Subscribe(fn func(bool)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}
