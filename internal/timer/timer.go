package timer

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Timer is a pending one-shot wake-up.
type Timer struct {
	Name string    `json:"name"`
	When time.Time `json:"when"`
}

// Service registers named one-shot wake-ups. Registering a name that is
// already pending replaces it. Cancelling an unknown name is a no-op.
type Service interface {
	Register(name string, when time.Time) error
	Cancel(name string) error
	CancelPrefix(prefix string) error
	List() []Timer
}

type entry struct {
	when  time.Time
	timer *time.Timer
	gen   uint64
}

// Local is an in-process Service backed by time.AfterFunc. Fired names
// are passed to the callback given to NewLocal on their own goroutine.
type Local struct {
	mu      sync.Mutex
	pending map[string]*entry
	gen     uint64
	fire    func(name string)
	stopped bool
}

func NewLocal(fire func(name string)) *Local {
	return &Local{
		pending: make(map[string]*entry),
		fire:    fire,
	}
}

func (l *Local) Register(name string, when time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return nil
	}

	if old, ok := l.pending[name]; ok {
		old.timer.Stop()
	}
	l.gen++
	e := &entry{when: when, gen: l.gen}
	gen := l.gen
	e.timer = time.AfterFunc(time.Until(when), func() { l.expire(name, gen) })
	l.pending[name] = e
	return nil
}

// expire drops the entry unless it was replaced or cancelled after the
// underlying timer had already started firing.
func (l *Local) expire(name string, gen uint64) {
	l.mu.Lock()
	e, ok := l.pending[name]
	if !ok || e.gen != gen || l.stopped {
		l.mu.Unlock()
		return
	}
	delete(l.pending, name)
	l.mu.Unlock()

	if l.fire != nil {
		l.fire(name)
	}
}

func (l *Local) Cancel(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.pending[name]; ok {
		e.timer.Stop()
		delete(l.pending, name)
	}
	return nil
}

func (l *Local) CancelPrefix(prefix string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, e := range l.pending {
		if strings.HasPrefix(name, prefix) {
			e.timer.Stop()
			delete(l.pending, name)
		}
	}
	return nil
}

// List returns pending timers ordered by fire time.
func (l *Local) List() []Timer {
	l.mu.Lock()
	out := make([]Timer, 0, len(l.pending))
	for name, e := range l.pending {
		out = append(out, Timer{Name: name, When: e.when})
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].When.Equal(out[j].When) {
			return out[i].Name < out[j].Name
		}
		return out[i].When.Before(out[j].When)
	})
	return out
}

// Stop cancels everything and ignores later registrations.
func (l *Local) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	for name, e := range l.pending {
		e.timer.Stop()
		delete(l.pending, name)
	}
}
