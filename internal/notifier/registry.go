package notifier

import (
	"reflect"
	"sync"
	"sync/atomic"

	"freshshare/internal/channel"
)

// Registry is a copy-on-write set of channels. Readers get immutable
// snapshots, so a running dispatch is unaffected by concurrent Attach/Detach.
type Registry struct {
	mu   sync.Mutex // serializes writers
	list atomic.Pointer[[]channel.Channel]
}

func NewRegistry(chs ...channel.Channel) *Registry {
	r := &Registry{}
	empty := []channel.Channel{}
	r.list.Store(&empty)
	for _, ch := range chs {
		r.Attach(ch)
	}
	return r
}

func (r *Registry) load() []channel.Channel {
	if p := r.list.Load(); p != nil {
		return *p
	}
	return nil
}

// identifiable reports whether ch can be compared by identity. Channels of
// non-comparable value types are never stored, so == on members cannot panic.
func identifiable(ch channel.Channel) bool {
	return ch != nil && reflect.TypeOf(ch).Comparable()
}

func indexOf(cur []channel.Channel, ch channel.Channel) int {
	if !identifiable(ch) {
		return -1
	}
	for i, c := range cur {
		if c == ch {
			return i
		}
	}
	return -1
}

// Attach adds ch unless it is already present and returns the channel count.
// Nil and non-comparable channels are ignored.
func (r *Registry) Attach(ch channel.Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.load()
	if !identifiable(ch) || indexOf(cur, ch) >= 0 {
		return len(cur)
	}
	next := make([]channel.Channel, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, ch)
	r.list.Store(&next)
	return len(next)
}

// Detach removes ch if present and returns the channel count.
func (r *Registry) Detach(ch channel.Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.load()
	idx := indexOf(cur, ch)
	if idx < 0 {
		return len(cur)
	}
	next := without(cur, idx)
	r.list.Store(&next)
	return len(next)
}

func without(cur []channel.Channel, idx int) []channel.Channel {
	next := make([]channel.Channel, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	return append(next, cur[idx+1:]...)
}

// Replace swaps old for repl in place, keeping its position. If old is not
// attached, repl is attached at the end. If repl is already attached, old is
// only detached so repl never appears twice.
func (r *Registry) Replace(old, repl channel.Channel) int {
	if !identifiable(repl) {
		return r.Detach(old)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.load()
	oi, ri := indexOf(cur, old), indexOf(cur, repl)
	var next []channel.Channel
	switch {
	case ri >= 0 && (oi < 0 || oi == ri):
		return len(cur)
	case ri >= 0:
		next = without(cur, oi)
	case oi >= 0:
		next = append([]channel.Channel(nil), cur...)
		next[oi] = repl
	default:
		next = make([]channel.Channel, 0, len(cur)+1)
		next = append(next, cur...)
		next = append(next, repl)
	}
	r.list.Store(&next)
	return len(next)
}

// List returns a snapshot in attach order. The slice is never mutated by
// the registry; callers must not modify it either.
func (r *Registry) List() []channel.Channel { return r.load() }

func (r *Registry) Count() int { return len(r.load()) }

func (r *Registry) Lookup(name string) (channel.Channel, bool) {
	for _, c := range r.load() {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Names returns the attached channel names in order.
func (r *Registry) Names() []string {
	cur := r.load()
	out := make([]string, 0, len(cur))
	for _, c := range cur {
		out = append(out, c.Name())
	}
	return out
}
