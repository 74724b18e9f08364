package maintenance

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// pinState is the per-book entry of Pins. A book is either pinned by
// downloads or claimed by one removal, never both.
type pinState struct {
	pins     int
	removing chan struct{} // closed when the removal finishes
}

// Pins is a reference-counted set of book ids that must not be removed,
// plus the ids currently being removed.
type Pins struct {
	states *xsync.MapOf[string, pinState]
}

func NewPins() *Pins {
	return &Pins{states: xsync.NewMapOf[string, pinState]()}
}

// Pin adds a reference to bookID. If a removal of bookID is in flight, Pin
// waits for it to finish first. The returned func drops the reference and is
// safe to call more than once.
func (p *Pins) Pin(bookID string) func() {
	for {
		var wait chan struct{}
		p.states.Compute(bookID, func(old pinState, _ bool) (pinState, bool) {
			if old.removing != nil {
				wait = old.removing
				return old, false
			}
			old.pins++
			return old, false
		})
		if wait == nil {
			break
		}
		<-wait
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.states.Compute(bookID, func(old pinState, loaded bool) (pinState, bool) {
				if !loaded || old.pins <= 1 {
					return pinState{}, true
				}
				old.pins--
				return old, false
			})
		})
	}
}

// Claim marks bookID as being removed. It fails when the book is pinned or
// already claimed. On success the returned func ends the claim and wakes any
// Pin waiting on it.
func (p *Pins) Claim(bookID string) (release func(), ok bool) {
	done := make(chan struct{})
	p.states.Compute(bookID, func(old pinState, _ bool) (pinState, bool) {
		ok = old.pins == 0 && old.removing == nil
		if !ok {
			return old, false
		}
		return pinState{removing: done}, false
	})
	if !ok {
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.states.Compute(bookID, func(old pinState, loaded bool) (pinState, bool) {
				if !loaded || old.removing != done {
					return old, !loaded
				}
				return pinState{}, true
			})
			close(done)
		})
	}, true
}

// IsPinned reports whether bookID has at least one reference.
func (p *Pins) IsPinned(bookID string) bool {
	s, ok := p.states.Load(bookID)
	return ok && s.pins > 0
}
