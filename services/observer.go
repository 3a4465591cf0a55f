package services

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Observer receives game events after the state change behind them has been
// persisted. OnEvent runs on the goroutine of the operation that emitted the
// event, so slow observers should be wrapped in an AsyncObserver.
type Observer interface {
	OnEvent(e Event)
	ShouldHandleEvent(kind EventKind) bool
}

// AllEvents can be embedded by observers that want every kind.
type AllEvents struct{}

func (AllEvents) ShouldHandleEvent(EventKind) bool { return true }

// FuncObserver adapts a function to Observer. With no kinds it handles all.
type FuncObserver struct {
	fn    func(Event)
	kinds map[EventKind]bool
}

func NewFuncObserver(fn func(Event), kinds ...EventKind) *FuncObserver {
	o := &FuncObserver{fn: fn}
	if len(kinds) > 0 {
		o.kinds = make(map[EventKind]bool, len(kinds))
		for _, k := range kinds {
			o.kinds[k] = true
		}
	}
	return o
}

func (o *FuncObserver) OnEvent(e Event) { o.fn(e) }

func (o *FuncObserver) ShouldHandleEvent(kind EventKind) bool {
	return o.kinds == nil || o.kinds[kind]
}

// ObserverRegistry fans events out to registered observers in registration
// order. Notification iterates over a snapshot, so observers may add or
// remove observers from inside OnEvent.
type ObserverRegistry struct {
	mu        sync.RWMutex
	observers []Observer
	log       *zap.Logger
}

func NewObserverRegistry(log *zap.Logger) *ObserverRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &ObserverRegistry{log: log}
}

// AddObserver appends o. Adding the same observer twice makes it receive
// every event twice.
func (r *ObserverRegistry) AddObserver(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]Observer, len(r.observers), len(r.observers)+1)
	copy(next, r.observers)
	r.observers = append(next, o)
}

// RemoveObserver drops every registration of o. Observers whose dynamic type
// is not comparable never match.
func (r *ObserverRegistry) RemoveObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]Observer, 0, len(r.observers))
	for _, existing := range r.observers {
		if !sameObserver(existing, o) {
			next = append(next, existing)
		}
	}
	r.observers = next
}

func sameObserver(a, b Observer) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}

func (r *ObserverRegistry) ClearObservers() {
	r.mu.Lock()
	r.observers = nil
	r.mu.Unlock()
}

func (r *ObserverRegistry) ObserverCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// NotifyObservers delivers e to every interested observer. A panicking
// observer is logged and skipped; the rest still receive the event.
func (r *ObserverRegistry) NotifyObservers(e Event) {
	r.mu.RLock()
	snapshot := r.observers
	r.mu.RUnlock()

	for _, o := range snapshot {
		if !o.ShouldHandleEvent(e.Kind()) {
			continue
		}
		r.deliver(o, e)
	}
}

func (r *ObserverRegistry) deliver(o Observer, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("observer panicked",
				zap.String("observer", fmt.Sprintf("%T", o)),
				zap.Stringer("event", e.Kind()),
				zap.String("game_session_id", e.GameSessionID().String()),
				zap.Any("panic", rec),
			)
		}
	}()
	o.OnEvent(e)
}
