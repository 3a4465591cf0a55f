package services

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// AsyncObserver hands events to next on a single worker goroutine. Events
// arrive at next in emission order. When the queue is full the event is
// dropped and logged instead of blocking the game operation.
type AsyncObserver struct {
	next  Observer
	queue chan Event
	done  chan struct{}
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewAsyncObserver(next Observer, queueSize int, log *zap.Logger) *AsyncObserver {
	if queueSize <= 0 {
		queueSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &AsyncObserver{
		next:  next,
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	go a.run()
	return a
}

func (a *AsyncObserver) ShouldHandleEvent(kind EventKind) bool {
	return a.next.ShouldHandleEvent(kind)
}

func (a *AsyncObserver) OnEvent(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- e:
	default:
		a.log.Warn("observer queue full, dropping event",
			zap.String("observer", fmt.Sprintf("%T", a.next)),
			zap.Stringer("event", e.Kind()),
			zap.String("game_session_id", e.GameSessionID().String()),
		)
	}
}

// Close stops accepting events and waits until the queued ones are delivered.
func (a *AsyncObserver) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AsyncObserver) run() {
	defer close(a.done)
	for e := range a.queue {
		a.deliver(e)
	}
}

func (a *AsyncObserver) deliver(e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log.Error("async observer panicked",
				zap.String("observer", fmt.Sprintf("%T", a.next)),
				zap.Stringer("event", e.Kind()),
				zap.Any("panic", rec),
			)
		}
	}()
	a.next.OnEvent(e)
}
