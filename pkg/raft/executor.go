package raft

import "sync"

// Executor is a single-goroutine, FIFO task runner: the "small
// task executor abstraction per context" called for by spec.md §9 to
// replace callback-chained async handling. Every mutation of state
// owned by a given execution context (ServerContext fields, role,
// cluster state, the in-memory log on the protocol context; Session
// state on the state context) is posted here rather than called
// directly from another goroutine.
//
// Grounded on cuemby-warren/pkg/events/events.go's Broker.run() shape
// (select over a work channel and a stop channel), generalized from a
// single *Event payload to arbitrary posted closures.
type Executor struct {
	work chan func()
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewExecutor starts a new executor with the given work queue depth.
func NewExecutor(queueDepth int) *Executor {
	e := &Executor{
		work: make(chan func(), queueDepth),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		select {
		case fn := <-e.work:
			fn()
		case <-e.stop:
			// Drain whatever is already queued before exiting so
			// posted continuations still observe a consistent order.
			for {
				select {
				case fn := <-e.work:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues fn to run on the executor's goroutine, FIFO relative
// to other posted work. Post never blocks the executor's own
// goroutine, but may block the caller if the queue is full.
func (e *Executor) Post(fn func()) {
	select {
	case e.work <- fn:
	case <-e.stop:
	}
}

// PostSync enqueues fn and blocks until it has run. It must never be
// called from the executor's own goroutine (it would deadlock) — that
// is a programming error the caller is responsible for avoiding, per
// spec.md §4.1 ("a programming error to invoke transition from another
// context").
func (e *Executor) PostSync(fn func()) {
	done := make(chan struct{})
	e.Post(func() {
		fn()
		close(done)
	})
	<-done
}

// Stop signals the executor to finish its queued work and exit. It
// blocks until the goroutine has exited.
func (e *Executor) Stop() {
	e.once.Do(func() { close(e.stop) })
	<-e.done
}
