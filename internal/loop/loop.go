// Package loop provides the main event loop. Everything that touches
// compositor state runs on it; other goroutines hand work over with Post.
package loop

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Loop runs posted functions in FIFO order on a single goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	logger  logrus.FieldLogger
	ran     atomic.Uint64
	panics  atomic.Uint64
	running atomic.Bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report panics in posted functions.
func WithLogger(l logrus.FieldLogger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := logrus.New()
	l.SetOutput(io.Discard)
	lp := &Loop{
		wake:   make(chan struct{}, 1),
		logger: l,
	}
	for _, opt := range opts {
		opt(lp)
	}
	return lp
}

// Post queues fn to run on the loop. It is safe to call from any
// goroutine, including from a function running on the loop; such work
// runs in the next round, never inline.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.Wake()
}

// Wake makes a running loop start a new round. Wakeups coalesce.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// RunPending runs the functions queued so far and returns how many ran.
// Functions posted meanwhile stay queued for the next call.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		l.call(fn)
	}
	l.ran.Add(uint64(len(batch)))
	return len(batch)
}

// Run processes posted work until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

// Stats returns the number of functions run and the number that panicked.
func (l *Loop) Stats() (ran, panicked uint64) {
	return l.ran.Load(), l.panics.Load()
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.WithField("panic", fmt.Sprint(r)).Error("posted function panicked")
		}
	}()
	fn()
}
