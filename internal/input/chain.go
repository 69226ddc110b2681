package input

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Event kinds used in logs and metrics.
const (
	KindKey           = "key"
	KindPointerButton = "pointer_button"
	KindPointerMotion = "pointer_motion"
	KindPointerAxis   = "pointer_axis"
	KindTouchDown     = "touch_down"
	KindTouchMotion   = "touch_motion"
	KindTouchUp       = "touch_up"
)

type chainOpKind uint8

const (
	opAppend chainOpKind = iota
	opPrepend
	opRemove
)

type chainOp struct {
	kind   chainOpKind
	filter Filter
}

// FilterChain is an ordered list of filters. Earlier filters see events
// first. The chain holds non-owning references: removing a filter does not
// release it.
//
// Mutations made while an event is being dispatched, typically from inside
// a filter, are queued and applied once the outermost dispatch returns.
// The filter list is therefore never modified during iteration.
//
// FilterChain is not safe for concurrent use; it belongs to the main loop.
type FilterChain struct {
	filters []Filter
	depth   int
	pending []chainOp
	logger  logrus.FieldLogger
	metrics *Metrics
}

// ChainOption configures a FilterChain.
type ChainOption func(*FilterChain)

// WithChainLogger sets the logger used to report filter panics.
func WithChainLogger(l logrus.FieldLogger) ChainOption {
	return func(c *FilterChain) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithChainMetrics records per-filter consumption counts.
func WithChainMetrics(m *Metrics) ChainOption {
	return func(c *FilterChain) {
		c.metrics = m
	}
}

// NewFilterChain creates an empty chain.
func NewFilterChain(opts ...ChainOption) *FilterChain {
	c := &FilterChain{
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Append adds f at the end of the chain, giving it the lowest priority.
// A filter already in the chain is left where it is.
func (c *FilterChain) Append(f Filter) {
	c.mutate(chainOp{kind: opAppend, filter: f})
}

// Prepend adds f at the front of the chain, giving it the highest priority.
// A filter already in the chain is left where it is.
func (c *FilterChain) Prepend(f Filter) {
	c.mutate(chainOp{kind: opPrepend, filter: f})
}

// Remove takes f out of the chain. Removing an unknown filter does nothing.
func (c *FilterChain) Remove(f Filter) {
	c.mutate(chainOp{kind: opRemove, filter: f})
}

// Len returns the number of filters currently installed.
func (c *FilterChain) Len() int {
	return len(c.filters)
}

// Filters returns a copy of the filter list in dispatch order.
func (c *FilterChain) Filters() []Filter {
	out := make([]Filter, len(c.filters))
	copy(out, c.filters)
	return out
}

// Dispatching reports whether an event is currently being dispatched.
func (c *FilterChain) Dispatching() bool {
	return c.depth > 0
}

// DispatchKey passes ev through the chain and reports whether a filter
// handled it.
func (c *FilterChain) DispatchKey(ev KeyEvent) bool {
	return c.dispatch(KindKey, func(f Filter) bool { return f.KeyEvent(ev) })
}

// DispatchPointerButton passes ev through the chain.
func (c *FilterChain) DispatchPointerButton(ev PointerButtonEvent) bool {
	return c.dispatch(KindPointerButton, func(f Filter) bool { return f.PointerButton(ev) })
}

// DispatchPointerMotion passes ev through the chain.
func (c *FilterChain) DispatchPointerMotion(ev PointerMotionEvent) bool {
	return c.dispatch(KindPointerMotion, func(f Filter) bool { return f.PointerMotion(ev) })
}

// DispatchPointerAxis passes ev through the chain.
func (c *FilterChain) DispatchPointerAxis(ev PointerAxisEvent) bool {
	return c.dispatch(KindPointerAxis, func(f Filter) bool { return f.PointerAxis(ev) })
}

// DispatchTouchDown passes ev through the chain.
func (c *FilterChain) DispatchTouchDown(ev TouchEvent) bool {
	return c.dispatch(KindTouchDown, func(f Filter) bool { return f.TouchDown(ev) })
}

// DispatchTouchMotion passes ev through the chain.
func (c *FilterChain) DispatchTouchMotion(ev TouchEvent) bool {
	return c.dispatch(KindTouchMotion, func(f Filter) bool { return f.TouchMotion(ev) })
}

// DispatchTouchUp passes ev through the chain.
func (c *FilterChain) DispatchTouchUp(ev TouchEvent) bool {
	return c.dispatch(KindTouchUp, func(f Filter) bool { return f.TouchUp(ev) })
}

// NotifyTouchCanceled tells every filter implementing TouchCanceler that
// the touch sequence was canceled. Cancellation cannot be consumed.
func (c *FilterChain) NotifyTouchCanceled() {
	c.depth++
	defer c.leave()
	for _, f := range c.filters {
		if tc, ok := f.(TouchCanceler); ok {
			c.call("touch_cancel", f, func(Filter) bool {
				tc.TouchCanceled()
				return false
			})
		}
	}
}

// NotifyCapabilityChanged tells every filter implementing CapabilityWatcher
// that a device capability appeared or went away.
func (c *FilterChain) NotifyCapabilityChanged(capability Capability, present bool) {
	c.depth++
	defer c.leave()
	for _, f := range c.filters {
		if cw, ok := f.(CapabilityWatcher); ok {
			c.call("capability", f, func(Filter) bool {
				cw.CapabilityChanged(capability, present)
				return false
			})
		}
	}
}

func (c *FilterChain) dispatch(kind string, fn func(Filter) bool) bool {
	c.depth++
	defer c.leave()
	for _, f := range c.filters {
		if c.call(kind, f, fn) {
			c.metrics.recordConsumed(kind, FilterName(f))
			return true
		}
	}
	return false
}

// call runs fn for one filter. A panicking filter is logged and treated as
// not having handled the event.
func (c *FilterChain) call(kind string, f Filter, fn func(Filter) bool) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.recordPanic(FilterName(f))
			c.logger.WithFields(logrus.Fields{
				"filter": FilterName(f),
				"event":  kind,
				"panic":  fmt.Sprint(r),
			}).Error("input filter panicked")
			handled = false
		}
	}()
	return fn(f)
}

func (c *FilterChain) leave() {
	c.depth--
	if c.depth > 0 || len(c.pending) == 0 {
		return
	}
	ops := c.pending
	c.pending = nil
	for _, op := range ops {
		c.apply(op)
	}
}

func (c *FilterChain) mutate(op chainOp) {
	if op.filter == nil {
		return
	}
	if c.depth > 0 {
		c.pending = append(c.pending, op)
		return
	}
	c.apply(op)
}

func (c *FilterChain) apply(op chainOp) {
	idx := c.indexOf(op.filter)
	switch op.kind {
	case opAppend:
		if idx < 0 {
			c.filters = append(c.filters, op.filter)
		}
	case opPrepend:
		if idx < 0 {
			c.filters = append([]Filter{op.filter}, c.filters...)
		}
	case opRemove:
		if idx >= 0 {
			c.filters = append(c.filters[:idx], c.filters[idx+1:]...)
		}
	}
}

func (c *FilterChain) indexOf(f Filter) int {
	for i, existing := range c.filters {
		if existing == f {
			return i
		}
	}
	return -1
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
