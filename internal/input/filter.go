package input

// Filter is one stage of the input dispatch chain.
//
// Each method returns true when the filter handled the event. A handled
// event is not passed to later filters nor delivered to clients. Filters
// may keep state and trigger side effects while returning false.
//
// Filters run on the main loop. Side effects that would mutate the chain
// or re-inject input must be posted to the loop instead of run inline.
type Filter interface {
	KeyEvent(ev KeyEvent) bool
	PointerButton(ev PointerButtonEvent) bool
	PointerMotion(ev PointerMotionEvent) bool
	PointerAxis(ev PointerAxisEvent) bool
	TouchDown(ev TouchEvent) bool
	TouchMotion(ev TouchEvent) bool
	TouchUp(ev TouchEvent) bool
}

// TouchCanceler is implemented by filters that keep per-contact state and
// need to drop it when the active touch sequence is canceled.
type TouchCanceler interface {
	TouchCanceled()
}

// CapabilityWatcher is implemented by filters that keep per-device state,
// such as held modifiers, and need to drop it when the last device of a
// kind goes away or the connection is suspended.
type CapabilityWatcher interface {
	CapabilityChanged(c Capability, present bool)
}

// Named is implemented by filters that want a stable name in logs and
// metrics.
type Named interface {
	Name() string
}

// BaseFilter passes every event. Embed it to override only the methods of
// interest.
type BaseFilter struct{}

func (BaseFilter) KeyEvent(KeyEvent) bool { return false }
func (BaseFilter) PointerButton(PointerButtonEvent) bool { return false }
func (BaseFilter) PointerMotion(PointerMotionEvent) bool { return false }
func (BaseFilter) PointerAxis(PointerAxisEvent) bool { return false }
func (BaseFilter) TouchDown(TouchEvent) bool { return false }
func (BaseFilter) TouchMotion(TouchEvent) bool { return false }
func (BaseFilter) TouchUp(TouchEvent) bool { return false }

// FilterName returns the name used for f in logs and metrics.
func FilterName(f Filter) string {
	if n, ok := f.(Named); ok {
		return n.Name()
	}
	return "anonymous"
}
