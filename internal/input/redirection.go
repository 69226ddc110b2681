package input

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input/touch"
)

// Redirection turns normalized device events into dispatched input.
//
// For every event it first updates its own state (pointer position, touch
// sequence, focus), then passes the event through the filter chain and,
// when no filter handled it, delivers it to the focused window.
//
// Its entry points have the same shape as connection.Observer so a device
// connection can feed it directly. All methods must be called from the
// main loop.
type Redirection struct {
	chain    *FilterChain
	sequence *touch.Sequence
	screens  ScreenGeometry
	windows  WindowLookup
	delivery Delivery
	logger   logrus.FieldLogger
	metrics  *Metrics

	pointerPos    geom.Point
	currentScreen int
	buttons       map[uint32]struct{}
	caps          map[Capability]bool

	keyboardFocus Window
	pointerFocus  Window
	touchFocus    Window

	activation *activationFilter
}

// RedirectionOption configures a Redirection.
type RedirectionOption func(*Redirection)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) RedirectionOption {
	return func(r *Redirection) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) RedirectionOption {
	return func(r *Redirection) {
		r.metrics = m
	}
}

// WithDelivery sets the target for events no filter handled.
func WithDelivery(d Delivery) RedirectionOption {
	return func(r *Redirection) {
		if d != nil {
			r.delivery = d
		}
	}
}

// WithLifetime subscribes to window destruction to clear focus references.
func WithLifetime(n LifetimeNotifier) RedirectionOption {
	return func(r *Redirection) {
		if n != nil {
			n.OnWindowDestroyed(r.WindowDestroyed)
		}
	}
}

// WithActivation moves keyboard focus to each newly activated window.
func WithActivation(n ActivationNotifier) RedirectionOption {
	return func(r *Redirection) {
		if n != nil {
			n.OnWindowActivated(r.WindowActivated)
		}
	}
}

// NewRedirection creates a Redirection over the given output layout and
// window model. The activation filter is installed as the first appended
// filter; filters prepended later run before it.
func NewRedirection(screens ScreenGeometry, windows WindowLookup, opts ...RedirectionOption) *Redirection {
	r := &Redirection{
		sequence: touch.NewSequence(),
		screens:  screens,
		windows:  windows,
		delivery: NopDelivery{},
		logger:   discardLogger(),
		buttons:  make(map[uint32]struct{}),
		caps:     make(map[Capability]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.chain = NewFilterChain(WithChainLogger(r.logger), WithChainMetrics(r.metrics))
	r.sequence.AddListener(&sequenceMetrics{metrics: r.metrics})
	r.activation = &activationFilter{windows: windows}
	r.chain.Append(r.activation)
	r.pointerPos = r.Bounds().Center()
	return r
}

// Chain returns the filter chain.
func (r *Redirection) Chain() *FilterChain {
	return r.chain
}

// Sequence returns the touch sequence. Register touch.Listener values on it
// to observe sequence notifications.
func (r *Redirection) Sequence() *touch.Sequence {
	return r.sequence
}

// PointerPosition returns the pointer position in global coordinates.
func (r *Redirection) PointerPosition() geom.Point {
	return r.pointerPos
}

// CurrentScreen returns the index of the output that received the last
// absolute event.
func (r *Redirection) CurrentScreen() int {
	return r.currentScreen
}

// Bounds returns the union of all outputs.
func (r *Redirection) Bounds() geom.Rect {
	var b geom.Rect
	for _, o := range r.screens.Outputs() {
		b = b.Union(o)
	}
	return b
}

// HasCapability reports the last known state of c.
func (r *Redirection) HasCapability(c Capability) bool {
	return r.caps[c]
}

// KeyboardFocus returns the window receiving key events, or nil.
func (r *Redirection) KeyboardFocus() Window { return r.keyboardFocus }

// PointerFocus returns the window under the pointer, or nil.
func (r *Redirection) PointerFocus() Window { return r.pointerFocus }

// TouchFocus returns the window receiving the active touch sequence, or nil.
func (r *Redirection) TouchFocus() Window { return r.touchFocus }

// WindowDestroyed drops every focus reference to w.
func (r *Redirection) WindowDestroyed(w Window) {
	if w == nil {
		return
	}
	if r.keyboardFocus == w {
		r.keyboardFocus = nil
	}
	if r.pointerFocus == w {
		r.pointerFocus = nil
	}
	if r.touchFocus == w {
		r.touchFocus = nil
	}
}

// WindowActivated gives keyboard focus to w.
func (r *Redirection) WindowActivated(w Window) {
	if w == nil || w == r.keyboardFocus {
		return
	}
	r.keyboardFocus = w
	r.logger.WithField("window", w.ID()).Debug("keyboard focus changed")
}

// KeyChanged handles a keyboard key.
func (r *Redirection) KeyChanged(key uint32, state KeyState, time uint32) {
	ev := KeyEvent{Key: key, State: state, Time: time}
	r.metrics.recordEvent(KindKey)
	r.keyboardFocus = r.windows.ActiveWindow()
	if r.chain.DispatchKey(ev) {
		return
	}
	if r.keyboardFocus != nil {
		r.metrics.recordDelivered(KindKey)
		r.delivery.Key(r.keyboardFocus, ev)
	}
}

// PointerButtonChanged handles a pointer button.
func (r *Redirection) PointerButtonChanged(button uint32, state ButtonState, time uint32) {
	if state == ButtonPressed {
		r.buttons[button] = struct{}{}
	} else {
		delete(r.buttons, button)
	}
	ev := PointerButtonEvent{Button: button, State: state, Pos: r.pointerPos, Time: time}
	r.metrics.recordEvent(KindPointerButton)
	if r.chain.DispatchPointerButton(ev) {
		return
	}
	if state == ButtonReleased && len(r.buttons) == 0 {
		r.updatePointerFocus()
	}
	if r.pointerFocus != nil {
		r.metrics.recordDelivered(KindPointerButton)
		r.delivery.PointerButton(r.pointerFocus, ev, r.local(r.pointerFocus, r.pointerPos))
	}
}

// PointerMotion handles relative motion. The resulting position is
// clamped to the output layout.
func (r *Redirection) PointerMotion(delta geom.Point, time uint32) {
	pos := r.Bounds().Clamp(r.pointerPos.Add(delta))
	r.movePointer(PointerMotionEvent{Pos: pos, Delta: delta, Time: time})
}

// PointerMotionAbsolute handles absolute motion. The first argument is
// the raw device position and is not used; screen is the position mapped
// to global coordinates and is not clamped.
func (r *Redirection) PointerMotionAbsolute(_, screen geom.Point, time uint32) {
	r.updateScreen(screen)
	r.movePointer(PointerMotionEvent{Pos: screen, Absolute: true, Time: time})
}

func (r *Redirection) movePointer(ev PointerMotionEvent) {
	r.pointerPos = ev.Pos
	if len(r.buttons) == 0 {
		r.updatePointerFocus()
	}
	r.metrics.recordEvent(KindPointerMotion)
	if r.chain.DispatchPointerMotion(ev) {
		return
	}
	if r.pointerFocus != nil {
		r.metrics.recordDelivered(KindPointerMotion)
		r.delivery.PointerMotion(r.pointerFocus, ev, r.local(r.pointerFocus, ev.Pos))
	}
}

// PointerAxisChanged handles scrolling.
func (r *Redirection) PointerAxisChanged(axis Axis, delta float64, time uint32) {
	ev := PointerAxisEvent{Axis: axis, Delta: delta, Time: time}
	r.metrics.recordEvent(KindPointerAxis)
	if r.chain.DispatchPointerAxis(ev) {
		return
	}
	if r.pointerFocus != nil {
		r.metrics.recordDelivered(KindPointerAxis)
		r.delivery.PointerAxis(r.pointerFocus, ev)
	}
}

// TouchDown handles a new contact. The first contact of a sequence picks
// the touch focus; positions reported by the sequence are relative to it.
func (r *Redirection) TouchDown(id int32, pos geom.Point, time uint32) {
	if !r.sequence.IsActive() {
		r.touchFocus = r.windows.WindowAt(pos)
		var origin geom.Point
		if r.touchFocus != nil {
			origin = r.touchFocus.Geometry().Origin()
		}
		r.sequence.SetOrigin(origin)
	}
	r.updateScreen(pos)
	if !r.sequence.Down(id, pos) {
		r.drop("duplicate_down", id)
		return
	}
	ev := TouchEvent{ID: id, Pos: pos, Time: time}
	r.metrics.recordEvent(KindTouchDown)
	if r.chain.DispatchTouchDown(ev) {
		return
	}
	if r.touchFocus != nil {
		r.metrics.recordDelivered(KindTouchDown)
		r.delivery.TouchDown(r.touchFocus, ev, r.local(r.touchFocus, pos))
	}
}

// TouchMotion handles contact motion. Motion for unknown, lifted or
// canceled contacts is dropped.
func (r *Redirection) TouchMotion(id int32, pos geom.Point, time uint32) {
	if !r.sequence.Motion(id, pos) {
		r.drop("stale_motion", id)
		return
	}
	r.updateScreen(pos)
	ev := TouchEvent{ID: id, Pos: pos, Time: time}
	r.metrics.recordEvent(KindTouchMotion)
	if r.chain.DispatchTouchMotion(ev) {
		return
	}
	if r.touchFocus != nil {
		r.metrics.recordDelivered(KindTouchMotion)
		r.delivery.TouchMotion(r.touchFocus, ev, r.local(r.touchFocus, pos))
	}
}

// TouchUp handles a lifted contact. Up events for unknown, lifted or
// canceled contacts are dropped.
func (r *Redirection) TouchUp(id int32, time uint32) {
	if !r.sequence.Up(id) {
		r.drop("stale_up", id)
		return
	}
	p, _ := r.sequence.Point(id)
	ev := TouchEvent{ID: id, Pos: p.Pos, Time: time}
	r.metrics.recordEvent(KindTouchUp)
	handled := r.chain.DispatchTouchUp(ev)
	if !handled && r.touchFocus != nil {
		r.metrics.recordDelivered(KindTouchUp)
		r.delivery.TouchUp(r.touchFocus, ev)
	}
	if !r.sequence.IsActive() {
		r.touchFocus = nil
	}
}

// TouchFrame marks the end of a set of simultaneous touch events.
func (r *Redirection) TouchFrame() {
	if r.touchFocus != nil {
		r.delivery.TouchFrame(r.touchFocus)
	}
}

// TouchCanceled aborts the active touch sequence.
func (r *Redirection) TouchCanceled() {
	if !r.sequence.Cancel() {
		return
	}
	r.chain.NotifyTouchCanceled()
	if r.touchFocus != nil {
		r.delivery.TouchCancel(r.touchFocus)
	}
	r.touchFocus = nil
}

// CapabilityChanged records a device capability change. Losing the last
// pointer device releases its held buttons and losing the last touch
// device cancels the active sequence. Filters are told after that.
func (r *Redirection) CapabilityChanged(c Capability, present bool) {
	r.caps[c] = present
	r.logger.WithFields(logrus.Fields{
		"capability": c.String(),
		"present":    present,
	}).Info("input capability changed")
	if !present {
		switch c {
		case CapPointer:
			r.releaseButtons()
		case CapTouch:
			if r.sequence.IsActive() {
				r.TouchCanceled()
			}
		}
	}
	r.chain.NotifyCapabilityChanged(c, present)
}

// releaseButtons sends a release for every button still held.
func (r *Redirection) releaseButtons() {
	held := make([]uint32, 0, len(r.buttons))
	for b := range r.buttons {
		held = append(held, b)
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	for _, b := range held {
		r.PointerButtonChanged(b, ButtonReleased, 0)
	}
}

func (r *Redirection) updatePointerFocus() {
	r.pointerFocus = r.windows.WindowAt(r.pointerPos)
}

func (r *Redirection) updateScreen(p geom.Point) {
	for i, o := range r.screens.Outputs() {
		if o.Contains(p) {
			r.currentScreen = i
			return
		}
	}
}

func (r *Redirection) local(w Window, p geom.Point) geom.Point {
	return p.Sub(w.Geometry().Origin())
}

func (r *Redirection) drop(reason string, id int32) {
	r.metrics.recordDropped(reason)
	r.logger.WithFields(logrus.Fields{
		"reason": reason,
		"id":     id,
	}).Debug("touch event dropped")
}

type sequenceMetrics struct {
	touch.NopListener
	metrics *Metrics
}

func (s *sequenceMetrics) SequenceEnded(*touch.Sequence) {
	s.metrics.recordSequence("ended")
}

func (s *sequenceMetrics) SequenceCanceled(*touch.Sequence) {
	s.metrics.recordSequence("canceled")
}
