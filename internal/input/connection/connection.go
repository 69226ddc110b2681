package connection

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
)

// Source produces raw input events. Run is called on the connection's
// worker goroutine and must return when ctx is done.
type Source interface {
	// Open acquires the device context. A failing Open leaves the
	// connection usable for another Setup attempt.
	Open(ctx context.Context) error
	// Run collects events into sink until ctx is done.
	Run(ctx context.Context, sink Sink) error
	// SetGrab takes or releases exclusive access to the devices.
	SetGrab(grab bool) error
	// Close releases the device context.
	Close() error
}

// Sink accepts raw events from a Source. Push is safe for concurrent use.
type Sink interface {
	Push(ev Event)
}

// Connection owns the input devices of one seat.
//
// A worker goroutine runs the Source and queues raw events under a mutex.
// The main loop is woken through the wake function and drains the queue
// with ProcessEvents, which emits one normalized notification per event in
// FIFO order. Device counters per capability are updated on the main loop;
// observers hear about a capability only when its counter crosses zero.
type Connection struct {
	source  Source
	logger  logrus.FieldLogger
	grab    bool
	wake    func()
	metrics *connMetrics

	mu         sync.Mutex
	queue      []Event
	suspended  bool
	wakeQueued atomic.Bool

	// Main loop state.
	counts        map[input.Capability]int
	beforeSuspend map[input.Capability]bool
	screenSize    geom.Size
	outputs       []geom.Rect
	deviceOutputs map[string]int
	observers     []Observer
	held          *held

	running bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWakeFunc sets the function called from the worker when new events
// are queued. It is called at most once per ProcessEvents cycle.
func WithWakeFunc(fn func()) Option {
	return func(c *Connection) {
		c.wake = fn
	}
}

// WithGrab requests exclusive device access while active.
func WithGrab(grab bool) Option {
	return func(c *Connection) {
		c.grab = grab
	}
}

// WithRegisterer exports device and queue metrics to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Connection) {
		c.metrics = newConnMetrics(reg)
	}
}

// WithDeviceOutputs binds absolute devices to outputs by device name.
func WithDeviceOutputs(m map[string]int) Option {
	return func(c *Connection) {
		for name, idx := range m {
			c.deviceOutputs[name] = idx
		}
	}
}

// New creates a connection over src. Nothing is opened until Setup.
func New(src Source, opts ...Option) *Connection {
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := &Connection{
		source:        src,
		logger:        l,
		wake:          func() {},
		counts:        make(map[input.Capability]int),
		beforeSuspend: make(map[input.Capability]bool),
		deviceOutputs: make(map[string]int),
		held:          newHeld(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddObserver registers o. Observers are notified in registration order.
func (c *Connection) AddObserver(o Observer) {
	if o != nil {
		c.observers = append(c.observers, o)
	}
}

// RemoveObserver unregisters o. It may be called from a notification.
func (c *Connection) RemoveObserver(o Observer) {
	kept := make([]Observer, 0, len(c.observers))
	for _, existing := range c.observers {
		if existing != o {
			kept = append(kept, existing)
		}
	}
	c.observers = kept
}

// Setup opens the device context and starts the worker. It is idempotent:
// calling it on a running connection does nothing. When the source cannot
// be opened the error is logged and returned, capabilities stay unset, and
// Setup may be called again later.
func (c *Connection) Setup(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.running {
		return nil
	}
	if err := c.source.Open(ctx); err != nil {
		c.logger.WithError(err).Error("failed to open input device context")
		return fmt.Errorf("setup input connection: %w", err)
	}
	if c.grab {
		if err := c.source.SetGrab(true); err != nil {
			c.logger.WithError(err).Warn("failed to grab input devices")
		}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	go c.worker(workerCtx)
	c.logger.Info("input connection set up")
	return nil
}

func (c *Connection) worker(ctx context.Context) {
	defer close(c.done)
	if err := c.source.Run(ctx, c); err != nil && ctx.Err() == nil {
		c.logger.WithError(err).Error("input source stopped")
	}
}

// Push queues ev for the main loop. While suspended only device events are
// kept so that device counters stay accurate.
func (c *Connection) Push(ev Event) {
	c.mu.Lock()
	if c.suspended && !ev.Type.IsDeviceEvent() {
		c.mu.Unlock()
		c.metrics.dropped()
		return
	}
	c.queue = append(c.queue, ev)
	depth := len(c.queue)
	c.mu.Unlock()

	c.metrics.setQueueDepth(depth)
	if c.wakeQueued.CompareAndSwap(false, true) {
		c.wake()
	}
}

// ProcessEvents drains the queue and emits one notification per event in
// FIFO order. It returns the number of events processed and must run on
// the main loop.
func (c *Connection) ProcessEvents() int {
	c.wakeQueued.Store(false)
	c.mu.Lock()
	events := c.queue
	c.queue = nil
	suspended := c.suspended
	c.mu.Unlock()
	c.metrics.setQueueDepth(0)

	for _, ev := range events {
		c.handle(ev, suspended)
	}
	return len(events)
}

func (c *Connection) handle(ev Event, suspended bool) {
	if !ev.Type.IsDeviceEvent() {
		c.held.time = ev.Time
	}
	switch ev.Type {
	case EventDeviceAdded:
		c.logger.WithFields(logrus.Fields{"device": ev.Device, "caps": ev.Caps}).Info("input device added")
		for _, capability := range ev.Caps {
			c.adjust(capability, +1, suspended)
		}
	case EventDeviceRemoved:
		c.logger.WithField("device", ev.Device).Info("input device removed")
		if !suspended {
			c.releaseHeld(ev.Device, false)
		}
		for _, capability := range ev.Caps {
			c.adjust(capability, -1, suspended)
		}
	case EventKeyboardKey:
		c.held.setKey(ev.Device, ev.Key, ev.KeyState != input.KeyReleased)
		for _, o := range c.observers {
			o.KeyChanged(ev.Key, ev.KeyState, ev.Time)
		}
	case EventPointerButton:
		c.held.setButton(ev.Device, ev.Button, ev.ButtonState == input.ButtonPressed)
		for _, o := range c.observers {
			o.PointerButtonChanged(ev.Button, ev.ButtonState, ev.Time)
		}
	case EventPointerMotion:
		for _, o := range c.observers {
			o.PointerMotion(ev.Delta, ev.Time)
		}
	case EventPointerMotionAbsolute:
		pos := c.mapAbsolute(ev)
		for _, o := range c.observers {
			o.PointerMotionAbsolute(ev.Norm, pos, ev.Time)
		}
	case EventPointerAxis:
		for _, o := range c.observers {
			o.PointerAxisChanged(ev.Axis, ev.AxisDelta, ev.Time)
		}
	case EventTouchDown:
		id := c.held.touchDown(ev.Device, ev.TouchID)
		pos := c.mapAbsolute(ev)
		for _, o := range c.observers {
			o.TouchDown(id, pos, ev.Time)
		}
	case EventTouchMotion:
		id := c.held.touchID(ev.Device, ev.TouchID)
		pos := c.mapAbsolute(ev)
		for _, o := range c.observers {
			o.TouchMotion(id, pos, ev.Time)
		}
	case EventTouchUp:
		id := c.held.touchUp(ev.Device, ev.TouchID)
		for _, o := range c.observers {
			o.TouchUp(id, ev.Time)
		}
	case EventTouchFrame:
		for _, o := range c.observers {
			o.TouchFrame()
		}
	case EventTouchCancel:
		c.held.clearTouches()
		for _, o := range c.observers {
			o.TouchCanceled()
		}
	default:
		c.logger.WithField("type", ev.Type.String()).Warn("unknown input event")
	}
}

// adjust moves the device counter for capability by delta. Only the
// transitions between zero and a positive count are reported. A negative
// count means device bookkeeping is broken and is fatal.
func (c *Connection) adjust(capability input.Capability, delta int, suspended bool) {
	before := c.counts[capability]
	after := before + delta
	if after < 0 {
		panic(fmt.Sprintf("input connection: %s device count went negative", capability))
	}
	c.counts[capability] = after
	c.metrics.setDevices(capability, after)
	if suspended || (before > 0) == (after > 0) {
		return
	}
	if after == 0 {
		c.logger.WithField("capability", capability.String()).Warn("last input device of this kind removed")
	}
	c.emitCapability(capability, after > 0)
}

// releaseHeld emits a release for every key and button still down on
// device, or on every device when all is set, and cancels the touch
// sequence if one of its contacts belongs to them. The events that would
// have released them are dropped while suspended or lost on unplug.
func (c *Connection) releaseHeld(device string, all bool) {
	t := c.held.time
	for _, code := range c.held.takeKeys(device, all) {
		for _, o := range c.observers {
			o.KeyChanged(code, input.KeyReleased, t)
		}
	}
	for _, code := range c.held.takeButtons(device, all) {
		for _, o := range c.observers {
			o.PointerButtonChanged(code, input.ButtonReleased, t)
		}
	}
	if (all && len(c.held.touches) > 0) || (!all && c.held.hasTouches(device)) {
		c.held.clearTouches()
		for _, o := range c.observers {
			o.TouchCanceled()
		}
	}
}

func (c *Connection) emitCapability(capability input.Capability, present bool) {
	for _, o := range c.observers {
		o.CapabilityChanged(capability, present)
	}
}

// mapAbsolute turns the normalized position of ev into global coordinates.
// The event's output, or the output bound to its device, is used when
// known; otherwise the whole screen size. No clamping is applied.
func (c *Connection) mapAbsolute(ev Event) geom.Point {
	idx := ev.Output
	if idx == NoOutput {
		if bound, ok := c.deviceOutputs[ev.Device]; ok {
			idx = bound
		}
	}
	if idx >= 0 && idx < len(c.outputs) {
		return c.outputs[idx].MapNormalized(ev.Norm.X, ev.Norm.Y)
	}
	return geom.Point{X: ev.Norm.X * c.screenSize.W, Y: ev.Norm.Y * c.screenSize.H}
}

// SetScreenSize sets the size used to map absolute events not bound to an
// output.
func (c *Connection) SetScreenSize(size geom.Size) {
	c.screenSize = size
}

// SetOutputs sets the output layout used for device bound absolute events.
func (c *Connection) SetOutputs(outputs []geom.Rect) {
	c.outputs = append(c.outputs[:0], outputs...)
}

// HasKeyboard reports whether at least one keyboard is attached.
func (c *Connection) HasKeyboard() bool { return c.counts[input.CapKeyboard] > 0 }

// HasPointer reports whether at least one pointer device is attached.
func (c *Connection) HasPointer() bool { return c.counts[input.CapPointer] > 0 }

// HasTouch reports whether at least one touch device is attached.
func (c *Connection) HasTouch() bool { return c.counts[input.CapTouch] > 0 }

// IsSuspended reports whether the connection is deactivated.
func (c *Connection) IsSuspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// Deactivate suspends the connection: queued input is dropped, new input
// is ignored, grabs are released, held keys and buttons are released, an
// active touch sequence is canceled and observers are told that every
// present capability went away. Device state is kept for Resume.
func (c *Connection) Deactivate() {
	c.mu.Lock()
	if c.suspended {
		c.mu.Unlock()
		return
	}
	c.suspended = true
	dropped := 0
	kept := c.queue[:0]
	for _, ev := range c.queue {
		if ev.Type.IsDeviceEvent() {
			kept = append(kept, ev)
			continue
		}
		dropped++
	}
	c.queue = kept
	c.mu.Unlock()

	c.logger.WithField("dropped", dropped).Info("input connection suspended")
	if c.running {
		if err := c.source.SetGrab(false); err != nil {
			c.logger.WithError(err).Warn("failed to release input devices")
		}
	}
	c.releaseHeld("", true)
	for _, capability := range input.Capabilities {
		present := c.counts[capability] > 0
		c.beforeSuspend[capability] = present
		if present {
			c.emitCapability(capability, false)
		}
	}
}

// Resume ends a suspension. Capabilities present now are reported again;
// devices that appeared or vanished meanwhile are accounted for.
func (c *Connection) Resume() {
	c.mu.Lock()
	if !c.suspended {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Apply device events queued while suspended before leaving the
	// suspended state, so their transitions are not reported twice.
	c.ProcessEvents()

	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()

	if c.running && c.grab {
		if err := c.source.SetGrab(true); err != nil {
			c.logger.WithError(err).Warn("failed to grab input devices")
		}
	}
	for _, capability := range input.Capabilities {
		present := c.counts[capability] > 0
		if present != c.beforeSuspend[capability] {
			c.logger.WithFields(logrus.Fields{
				"capability": capability.String(),
				"present":    present,
			}).Info("input capability changed while suspended")
		}
		if present {
			c.emitCapability(capability, true)
		}
	}
	c.logger.Info("input connection resumed")
}

// Close stops the worker and releases the source. The connection cannot be
// set up again.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if !c.running {
		return nil
	}
	c.cancel()
	<-c.done
	c.running = false
	return c.source.Close()
}

type connMetrics struct {
	devices *prometheus.GaugeVec
	queue   prometheus.Gauge
	drops   prometheus.Counter
}

func newConnMetrics(reg prometheus.Registerer) *connMetrics {
	m := &connMetrics{
		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "waystorm",
			Subsystem: "devices",
			Name:      "attached",
			Help:      "Attached input devices per capability.",
		}, []string{"capability"}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "waystorm",
			Subsystem: "devices",
			Name:      "queue_depth",
			Help:      "Raw input events waiting for the main loop.",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waystorm",
			Subsystem: "devices",
			Name:      "suspended_drops_total",
			Help:      "Raw input events ignored while suspended.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.devices, m.queue, m.drops)
	}
	return m
}

func (m *connMetrics) setDevices(capability input.Capability, n int) {
	if m == nil {
		return
	}
	m.devices.WithLabelValues(capability.String()).Set(float64(n))
}

func (m *connMetrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queue.Set(float64(n))
}

func (m *connMetrics) dropped() {
	if m == nil {
		return
	}
	m.drops.Inc()
}
