package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
)

// fakeSource hands its sink to the test and blocks until canceled.
type fakeSource struct {
	mu      sync.Mutex
	openErr error
	opens   int
	grabs   []bool
	sink    chan Sink
	closed  bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{sink: make(chan Sink, 1)}
}

func (s *fakeSource) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return s.openErr
}

func (s *fakeSource) Run(ctx context.Context, sink Sink) error {
	s.sink <- sink
	<-ctx.Done()
	return nil
}

func (s *fakeSource) SetGrab(grab bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grabs = append(s.grabs, grab)
	return nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type capChange struct {
	capability input.Capability
	present    bool
}

type observerLog struct {
	NopObserver
	caps    []capChange
	order   []string
	touches []geom.Point
	abs     []geom.Point
}

func (o *observerLog) CapabilityChanged(c input.Capability, present bool) {
	o.caps = append(o.caps, capChange{c, present})
}

func (o *observerLog) KeyChanged(key uint32, _ input.KeyState, _ uint32) {
	o.order = append(o.order, "key")
}

func (o *observerLog) PointerMotion(geom.Point, uint32) {
	o.order = append(o.order, "motion")
}

func (o *observerLog) PointerMotionAbsolute(_, screen geom.Point, _ uint32) {
	o.order = append(o.order, "abs")
	o.abs = append(o.abs, screen)
}

func (o *observerLog) TouchDown(_ int32, pos geom.Point, _ uint32) {
	o.order = append(o.order, "touch_down")
	o.touches = append(o.touches, pos)
}

func (o *observerLog) TouchUp(int32, uint32) {
	o.order = append(o.order, "touch_up")
}

func (o *observerLog) TouchFrame() {
	o.order = append(o.order, "frame")
}

func (o *observerLog) TouchCanceled() {
	o.order = append(o.order, "cancel")
}

func newTestConnection(t *testing.T, opts ...Option) (*Connection, *fakeSource, *observerLog) {
	t.Helper()
	src := newFakeSource()
	c := New(src, opts...)
	obs := &observerLog{}
	c.AddObserver(obs)
	t.Cleanup(func() { _ = c.Close() })
	return c, src, obs
}

func touchDevice(name string) Event {
	return Event{Type: EventDeviceAdded, Device: name, Caps: []input.Capability{input.CapTouch}}
}

func removeTouch(name string) Event {
	return Event{Type: EventDeviceRemoved, Device: name, Caps: []input.Capability{input.CapTouch}}
}

func TestConnection_CapabilityTransitions(t *testing.T) {
	c, _, obs := newTestConnection(t)

	c.Push(touchDevice("a"))
	c.Push(touchDevice("b"))
	c.ProcessEvents()
	assert.True(t, c.HasTouch())
	assert.Equal(t, []capChange{{input.CapTouch, true}}, obs.caps)

	c.Push(removeTouch("a"))
	c.ProcessEvents()
	assert.True(t, c.HasTouch())
	assert.Len(t, obs.caps, 1, "no signal while a touch device remains")

	c.Push(removeTouch("b"))
	c.ProcessEvents()
	assert.False(t, c.HasTouch())
	assert.Equal(t, []capChange{{input.CapTouch, true}, {input.CapTouch, false}}, obs.caps)
}

func TestConnection_NegativeCountPanics(t *testing.T) {
	c, _, _ := newTestConnection(t)

	c.Push(removeTouch("ghost"))
	assert.Panics(t, func() { c.ProcessEvents() })
}

func TestConnection_FIFO(t *testing.T) {
	c, _, obs := newTestConnection(t)

	c.Push(Event{Type: EventKeyboardKey, Key: 30, KeyState: input.KeyPressed})
	c.Push(Event{Type: EventPointerMotion, Delta: geom.Pt(1, 0)})
	c.Push(Event{Type: EventTouchDown, TouchID: 0, Output: NoOutput})
	c.Push(Event{Type: EventTouchFrame})
	c.Push(Event{Type: EventTouchUp, TouchID: 0})
	c.Push(Event{Type: EventTouchCancel})

	assert.Equal(t, 6, c.ProcessEvents())
	assert.Equal(t, []string{"key", "motion", "touch_down", "frame", "touch_up", "cancel"}, obs.order)
	assert.Equal(t, 0, c.ProcessEvents())
}

func TestConnection_AbsoluteMapping(t *testing.T) {
	c, _, obs := newTestConnection(t, WithDeviceOutputs(map[string]int{"panel": 1}))
	c.SetScreenSize(geom.Size{W: 2560, H: 1024})
	c.SetOutputs([]geom.Rect{geom.R(0, 0, 1280, 1024), geom.R(1280, 0, 1280, 1024)})

	c.Push(Event{Type: EventTouchDown, Norm: geom.Pt(0.5, 0.5), Output: NoOutput})
	c.Push(Event{Type: EventTouchDown, Norm: geom.Pt(0.5, 0.5), Output: 0})
	c.Push(Event{Type: EventTouchDown, Device: "panel", Norm: geom.Pt(0, 0), Output: NoOutput})
	c.Push(Event{Type: EventPointerMotionAbsolute, Norm: geom.Pt(1.5, -0.5), Output: NoOutput})
	c.ProcessEvents()

	assert.Equal(t, []geom.Point{geom.Pt(1280, 512), geom.Pt(640, 512), geom.Pt(1280, 0)}, obs.touches)
	assert.Equal(t, []geom.Point{geom.Pt(3840, -512)}, obs.abs, "absolute positions are not clamped")
}

func TestConnection_SetupFailureIsRetryable(t *testing.T) {
	c, src, obs := newTestConnection(t)
	src.openErr = ErrNoDeviceContext

	err := c.Setup(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDeviceContext))
	assert.False(t, c.HasKeyboard())
	assert.False(t, c.HasPointer())
	assert.False(t, c.HasTouch())
	assert.Empty(t, obs.caps)

	src.openErr = nil
	require.NoError(t, c.Setup(context.Background()))
	require.NoError(t, c.Setup(context.Background()), "setup is idempotent")
	assert.Equal(t, 2, src.opens)
}

func TestConnection_WorkerWakesMainLoop(t *testing.T) {
	woken := make(chan struct{}, 4)
	c, src, obs := newTestConnection(t, WithWakeFunc(func() { woken <- struct{}{} }))

	require.NoError(t, c.Setup(context.Background()))
	var sink Sink
	select {
	case sink = <-src.sink:
	case <-time.After(time.Second):
		t.Fatal("worker did not start")
	}

	sink.Push(Event{Type: EventKeyboardKey, Key: 1})
	sink.Push(Event{Type: EventKeyboardKey, Key: 2})

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("no wake notification")
	}
	assert.Len(t, woken, 0, "wake is coalesced until the queue is drained")

	assert.Equal(t, 2, c.ProcessEvents())
	assert.Equal(t, []string{"key", "key"}, obs.order)

	sink.Push(Event{Type: EventKeyboardKey, Key: 3})
	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("no wake notification after drain")
	}
}

func TestConnection_DeactivateAndResume(t *testing.T) {
	c, src, obs := newTestConnection(t, WithGrab(true), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, c.Setup(context.Background()))

	c.Push(Event{Type: EventDeviceAdded, Device: "kbd", Caps: []input.Capability{input.CapKeyboard}})
	c.Push(touchDevice("ts"))
	c.ProcessEvents()
	obs.caps = nil

	c.Push(Event{Type: EventKeyboardKey, Key: 30})
	c.Deactivate()
	assert.True(t, c.IsSuspended())
	assert.Equal(t, []capChange{{input.CapKeyboard, false}, {input.CapTouch, false}}, obs.caps)

	c.Push(Event{Type: EventKeyboardKey, Key: 31})
	c.Push(Event{Type: EventDeviceAdded, Device: "mouse", Caps: []input.Capability{input.CapPointer}})
	c.ProcessEvents()
	assert.Empty(t, obs.order, "queued and new input is dropped while suspended")
	assert.Len(t, obs.caps, 2, "capability changes are not reported while suspended")

	obs.caps = nil
	c.Resume()
	assert.False(t, c.IsSuspended())
	assert.Equal(t, []capChange{
		{input.CapKeyboard, true},
		{input.CapPointer, true},
		{input.CapTouch, true},
	}, obs.caps)

	src.mu.Lock()
	assert.Equal(t, []bool{true, false, true}, src.grabs)
	src.mu.Unlock()

	c.Push(Event{Type: EventKeyboardKey, Key: 32})
	c.ProcessEvents()
	assert.Equal(t, []string{"key"}, obs.order)
}

func TestConnection_CloseStopsWorker(t *testing.T) {
	c, src, _ := newTestConnection(t)
	require.NoError(t, c.Setup(context.Background()))

	require.NoError(t, c.Close())
	assert.True(t, src.closed)
	assert.ErrorIs(t, c.Setup(context.Background()), ErrClosed)
	require.NoError(t, c.Close())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "touch-down", EventTouchDown.String())
	assert.Equal(t, "event(200)", EventType(200).String())
	assert.True(t, EventDeviceRemoved.IsDeviceEvent())
	assert.False(t, EventTouchUp.IsDeviceEvent())
}
