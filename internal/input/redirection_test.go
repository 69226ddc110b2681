package input

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input/touch"
)

type fakeWindow struct {
	id     string
	geo    geom.Rect
	active bool
}

func (w *fakeWindow) ID() string { return w.id }
func (w *fakeWindow) Geometry() geom.Rect { return w.geo }
func (w *fakeWindow) IsActive() bool { return w.active }

// fakeDesktop stacks windows bottom to top.
type fakeDesktop struct {
	outputs     []geom.Rect
	windows     []*fakeWindow
	activations int
	destroyed   []func(Window)
	activated   []func(Window)
}

func (d *fakeDesktop) Outputs() []geom.Rect { return d.outputs }

func (d *fakeDesktop) WindowAt(p geom.Point) Window {
	for i := len(d.windows) - 1; i >= 0; i-- {
		if d.windows[i].geo.Contains(p) {
			return d.windows[i]
		}
	}
	return nil
}

func (d *fakeDesktop) ActiveWindow() Window {
	for _, w := range d.windows {
		if w.active {
			return w
		}
	}
	return nil
}

func (d *fakeDesktop) Activate(w Window) {
	d.activations++
	for _, fw := range d.windows {
		fw.active = fw == w
	}
	for _, fn := range d.activated {
		fn(w)
	}
}

func (d *fakeDesktop) OnWindowDestroyed(fn func(Window)) {
	d.destroyed = append(d.destroyed, fn)
}

func (d *fakeDesktop) OnWindowActivated(fn func(Window)) {
	d.activated = append(d.activated, fn)
}

func (d *fakeDesktop) destroy(w *fakeWindow) {
	for i, fw := range d.windows {
		if fw == w {
			d.windows = append(d.windows[:i], d.windows[i+1:]...)
			break
		}
	}
	for _, fn := range d.destroyed {
		fn(w)
	}
}

type deliveryLog struct {
	NopDelivery
	touchDowns []geom.Point
	touchUps   int
	keys       []uint32
	buttons    []geom.Point
	cancels    int
}

func (d *deliveryLog) TouchDown(_ Window, _ TouchEvent, local geom.Point) {
	d.touchDowns = append(d.touchDowns, local)
}

func (d *deliveryLog) TouchUp(Window, TouchEvent) { d.touchUps++ }

func (d *deliveryLog) Key(_ Window, ev KeyEvent) { d.keys = append(d.keys, ev.Key) }

func (d *deliveryLog) PointerButton(_ Window, _ PointerButtonEvent, local geom.Point) {
	d.buttons = append(d.buttons, local)
}

func (d *deliveryLog) TouchCancel(Window) { d.cancels++ }

type counter struct {
	touch.NopListener
	started, added, moved, removed, ended, canceled int
}

func (c *counter) SequenceStarted(*touch.Sequence) { c.started++ }
func (c *counter) PointAdded(touch.Point) { c.added++ }
func (c *counter) PointMoved(touch.Point) { c.moved++ }
func (c *counter) PointRemoved(touch.Point) { c.removed++ }
func (c *counter) SequenceEnded(*touch.Sequence) { c.ended++ }
func (c *counter) SequenceCanceled(*touch.Sequence) { c.canceled++ }

func twoOutputDesktop() *fakeDesktop {
	return &fakeDesktop{
		outputs: []geom.Rect{
			geom.R(0, 0, 1280, 1024),
			geom.R(1280, 0, 1280, 1024),
		},
	}
}

func newTestRedirection(t *testing.T) (*Redirection, *fakeDesktop, *deliveryLog, *counter) {
	t.Helper()
	d := twoOutputDesktop()
	dl := &deliveryLog{}
	r := NewRedirection(d, d, WithDelivery(dl), WithLifetime(d), WithActivation(d))
	c := &counter{}
	r.Sequence().AddListener(c)
	return r, d, dl, c
}

func TestRedirection_MultipleTouchPoints(t *testing.T) {
	r, d, dl, c := newTestRedirection(t)
	w := &fakeWindow{id: "w", geo: geom.R(100, 100, 500, 400), active: true}
	d.windows = append(d.windows, w)

	r.TouchDown(1, geom.Pt(125, 125), 1)
	assert.Equal(t, 1, c.started)
	assert.Equal(t, 0, c.added)
	seq := r.Sequence()
	require.Equal(t, 1, seq.Len())
	first, _ := seq.First()
	assert.Equal(t, geom.Pt(25, 25), first.Local)
	assert.Equal(t, []geom.Point{geom.Pt(25, 25)}, dl.touchDowns)

	r.TouchDown(2, geom.Pt(0, 0), 2)
	assert.Equal(t, 1, c.added)
	second, _ := seq.At(1)
	assert.Equal(t, geom.Pt(-100, -100), second.Local)

	r.TouchMotion(2, geom.Pt(100, 100), 3)
	assert.Equal(t, 1, c.moved)
	second, _ = seq.At(1)
	assert.Equal(t, geom.Pt(0, 0), second.Local)

	r.TouchUp(1, 4)
	assert.Equal(t, 1, c.removed)
	assert.Equal(t, 0, c.ended)
	assert.Equal(t, 2, seq.Len())

	r.TouchUp(2, 5)
	assert.Equal(t, 2, c.removed)
	assert.Equal(t, 1, c.ended)
	assert.Equal(t, 2, dl.touchUps)
	assert.Nil(t, r.TouchFocus())
}

func TestRedirection_Cancel(t *testing.T) {
	r, d, dl, c := newTestRedirection(t)
	d.windows = append(d.windows, &fakeWindow{id: "w", geo: geom.R(100, 100, 500, 400), active: true})

	r.TouchDown(1, geom.Pt(125, 125), 1)
	r.TouchCanceled()
	assert.Equal(t, 1, c.canceled)
	assert.Equal(t, 1, dl.cancels)

	r.TouchUp(1, 2)
	assert.Equal(t, 0, c.removed)
	assert.Equal(t, 0, dl.touchUps)
}

func TestRedirection_TouchActivatesInactiveWindow(t *testing.T) {
	r, d, _, c := newTestRedirection(t)
	c1 := &fakeWindow{id: "c1", geo: geom.R(0, 0, 100, 100)}
	c2 := &fakeWindow{id: "c2", geo: geom.R(200, 0, 100, 100), active: true}
	d.windows = append(d.windows, c1, c2)

	// A later filter consuming the event must not prevent activation.
	var log []string
	r.Chain().Append(newRecordingFilter("eater", true, &log))

	r.TouchDown(0, c1.geo.Center(), 1)
	assert.True(t, c1.IsActive())
	assert.False(t, c2.IsActive())
	assert.Equal(t, 1, c.started)
	assert.Equal(t, []string{"eater:touch_down"}, log)
}

func TestRedirection_PrependedFilterPreventsActivation(t *testing.T) {
	r, d, dl, c := newTestRedirection(t)
	c1 := &fakeWindow{id: "c1", geo: geom.R(0, 0, 100, 100)}
	d.windows = append(d.windows, c1)

	var log []string
	r.Chain().Prepend(newRecordingFilter("lock", true, &log))

	r.TouchDown(0, geom.Pt(50, 50), 1)
	assert.False(t, c1.IsActive())
	assert.Equal(t, 0, d.activations)
	assert.Empty(t, dl.touchDowns)
	assert.Equal(t, 1, c.started, "sequence state is tracked even when consumed")
}

func TestRedirection_PointerMotionClamped(t *testing.T) {
	r, _, _, _ := newTestRedirection(t)

	assert.Equal(t, geom.Pt(1280, 512), r.PointerPosition())
	r.PointerMotion(geom.Pt(5000, 5000), 1)
	assert.Equal(t, geom.Pt(2559, 1023), r.PointerPosition())
	r.PointerMotion(geom.Pt(-9000, -9000), 2)
	assert.Equal(t, geom.Pt(0, 0), r.PointerPosition())
}

func TestRedirection_AbsoluteMotionTracksScreen(t *testing.T) {
	r, _, _, _ := newTestRedirection(t)

	r.PointerMotionAbsolute(geom.Pt(0.5, 0.5), geom.Pt(1500, 20), 1)
	assert.Equal(t, 1, r.CurrentScreen())
	assert.Equal(t, geom.Pt(1500, 20), r.PointerPosition())

	r.TouchDown(3, geom.Pt(10, 10), 2)
	assert.Equal(t, 0, r.CurrentScreen())

	// Outside every output: position kept unclamped, screen unchanged.
	r.PointerMotionAbsolute(geom.Pt(0, 0), geom.Pt(-50, 3000), 3)
	assert.Equal(t, geom.Pt(-50, 3000), r.PointerPosition())
	assert.Equal(t, 0, r.CurrentScreen())
}

func TestRedirection_ClickActivatesAndDeliversLocal(t *testing.T) {
	r, d, dl, _ := newTestRedirection(t)
	w := &fakeWindow{id: "w", geo: geom.R(100, 100, 200, 200)}
	d.windows = append(d.windows, w)

	r.PointerMotionAbsolute(geom.Point{}, geom.Pt(150, 160), 1)
	r.PointerButtonChanged(BtnLeft, ButtonPressed, 2)

	assert.True(t, w.IsActive())
	assert.Equal(t, []geom.Point{geom.Pt(50, 60)}, dl.buttons)
}

func TestRedirection_KeyGoesToActiveWindow(t *testing.T) {
	r, d, dl, _ := newTestRedirection(t)

	r.KeyChanged(30, KeyPressed, 1)
	assert.Empty(t, dl.keys, "no active window")

	w := &fakeWindow{id: "w", geo: geom.R(0, 0, 10, 10), active: true}
	d.windows = append(d.windows, w)
	r.KeyChanged(30, KeyPressed, 2)
	assert.Equal(t, []uint32{30}, dl.keys)
	assert.Equal(t, Window(w), r.KeyboardFocus())
}

func TestRedirection_WindowDestroyedClearsFocus(t *testing.T) {
	r, d, _, _ := newTestRedirection(t)
	w := &fakeWindow{id: "w", geo: geom.R(0, 0, 500, 500), active: true}
	d.windows = append(d.windows, w)

	r.TouchDown(1, geom.Pt(10, 10), 1)
	r.KeyChanged(30, KeyPressed, 2)
	r.PointerMotionAbsolute(geom.Point{}, geom.Pt(20, 20), 3)
	require.NotNil(t, r.TouchFocus())
	require.NotNil(t, r.KeyboardFocus())
	require.NotNil(t, r.PointerFocus())

	d.destroy(w)

	assert.Nil(t, r.TouchFocus())
	assert.Nil(t, r.KeyboardFocus())
	assert.Nil(t, r.PointerFocus())

	// The sequence itself survives and ends normally.
	r.TouchUp(1, 4)
	assert.False(t, r.Sequence().IsActive())
}

func TestRedirection_TouchCapabilityLossCancels(t *testing.T) {
	r, _, _, c := newTestRedirection(t)

	r.CapabilityChanged(CapTouch, true)
	r.TouchDown(1, geom.Pt(1, 1), 1)
	r.CapabilityChanged(CapTouch, false)

	assert.Equal(t, 1, c.canceled)
	assert.False(t, r.HasCapability(CapTouch))

	r.CapabilityChanged(CapTouch, false)
	assert.Equal(t, 1, c.canceled)
}

func TestRedirection_PointerLossReleasesButtons(t *testing.T) {
	r, d, dl, _ := newTestRedirection(t)
	left := &fakeWindow{id: "left", geo: geom.R(0, 0, 500, 500)}
	right := &fakeWindow{id: "right", geo: geom.R(600, 600, 200, 200)}
	d.windows = append(d.windows, left, right)

	r.CapabilityChanged(CapPointer, true)
	r.PointerMotionAbsolute(geom.Point{}, geom.Pt(10, 10), 1)
	r.PointerButtonChanged(BtnLeft, ButtonPressed, 2)
	r.PointerMotionAbsolute(geom.Point{}, geom.Pt(700, 700), 3)
	require.Equal(t, Window(left), r.PointerFocus(), "focus is held while a button is down")

	// The release never arrives.
	r.CapabilityChanged(CapPointer, false)
	assert.Len(t, dl.buttons, 2, "a release was delivered")

	r.CapabilityChanged(CapPointer, true)
	r.PointerMotionAbsolute(geom.Point{}, geom.Pt(710, 710), 4)
	assert.Equal(t, Window(right), r.PointerFocus())
}

type capWatcher struct {
	BaseFilter
	changes []string
}

func (f *capWatcher) CapabilityChanged(c Capability, present bool) {
	f.changes = append(f.changes, fmt.Sprintf("%s=%t", c, present))
}

func TestRedirection_CapabilityReachesFilters(t *testing.T) {
	r, _, _, _ := newTestRedirection(t)
	f := &capWatcher{}
	r.Chain().Prepend(f)

	r.CapabilityChanged(CapKeyboard, true)
	r.CapabilityChanged(CapKeyboard, false)
	assert.Equal(t, []string{
		CapKeyboard.String() + "=true",
		CapKeyboard.String() + "=false",
	}, f.changes)
}

func TestRedirection_ActivationMovesKeyboardFocus(t *testing.T) {
	r, d, dl, _ := newTestRedirection(t)
	a := &fakeWindow{id: "a", geo: geom.R(0, 0, 100, 100), active: true}
	b := &fakeWindow{id: "b", geo: geom.R(200, 0, 100, 100)}
	d.windows = append(d.windows, a, b)

	r.KeyChanged(30, KeyPressed, 1)
	require.Equal(t, Window(a), r.KeyboardFocus())

	d.Activate(b)
	assert.Equal(t, Window(b), r.KeyboardFocus())

	r.WindowActivated(nil)
	assert.Equal(t, Window(b), r.KeyboardFocus())
	assert.Equal(t, []uint32{30}, dl.keys)
}

func TestRedirection_Metrics(t *testing.T) {
	d := twoOutputDesktop()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewRedirection(d, d, WithMetrics(m))

	r.TouchDown(1, geom.Pt(1, 1), 1)
	r.TouchUp(1, 2)
	r.TouchUp(1, 3)
	r.TouchDown(2, geom.Pt(1, 1), 4)
	r.TouchCanceled()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.events.WithLabelValues(KindTouchDown)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sequences.WithLabelValues("ended")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sequences.WithLabelValues("canceled")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dropped.WithLabelValues("stale_up")))
}
