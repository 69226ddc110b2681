package backend

import (
	"sort"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
	"github.com/dshills/waystorm/internal/input/key"
)

// Frame is a snapshot of polled input state. Positions are normalized.
type Frame struct {
	Cursor    geom.Point
	HasCursor bool
	Buttons   map[uint32]bool
	Keys      map[key.Code]bool
	Wheel     geom.Point
	Touches   map[int32]geom.Point
}

// FrameTracker turns successive snapshots into events for backends that
// poll their input state once per tick.
type FrameTracker struct {
	emit *Emitter
	prev Frame
}

// NewFrameTracker creates a tracker that emits through e.
func NewFrameTracker(e *Emitter) *FrameTracker {
	return &FrameTracker{emit: e}
}

// Update compares f against the previous snapshot and emits the
// difference: keys, then pointer, then touch. Touch changes end with a
// frame event.
func (t *FrameTracker) Update(f Frame) {
	for _, c := range diffKeys(t.prev.Keys, f.Keys) {
		t.emit.Key(c, input.KeyReleased)
	}
	for _, c := range diffKeys(f.Keys, t.prev.Keys) {
		t.emit.Key(c, input.KeyPressed)
	}

	if f.HasCursor && (!t.prev.HasCursor || f.Cursor != t.prev.Cursor) {
		t.emit.MotionAbsolute(f.Cursor, connection.NoOutput)
	}
	for _, b := range diffButtons(t.prev.Buttons, f.Buttons) {
		t.emit.Button(b, input.ButtonReleased)
	}
	for _, b := range diffButtons(f.Buttons, t.prev.Buttons) {
		t.emit.Button(b, input.ButtonPressed)
	}
	if f.Wheel.Y != 0 {
		t.emit.Axis(input.AxisVertical, f.Wheel.Y)
	}
	if f.Wheel.X != 0 {
		t.emit.Axis(input.AxisHorizontal, f.Wheel.X)
	}

	touched := false
	for _, id := range touchIDs(t.prev.Touches) {
		if _, ok := f.Touches[id]; !ok {
			t.emit.TouchUp(id)
			touched = true
		}
	}
	for _, id := range touchIDs(f.Touches) {
		pos := f.Touches[id]
		old, ok := t.prev.Touches[id]
		switch {
		case !ok:
			t.emit.TouchDown(id, pos, connection.NoOutput)
			touched = true
		case old != pos:
			t.emit.TouchMotion(id, pos, connection.NoOutput)
			touched = true
		}
	}
	if touched {
		t.emit.TouchFrame()
	}

	t.prev = f
}

// Reset releases everything held in the previous snapshot.
func (t *FrameTracker) Reset() {
	t.Update(Frame{})
}

func diffKeys(a, b map[key.Code]bool) []key.Code {
	var out []key.Code
	for c, down := range a {
		if down && !b[c] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func diffButtons(a, b map[uint32]bool) []uint32 {
	var out []uint32
	for btn, down := range a {
		if down && !b[btn] {
			out = append(out, btn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func touchIDs(m map[int32]geom.Point) []int32 {
	ids := make([]int32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
