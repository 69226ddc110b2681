package linuxinput

import (
	evdev "github.com/gvalkov/golang-evdev"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
)

// Degrees per wheel detent, matching libinput's default.
const wheelDegrees = 15

type absRange struct {
	min int32
	max int32
}

func (r absRange) normalize(v int32) float64 {
	if r.max == r.min {
		return 0
	}
	return float64(v-r.min) / float64(r.max-r.min)
}

type slot struct {
	id        int32
	x, y      int32
	active    bool
	wasActive bool
	moved     bool
	restarted bool
}

// decoder turns the evdev stream of one device into raw connection events.
// Multi-touch devices are decoded with protocol B slots; single-touch
// devices use slot 0 driven by BTN_TOUCH.
type decoder struct {
	name  string
	class deviceClass
	xr    absRange
	yr    absRange

	slots    []slot
	cur      int
	dropping bool
	last     uint32

	relX, relY float64
	absX, absY int32
	absDirty   bool
}

func newDecoder(name string, class deviceClass, xr, yr absRange) *decoder {
	return &decoder{
		name:  name,
		class: class,
		xr:    xr,
		yr:    yr,
		slots: make([]slot, 1),
	}
}

func (d *decoder) feed(ev evdev.InputEvent, emit func(connection.Event)) {
	t := eventTime(ev)
	d.last = t
	if d.dropping {
		if ev.Type == evdev.EV_SYN && ev.Code == evdev.SYN_REPORT {
			d.dropping = false
		}
		return
	}

	switch ev.Type {
	case evdev.EV_SYN:
		switch ev.Code {
		case evdev.SYN_REPORT:
			d.flush(t, emit)
		case evdev.SYN_DROPPED:
			d.drop(t, emit)
		}
	case evdev.EV_KEY:
		d.key(ev, t, emit)
	case evdev.EV_REL:
		d.rel(ev, t, emit)
	case evdev.EV_ABS:
		d.abs(ev)
	}
}

func (d *decoder) key(ev evdev.InputEvent, t uint32, emit func(connection.Event)) {
	code := int(ev.Code)
	switch {
	case code == evdev.BTN_TOUCH:
		if d.class.touch && !d.class.multitouch {
			s := &d.slots[0]
			s.active = ev.Value != 0
			if s.active {
				s.x, s.y = d.absX, d.absY
			}
		}
	case code >= evdev.BTN_LEFT && code <= evdev.BTN_TASK:
		state := input.ButtonReleased
		if ev.Value != 0 {
			state = input.ButtonPressed
		}
		emit(connection.Event{
			Type:        connection.EventPointerButton,
			Device:      d.name,
			Time:        t,
			Button:      uint32(code),
			ButtonState: state,
		})
	case code < evdev.BTN_MISC:
		state := input.KeyReleased
		switch ev.Value {
		case 1:
			state = input.KeyPressed
		case 2:
			state = input.KeyRepeated
		}
		emit(connection.Event{
			Type:     connection.EventKeyboardKey,
			Device:   d.name,
			Time:     t,
			Key:      uint32(code),
			KeyState: state,
		})
	}
}

func (d *decoder) rel(ev evdev.InputEvent, t uint32, emit func(connection.Event)) {
	switch int(ev.Code) {
	case evdev.REL_X:
		d.relX += float64(ev.Value)
	case evdev.REL_Y:
		d.relY += float64(ev.Value)
	case evdev.REL_WHEEL:
		// Positive wheel values scroll up; axis deltas grow downwards.
		emit(connection.Event{
			Type:      connection.EventPointerAxis,
			Device:    d.name,
			Time:      t,
			Axis:      input.AxisVertical,
			AxisDelta: -float64(ev.Value) * wheelDegrees,
		})
	case evdev.REL_HWHEEL:
		emit(connection.Event{
			Type:      connection.EventPointerAxis,
			Device:    d.name,
			Time:      t,
			Axis:      input.AxisHorizontal,
			AxisDelta: float64(ev.Value) * wheelDegrees,
		})
	}
}

func (d *decoder) abs(ev evdev.InputEvent) {
	switch int(ev.Code) {
	case evdev.ABS_MT_SLOT:
		d.cur = int(ev.Value)
		for d.cur >= len(d.slots) {
			d.slots = append(d.slots, slot{})
		}
	case evdev.ABS_MT_TRACKING_ID:
		s := d.current()
		if ev.Value < 0 {
			s.active = false
			return
		}
		if s.active && s.id != ev.Value {
			s.restarted = true
		}
		s.id = ev.Value
		s.active = true
	case evdev.ABS_MT_POSITION_X:
		s := d.current()
		s.x = ev.Value
		s.moved = true
	case evdev.ABS_MT_POSITION_Y:
		s := d.current()
		s.y = ev.Value
		s.moved = true
	case evdev.ABS_X:
		d.absX = ev.Value
		d.absDirty = true
		if d.class.touch && !d.class.multitouch {
			d.slots[0].x = ev.Value
			d.slots[0].moved = true
		}
	case evdev.ABS_Y:
		d.absY = ev.Value
		d.absDirty = true
		if d.class.touch && !d.class.multitouch {
			d.slots[0].y = ev.Value
			d.slots[0].moved = true
		}
	}
}

func (d *decoder) current() *slot {
	if d.cur < 0 || d.cur >= len(d.slots) {
		d.cur = 0
	}
	return &d.slots[d.cur]
}

// flush emits the state accumulated since the previous SYN_REPORT.
func (d *decoder) flush(t uint32, emit func(connection.Event)) {
	if d.relX != 0 || d.relY != 0 {
		emit(connection.Event{
			Type:   connection.EventPointerMotion,
			Device: d.name,
			Time:   t,
			Delta:  geom.Pt(d.relX, d.relY),
		})
		d.relX, d.relY = 0, 0
	}

	if d.absDirty && d.class.absolutePointer {
		emit(connection.Event{
			Type:   connection.EventPointerMotionAbsolute,
			Device: d.name,
			Time:   t,
			Norm:   geom.Pt(d.xr.normalize(d.absX), d.yr.normalize(d.absY)),
			Output: connection.NoOutput,
		})
	}
	d.absDirty = false

	if !d.class.touch {
		return
	}
	touched := false
	for i := range d.slots {
		s := &d.slots[i]
		id := int32(i)
		switch {
		case s.restarted:
			emit(d.touchEvent(connection.EventTouchUp, id, s, t))
			emit(d.touchEvent(connection.EventTouchDown, id, s, t))
			touched = true
		case s.active && !s.wasActive:
			emit(d.touchEvent(connection.EventTouchDown, id, s, t))
			touched = true
		case !s.active && s.wasActive:
			emit(d.touchEvent(connection.EventTouchUp, id, s, t))
			touched = true
		case s.active && s.moved:
			emit(d.touchEvent(connection.EventTouchMotion, id, s, t))
			touched = true
		}
		s.wasActive = s.active
		s.moved = false
		s.restarted = false
	}
	if touched {
		emit(connection.Event{Type: connection.EventTouchFrame, Device: d.name, Time: t})
	}
}

// drop handles SYN_DROPPED: the kernel lost events, so contacts in flight
// can no longer be trusted. Everything up to the next SYN_REPORT is ignored.
func (d *decoder) drop(t uint32, emit func(connection.Event)) {
	d.relX, d.relY = 0, 0
	d.absDirty = false
	d.dropping = true
	d.cancel(t, emit)
}

// unplug cancels the contacts still down when the device goes away.
func (d *decoder) unplug(emit func(connection.Event)) {
	d.cancel(d.last, emit)
}

func (d *decoder) cancel(t uint32, emit func(connection.Event)) {
	active := false
	for i := range d.slots {
		if d.slots[i].wasActive || d.slots[i].active {
			active = true
		}
		d.slots[i] = slot{}
	}
	if active {
		emit(connection.Event{Type: connection.EventTouchCancel, Device: d.name, Time: t})
	}
}

func (d *decoder) touchEvent(typ connection.EventType, id int32, s *slot, t uint32) connection.Event {
	return connection.Event{
		Type:    typ,
		Device:  d.name,
		Time:    t,
		TouchID: id,
		Norm:    geom.Pt(d.xr.normalize(s.x), d.yr.normalize(s.y)),
		Output:  connection.NoOutput,
	}
}

func eventTime(ev evdev.InputEvent) uint32 {
	ms := int64(ev.Time.Sec)*1000 + int64(ev.Time.Usec)/1000
	return uint32(ms)
}
