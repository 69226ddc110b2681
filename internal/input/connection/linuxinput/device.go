package linuxinput

import (
	evdev "github.com/gvalkov/golang-evdev"

	"github.com/dshills/waystorm/internal/input"
)

// deviceClass is what the pipeline cares about in a device.
type deviceClass struct {
	keyboard        bool
	pointer         bool
	touch           bool
	multitouch      bool
	absolutePointer bool
}

// capabilities lists the seat capabilities the device contributes to.
func (c deviceClass) capabilities() []input.Capability {
	var caps []input.Capability
	if c.keyboard {
		caps = append(caps, input.CapKeyboard)
	}
	if c.pointer {
		caps = append(caps, input.CapPointer)
	}
	if c.touch {
		caps = append(caps, input.CapTouch)
	}
	return caps
}

func (c deviceClass) empty() bool {
	return !c.keyboard && !c.pointer && !c.touch
}

// codeSet is the set of codes a device supports for one event type.
type codeSet map[int]struct{}

func (s codeSet) has(code int) bool {
	_, ok := s[code]
	return ok
}

func (s codeSet) hasRange(lo, hi int) bool {
	for code := range s {
		if code >= lo && code <= hi {
			return true
		}
	}
	return false
}

func codeSets(dev *evdev.InputDevice) map[int]codeSet {
	sets := make(map[int]codeSet)
	for capType, codes := range dev.Capabilities {
		set := make(codeSet, len(codes))
		for _, c := range codes {
			set[c.Code] = struct{}{}
		}
		sets[capType.Type] = set
	}
	return sets
}

// classify derives the device class from its advertised event codes.
// direct tells whether the device has INPUT_PROP_DIRECT, which separates
// touchscreens from touchpads.
func classify(sets map[int]codeSet, direct bool) deviceClass {
	keys := sets[evdev.EV_KEY]
	rels := sets[evdev.EV_REL]
	abs := sets[evdev.EV_ABS]

	var c deviceClass
	c.keyboard = keys.hasRange(1, evdev.BTN_MISC-1)
	if rels.has(evdev.REL_X) && rels.has(evdev.REL_Y) {
		c.pointer = true
	}

	c.multitouch = abs.has(evdev.ABS_MT_POSITION_X) && abs.has(evdev.ABS_MT_POSITION_Y)
	singleAbs := abs.has(evdev.ABS_X) && abs.has(evdev.ABS_Y)
	switch {
	case direct && (c.multitouch || (singleAbs && keys.has(evdev.BTN_TOUCH))):
		c.touch = true
	case c.multitouch:
		// Touchpad: buttons only.
		c.multitouch = false
		c.pointer = true
	case singleAbs && keys.has(evdev.BTN_LEFT):
		c.pointer = true
		c.absolutePointer = true
	}
	if keys.hasRange(evdev.BTN_LEFT, evdev.BTN_TASK) {
		c.pointer = true
	}
	return c
}
