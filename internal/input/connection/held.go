package connection

import (
	"sort"
)

type heldCode struct {
	device string
	code   uint32
}

type touchKey struct {
	device string
	id     int32
}

// held tracks the keys, buttons and contacts that are down, per device, so
// they can be released when the connection is deactivated or the device
// goes away. It also maps device contact ids to seat-wide ids: two devices
// may both report contact 0, the touch sequence must not see that twice.
//
// held is main loop state.
type held struct {
	keys    map[heldCode]struct{}
	buttons map[heldCode]struct{}
	touches map[touchKey]int32
	seat    map[int32]touchKey
	time    uint32
}

func newHeld() *held {
	return &held{
		keys:    make(map[heldCode]struct{}),
		buttons: make(map[heldCode]struct{}),
		touches: make(map[touchKey]int32),
		seat:    make(map[int32]touchKey),
	}
}

func (h *held) setKey(device string, code uint32, down bool) {
	set(h.keys, heldCode{device, code}, down)
}

func (h *held) setButton(device string, code uint32, down bool) {
	set(h.buttons, heldCode{device, code}, down)
}

func set(m map[heldCode]struct{}, k heldCode, down bool) {
	if down {
		m[k] = struct{}{}
		return
	}
	delete(m, k)
}

// touchDown returns the seat id for a new contact. The device id is kept
// when it is free so single-device ids pass through unchanged. A contact
// that is already down keeps its seat id.
func (h *held) touchDown(device string, id int32) int32 {
	k := touchKey{device, id}
	if seat, ok := h.touches[k]; ok {
		return seat
	}
	seat := id
	if _, taken := h.seat[seat]; taken || seat < 0 {
		seat = 0
		for {
			if _, taken := h.seat[seat]; !taken {
				break
			}
			seat++
		}
	}
	h.touches[k] = seat
	h.seat[seat] = k
	return seat
}

// touchID returns the seat id of a contact that is down. Unknown contacts
// map to -1, which no sequence ever holds.
func (h *held) touchID(device string, id int32) int32 {
	if seat, ok := h.touches[touchKey{device, id}]; ok {
		return seat
	}
	return -1
}

func (h *held) touchUp(device string, id int32) int32 {
	k := touchKey{device, id}
	seat, ok := h.touches[k]
	if !ok {
		return -1
	}
	delete(h.touches, k)
	delete(h.seat, seat)
	return seat
}

func (h *held) hasTouches(device string) bool {
	for k := range h.touches {
		if k.device == device {
			return true
		}
	}
	return false
}

func (h *held) clearTouches() {
	clear(h.touches)
	clear(h.seat)
}

// takeKeys removes the keys held by device, or every key when all is set,
// and returns the codes no remaining device still holds.
func (h *held) takeKeys(device string, all bool) []uint32 {
	return take(h.keys, device, all)
}

func (h *held) takeButtons(device string, all bool) []uint32 {
	return take(h.buttons, device, all)
}

func take(m map[heldCode]struct{}, device string, all bool) []uint32 {
	var codes []uint32
	for k := range m {
		if all || k.device == device {
			codes = append(codes, k.code)
			delete(m, k)
		}
	}
	out := codes[:0]
	for _, code := range codes {
		if !heldElsewhere(m, code) {
			out = append(out, code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return dedupe(out)
}

func heldElsewhere(m map[heldCode]struct{}, code uint32) bool {
	for k := range m {
		if k.code == code {
			return true
		}
	}
	return false
}

func dedupe(sorted []uint32) []uint32 {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
