package key

import "strings"

// Modifier represents keyboard modifier keys.
type Modifier uint8

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0

	// ModShift indicates the Shift key.
	ModShift Modifier = 1 << (iota - 1)

	// ModCtrl indicates the Control key.
	ModCtrl

	// ModAlt indicates the Alt key.
	ModAlt

	// ModMeta indicates the Meta (Super, logo) key.
	ModMeta
)

// Has returns true if m contains the specified modifier.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// With returns a new Modifier with the specified modifier added.
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// Without returns a new Modifier with the specified modifier removed.
func (m Modifier) Without(mod Modifier) Modifier {
	return m &^ mod
}

// IsEmpty returns true if no modifiers are set.
func (m Modifier) IsEmpty() bool {
	return m == ModNone
}

// String returns a human-readable representation like "Ctrl+Alt".
func (m Modifier) String() string {
	if m == ModNone {
		return ""
	}

	var parts []string
	if m.Has(ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "Alt")
	}
	if m.Has(ModShift) {
		parts = append(parts, "Shift")
	}
	if m.Has(ModMeta) {
		parts = append(parts, "Meta")
	}
	return strings.Join(parts, "+")
}

// modifierNameMap maps modifier names (lowercase) to Modifier values.
var modifierNameMap = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"c":       ModCtrl,
	"alt":     ModAlt,
	"a":       ModAlt,
	"shift":   ModShift,
	"s":       ModShift,
	"meta":    ModMeta,
	"m":       ModMeta,
	"super":   ModMeta,
	"logo":    ModMeta,
	"win":     ModMeta,
}

// ModifierFromName returns the Modifier for a given name (case-insensitive).
// Returns ModNone if the name is not recognized.
func ModifierFromName(name string) Modifier {
	if m, ok := modifierNameMap[strings.ToLower(name)]; ok {
		return m
	}
	return ModNone
}

// ModifierForCode returns the modifier a key code stands for, or ModNone.
func ModifierForCode(c Code) Modifier {
	switch c {
	case CodeLeftCtrl, CodeRightCtrl:
		return ModCtrl
	case CodeLeftShift, CodeRightShift:
		return ModShift
	case CodeLeftAlt, CodeRightAlt:
		return ModAlt
	case CodeLeftMeta, CodeRightMeta:
		return ModMeta
	default:
		return ModNone
	}
}

// Tracker follows the modifier keys currently held. Left and right keys
// are tracked separately so releasing one keeps the modifier active while
// the other is still down.
type Tracker struct {
	held map[Code]struct{}
}

// NewTracker creates a tracker with nothing held.
func NewTracker() *Tracker {
	return &Tracker{held: make(map[Code]struct{})}
}

// Update records a key press or release. It returns true if c is a
// modifier key.
func (t *Tracker) Update(c Code, pressed bool) bool {
	if ModifierForCode(c) == ModNone {
		return false
	}
	if pressed {
		t.held[c] = struct{}{}
	} else {
		delete(t.held, c)
	}
	return true
}

// Modifiers returns the modifiers currently held.
func (t *Tracker) Modifiers() Modifier {
	var m Modifier
	for c := range t.held {
		m = m.With(ModifierForCode(c))
	}
	return m
}

// Reset forgets every held key.
func (t *Tracker) Reset() {
	clear(t.held)
}
