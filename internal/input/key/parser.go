package key

import (
	"errors"
	"fmt"
	"strings"
)

// Parse errors
var (
	ErrEmptySpec   = errors.New("empty key specification")
	ErrInvalidSpec = errors.New("invalid key specification")
)

// Combo is a key plus the modifiers that must be held with it.
type Combo struct {
	Code      Code
	Modifiers Modifier
}

// String returns the combo in modifier style, e.g. "Ctrl+Alt+Delete".
func (c Combo) String() string {
	if c.Modifiers.IsEmpty() {
		return c.Code.String()
	}
	return c.Modifiers.String() + "+" + c.Code.String()
}

// Parse parses a key specification string into a Combo.
//
// Supported formats:
//   - Single key: "a", "F1", "Power", "Escape"
//   - With modifiers: "Meta+L", "Ctrl+Alt+Delete"
//   - Short style: "<M-l>", "<C-A-Delete>"
func Parse(spec string) (Combo, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Combo{}, ErrEmptySpec
	}

	// Short style <...> notation
	if strings.HasPrefix(spec, "<") && strings.HasSuffix(spec, ">") {
		return parseShortStyle(spec[1 : len(spec)-1])
	}

	// Modifier+key format
	if strings.Contains(spec, "+") {
		return parseModifierStyle(spec)
	}

	return parseKeyWithModifiers(spec, ModNone)
}

// MustParse is like Parse but panics on error. Intended for tables of
// built-in combos.
func MustParse(spec string) Combo {
	c, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return c
}

// parseShortStyle parses notation like "C-s", "M-A-Delete".
func parseShortStyle(inner string) (Combo, error) {
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return Combo{}, ErrInvalidSpec
	}

	parts := strings.Split(inner, "-")
	var mods Modifier
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimSpace(p)
		mod := ModifierFromName(p)
		if mod == ModNone {
			return Combo{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidSpec, p)
		}
		mods = mods.With(mod)
	}
	return parseKeyWithModifiers(parts[len(parts)-1], mods)
}

// parseModifierStyle parses "Ctrl+S" style notation.
func parseModifierStyle(spec string) (Combo, error) {
	parts := strings.Split(spec, "+")
	if len(parts) < 2 {
		return Combo{}, ErrInvalidSpec
	}

	var mods Modifier
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimSpace(p)
		mod := ModifierFromName(p)
		if mod == ModNone {
			return Combo{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidSpec, p)
		}
		mods = mods.With(mod)
	}
	return parseKeyWithModifiers(parts[len(parts)-1], mods)
}

func parseKeyWithModifiers(keyPart string, mods Modifier) (Combo, error) {
	keyPart = strings.TrimSpace(keyPart)
	if keyPart == "" {
		return Combo{}, ErrInvalidSpec
	}
	code := CodeFromName(keyPart)
	if code == CodeNone {
		return Combo{}, fmt.Errorf("%w: unknown key %q", ErrInvalidSpec, keyPart)
	}
	return Combo{Code: code, Modifiers: mods}, nil
}
