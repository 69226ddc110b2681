package key

import (
	"errors"
	"testing"
)

func TestParseSingleKey(t *testing.T) {
	tests := []struct {
		spec string
		want Code
	}{
		{"a", CodeA},
		{"L", CodeL},
		{"1", Code1},
		{"0", Code0},
		{"Power", CodePower},
		{"escape", CodeEsc},
		{"Esc", CodeEsc},
		{"F12", CodeF12},
		{"Return", CodeEnter},
		{"BrightnessUp", CodeBrightUp},
	}

	for _, tt := range tests {
		combo, err := Parse(tt.spec)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", tt.spec, err)
			continue
		}
		if combo.Code != tt.want {
			t.Errorf("Parse(%q) code = %v, want %v", tt.spec, combo.Code, tt.want)
		}
		if !combo.Modifiers.IsEmpty() {
			t.Errorf("Parse(%q) modifiers = %v, want none", tt.spec, combo.Modifiers)
		}
	}
}

func TestParseModifierStyle(t *testing.T) {
	tests := []struct {
		spec     string
		wantCode Code
		wantMod  Modifier
	}{
		{"Meta+L", CodeL, ModMeta},
		{"Ctrl+Alt+Delete", CodeDelete, ModCtrl | ModAlt},
		{"super + Enter", CodeEnter, ModMeta},
		{"Shift+Ctrl+F4", CodeF4, ModShift | ModCtrl},
	}

	for _, tt := range tests {
		combo, err := Parse(tt.spec)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", tt.spec, err)
			continue
		}
		if combo.Code != tt.wantCode || combo.Modifiers != tt.wantMod {
			t.Errorf("Parse(%q) = %v, want %v", tt.spec, combo, Combo{tt.wantCode, tt.wantMod})
		}
	}
}

func TestParseShortStyle(t *testing.T) {
	combo, err := Parse("<M-l>")
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if combo != (Combo{Code: CodeL, Modifiers: ModMeta}) {
		t.Errorf("Parse(<M-l>) = %v", combo)
	}

	combo, err = Parse("<C-A-Delete>")
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if combo != (Combo{Code: CodeDelete, Modifiers: ModCtrl | ModAlt}) {
		t.Errorf("Parse(<C-A-Delete>) = %v", combo)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		spec string
		want error
	}{
		{"", ErrEmptySpec},
		{"   ", ErrEmptySpec},
		{"Hyper+L", ErrInvalidSpec},
		{"Ctrl+", ErrInvalidSpec},
		{"<>", ErrInvalidSpec},
		{"<X-l>", ErrInvalidSpec},
		{"NoSuchKey", ErrInvalidSpec},
	}

	for _, tt := range tests {
		_, err := Parse(tt.spec)
		if !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q) error = %v, want %v", tt.spec, err, tt.want)
		}
	}
}

func TestComboString(t *testing.T) {
	if got := MustParse("ctrl+alt+delete").String(); got != "Ctrl+Alt+Delete" {
		t.Errorf("String() = %q", got)
	}
	if got := MustParse("power").String(); got != "Power" {
		t.Errorf("String() = %q", got)
	}
	if got := MustParse("meta+a").String(); got != "Meta+A" {
		t.Errorf("String() = %q", got)
	}
}

func TestCodeString(t *testing.T) {
	if got := Code(999).String(); got != "Key(999)" {
		t.Errorf("String() = %q", got)
	}
	if got := Code7.String(); got != "7" {
		t.Errorf("String() = %q", got)
	}
}

func TestCodeForRune(t *testing.T) {
	tests := []struct {
		r     rune
		code  Code
		shift bool
		ok    bool
	}{
		{'a', CodeA, false, true},
		{'Z', CodeZ, true, true},
		{'5', Code5, false, true},
		{' ', CodeSpace, false, true},
		{'?', CodeNone, false, false},
	}

	for _, tt := range tests {
		code, shift, ok := CodeForRune(tt.r)
		if code != tt.code || shift != tt.shift || ok != tt.ok {
			t.Errorf("CodeForRune(%q) = %v, %v, %v; want %v, %v, %v", tt.r, code, shift, ok, tt.code, tt.shift, tt.ok)
		}
	}
}
