package key

import (
	"fmt"
	"strings"
)

// Code is a Linux key code as found in input-event-codes.h.
type Code uint32

// Key codes used by the compositor. The list is not exhaustive; any
// kernel key code can be carried in a Code.
const (
	CodeNone       Code = 0
	CodeEsc        Code = 1
	Code1          Code = 2
	Code2          Code = 3
	Code3          Code = 4
	Code4          Code = 5
	Code5          Code = 6
	Code6          Code = 7
	Code7          Code = 8
	Code8          Code = 9
	Code9          Code = 10
	Code0          Code = 11
	CodeBackspace  Code = 14
	CodeTab        Code = 15
	CodeQ          Code = 16
	CodeW          Code = 17
	CodeE          Code = 18
	CodeR          Code = 19
	CodeT          Code = 20
	CodeY          Code = 21
	CodeU          Code = 22
	CodeI          Code = 23
	CodeO          Code = 24
	CodeP          Code = 25
	CodeEnter      Code = 28
	CodeLeftCtrl   Code = 29
	CodeA          Code = 30
	CodeS          Code = 31
	CodeD          Code = 32
	CodeF          Code = 33
	CodeG          Code = 34
	CodeH          Code = 35
	CodeJ          Code = 36
	CodeK          Code = 37
	CodeL          Code = 38
	CodeLeftShift  Code = 42
	CodeZ          Code = 44
	CodeX          Code = 45
	CodeC          Code = 46
	CodeV          Code = 47
	CodeB          Code = 48
	CodeN          Code = 49
	CodeM          Code = 50
	CodeRightShift Code = 54
	CodeLeftAlt    Code = 56
	CodeSpace      Code = 57
	CodeF1         Code = 59
	CodeF2         Code = 60
	CodeF3         Code = 61
	CodeF4         Code = 62
	CodeF5         Code = 63
	CodeF6         Code = 64
	CodeF7         Code = 65
	CodeF8         Code = 66
	CodeF9         Code = 67
	CodeF10        Code = 68
	CodeF11        Code = 87
	CodeF12        Code = 88
	CodeRightCtrl  Code = 97
	CodeSysRq      Code = 99
	CodeRightAlt   Code = 100
	CodeHome       Code = 102
	CodeUp         Code = 103
	CodePageUp     Code = 104
	CodeLeft       Code = 105
	CodeRight      Code = 106
	CodeEnd        Code = 107
	CodeDown       Code = 108
	CodePageDown   Code = 109
	CodeInsert     Code = 110
	CodeDelete     Code = 111
	CodeMute       Code = 113
	CodeVolumeDown Code = 114
	CodeVolumeUp   Code = 115
	CodePower      Code = 116
	CodeLeftMeta   Code = 125
	CodeRightMeta  Code = 126
	CodeSleep      Code = 142
	CodeBrightDown Code = 224
	CodeBrightUp   Code = 225
)

var codeNames = map[Code]string{
	CodeEsc: "Escape", CodeBackspace: "Backspace", CodeTab: "Tab",
	CodeEnter: "Enter", CodeSpace: "Space",
	CodeLeftCtrl: "LeftCtrl", CodeRightCtrl: "RightCtrl",
	CodeLeftShift: "LeftShift", CodeRightShift: "RightShift",
	CodeLeftAlt: "LeftAlt", CodeRightAlt: "RightAlt",
	CodeLeftMeta: "LeftMeta", CodeRightMeta: "RightMeta",
	CodeF1: "F1", CodeF2: "F2", CodeF3: "F3", CodeF4: "F4",
	CodeF5: "F5", CodeF6: "F6", CodeF7: "F7", CodeF8: "F8",
	CodeF9: "F9", CodeF10: "F10", CodeF11: "F11", CodeF12: "F12",
	CodeSysRq: "Print", CodeHome: "Home", CodeEnd: "End",
	CodeUp: "Up", CodeDown: "Down", CodeLeft: "Left", CodeRight: "Right",
	CodePageUp: "PageUp", CodePageDown: "PageDown",
	CodeInsert: "Insert", CodeDelete: "Delete",
	CodeMute: "Mute", CodeVolumeDown: "VolumeDown", CodeVolumeUp: "VolumeUp",
	CodePower: "Power", CodeSleep: "Sleep",
	CodeBrightDown: "BrightnessDown", CodeBrightUp: "BrightnessUp",
}

// letters in alphabetical order.
var letterCodes = [26]Code{
	CodeA, CodeB, CodeC, CodeD, CodeE, CodeF, CodeG, CodeH, CodeI,
	CodeJ, CodeK, CodeL, CodeM, CodeN, CodeO, CodeP, CodeQ, CodeR,
	CodeS, CodeT, CodeU, CodeV, CodeW, CodeX, CodeY, CodeZ,
}

// digits from 0 to 9.
var digitCodes = [10]Code{
	Code0, Code1, Code2, Code3, Code4, Code5, Code6, Code7, Code8, Code9,
}

// nameToCode maps lowercase names to codes, built from the tables above.
var nameToCode = func() map[string]Code {
	m := make(map[string]Code, len(codeNames)+len(letterCodes)+len(digitCodes)+8)
	for c, name := range codeNames {
		m[strings.ToLower(name)] = c
	}
	for i, c := range letterCodes {
		m[string(rune('a'+i))] = c
	}
	for i, c := range digitCodes {
		m[string(rune('0'+i))] = c
	}
	// Aliases.
	m["esc"] = CodeEsc
	m["return"] = CodeEnter
	m["cr"] = CodeEnter
	m["bs"] = CodeBackspace
	m["del"] = CodeDelete
	m["ins"] = CodeInsert
	m["pgup"] = CodePageUp
	m["pgdn"] = CodePageDown
	return m
}()

// String returns a human-readable name for the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	for i, lc := range letterCodes {
		if lc == c {
			return string(rune('A' + i))
		}
	}
	for i, dc := range digitCodes {
		if dc == c {
			return string(rune('0' + i))
		}
	}
	return fmt.Sprintf("Key(%d)", uint32(c))
}

// CodeFromName returns the code for a key name (case-insensitive).
// Returns CodeNone if the name is not recognized.
func CodeFromName(name string) Code {
	if c, ok := nameToCode[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return CodeNone
}

// CodeForRune returns the key that types r on a US layout and whether
// Shift is needed. Only letters, digits and space are known.
func CodeForRune(r rune) (c Code, shift bool, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return letterCodes[r-'a'], false, true
	case r >= 'A' && r <= 'Z':
		return letterCodes[r-'A'], true, true
	case r >= '0' && r <= '9':
		return digitCodes[r-'0'], false, true
	case r == ' ':
		return CodeSpace, false, true
	}
	return CodeNone, false, false
}
