// Package key names Linux key codes and parses key combinations.
//
// This package defines the types used to describe keyboard shortcuts:
//
//   - Code: a Linux key code as delivered by evdev
//   - Modifier: a set of modifier keys (Ctrl, Alt, Shift, Meta)
//   - Combo: a key code plus the modifiers that must be held
//   - Tracker: follows which modifiers are currently held
//
// # Combo Specifications
//
// Combos can be written in two formats:
//
//   - Modifier style: "Meta+L", "Ctrl+Alt+Delete", "Power"
//   - Short style: "<M-l>", "<C-A-Delete>"
package key
