// Package config loads the waystorm configuration.
//
// Configuration comes from three layers, lowest priority first:
//
//  1. Built-in defaults (Default)
//  2. The configuration file, TOML or YAML by extension
//  3. WAYSTORM_* environment variables (ApplyEnv)
//
// Load applies all three and validates the result. Watcher reloads the
// file when it changes on disk.
//
// Example file:
//
//	[log]
//	level = "debug"
//
//	[backend]
//	type = "native"
//
//	[input]
//	grab = true
//	double_tap_interval = "300ms"
//
//	[[outputs]]
//	name = "panel"
//	width = 1080
//	height = 1920
//
//	[[shortcuts]]
//	keys = "Meta+L"
//	action = "session.lock"
package config
