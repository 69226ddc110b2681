// Package input routes device input to windows.
//
// Raw device events arrive from a connection.Connection on the main loop
// and are handed to a Redirection. The Redirection updates its own state
// first (pointer position, current output, touch sequence), then passes
// the event through a FilterChain and, when no filter handled it, delivers
// it to the focused window.
//
// # Architecture
//
// The input system consists of several cooperating components:
//
//   - Redirection: entry points for normalized events, focus tracking
//   - FilterChain: ordered filters, each able to consume an event
//   - touch.Sequence: the multi-touch state machine
//   - Activation filter: activates the window under a press or touch
//
// # Filters
//
// Filters are appended or prepended to the chain. The activation filter is
// installed when the Redirection is created, so filters prepended later
// run before it. Changing the chain while an event is being dispatched is
// deferred until the dispatch returns.
//
// # Usage
//
//	r := input.NewRedirection(ws, ws, input.WithLifetime(ws))
//	r.Chain().Prepend(lockscreen.New(state))
//	conn.AddObserver(r)
//
//	// On the main loop
//	conn.ProcessEvents()
package input
