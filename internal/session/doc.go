// Package session wires a document, a playback clock and a delivery channel
// into one playback session.
//
// # Lifecycle
//
// Start runs the startup sequence once: wait for the document to be ready,
// fetch it (primary ref, then fallbacks), parse, render, build the
// scheduler, subscribe to the clock and record the session in the journal.
// A failure at any step aborts Start; nothing is retried.
//
// # Threading
//
// The Coordinator owns a loop.Loop. Clock updates, socket callbacks,
// keepalive ticks and every public action are posted to it, so the channel
// and scheduler are only ever touched by the loop goroutine.
package session
