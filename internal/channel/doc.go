// Package channel implements the resilient delivery channel to the local
// executor.
//
// The Channel owns at most one socket at a time and an unbounded outbound
// queue. Messages sent while the socket is not open are queued and flushed
// in FIFO order the next time a socket opens. Nothing reconnects in the
// background: the next Send (or EnsureConnected) after a close opens a new
// socket, so bursts of fired commands are what bring the channel back.
//
// State machine:
//
//	Disconnected -> Connecting -> Open -> Disconnected   (close)
//	                Connecting -> Disconnected           (failed open)
//
// An error event is reported but does not close the socket; only the close
// event (or Close) moves the channel back to Disconnected.
//
// Thread-safety: Channel is not safe for concurrent use. All methods and all
// Listener callbacks must run on the session's dispatch goroutine; the
// websocket transport posts its callbacks there.
package channel
