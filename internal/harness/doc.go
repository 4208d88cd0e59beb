// Package harness runs playback scenarios against the scheduler and the
// delivery channel with a scripted executor.
//
// A scenario parses a document, then walks a list of steps: clock ticks,
// executor connection events, manual sends and feature toggles. Everything
// runs on the test goroutine with a fake transport and a manual keepalive
// ticker, so the resulting trace is identical on every run and can be
// compared against a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: reconnect_delivers_backlog
//	description: "Commands fired while the executor is down arrive in order"
//	document: |
//	  <!-- exec time=2 -->
//	  ```sh
//	  echo one
//	  ```
//	  <!-- /exec -->
//	steps:
//	  - action: tick
//	    at: 3
//	  - action: accept
//	assertions:
//	  - type: sent_order
//	    contents: ["echo one"]
//	  - type: final_state
//	    state: open
//	    pending: 0
//
// document_file may name a file relative to the scenario instead of an
// inline document.
//
// # Step Actions
//
//   - tick: the playback clock reports position "at"
//   - accept: the executor accepts the current connection attempt
//   - fail: the current socket reports "error"
//   - drop: the executor closes the current socket
//   - send: a manual execute of "code"
//   - keepalive: the keepalive ticker fires once
//   - toggle: switch "feature" (exec or scroll) to "on"
//   - reconnect: an explicit connection attempt
//
// # Assertion Types
//
//   - sent_contains: a message with the given type/content/file reached the executor
//   - sent_order: execute contents reached the executor in this order
//   - sent_count: exactly "count" non-ping messages reached the executor
//   - final_state: channel state and pending count after the last step
//   - journal_count: the journal holds "count" deliveries (optionally of one source)
//
// # Determinism
//
// Every trace event gets a sequence number from a counter owned by the run.
// Each scenario gets a fresh in-memory journal.
package harness
