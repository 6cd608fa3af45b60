// Package testing provides simulation helpers for deterministic testing of
// the rtcevent notification core.
//
// # Overview
//
// Tests drive the engine with synthetic collaborator signals and verify the
// ordered stream of notifications an application observer would see. This
// package supplies the two pieces every such test needs: an observer that
// records what it is given, and a clock whose tickers only fire when the test
// advances it.
//
// Import it under an alias to avoid clashing with the standard library:
//
//	import testsim "github.com/opd-ai/rtcevent/testing"
//
// # Recording observers
//
// EventRecorder implements every handler group of package event and appends
// each delivery to an event log:
//
//	rec := testsim.NewEventRecorder()
//	token, _ := engine.RegisterObserver(rec)
//	defer engine.UnregisterObserver(token)
//
//	engine.LoginRoom("r1", user)
//	require.True(t, rec.WaitForKind("room_state_update", 1, time.Second))
//
// The log holds event values, so assertions can compare whole events.
//
// # Manual clock
//
// ManualClock implements clock.TimeProvider. Its tickers fire only from
// Advance, which blocks until each due tick has been received, so a sampler
// under test produces exactly one sample per elapsed period.
//
// # Thread Safety
//
// All methods on EventRecorder and ManualClock are safe for concurrent use
// from multiple goroutines.
package testing
