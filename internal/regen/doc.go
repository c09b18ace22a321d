// Package regen implements the regeneration engine.
//
// The engine replays an operation history against a fresh kernel, in
// order, up to an applied cursor. Each successful operation's change-set
// is folded into the element identity map, so references to faces by
// element ID stay valid after upstream edits. A failing operation never
// aborts the replay: it is recorded, its result bodies stop being live,
// and everything downstream that needs them fails as UPSTREAM_FAILED
// while independent branches continue.
//
// # Replay
//
//	reset kernel, new identity map
//	load base bodies, name their elements "<body>/<kind>-<k>"
//	build body dependency graph, mark cycles
//	for op in history[:n]:
//	    suppressed  -> skip
//	    in a cycle  -> CYCLE_DETECTED
//	    resolve     -> UNRESOLVED_REFERENCE | UPSTREAM_FAILED
//	    dispatch    -> KERNEL_ERROR
//	    success     -> map.Update, rebind live bodies
//
// # Concurrency
//
// An Engine is NOT safe for concurrent use. It owns its kernel and identity
// map; the scheduler is the only caller in the CLI. Cancellation is
// checked between operations only, never inside a kernel call.
package regen
