// Package naming implements the element identity map: durable names for
// the faces, edges and vertices of regenerated bodies.
//
// This is the persistent naming layer of the regeneration core. Every
// topological sub-entity the engine cares about has an ir.ElementID that
// survives edits upstream in the history. When the kernel reports that a
// shape was modified, split, generated from another shape or deleted,
// Map.Update propagates the existing names onto the new topology and
// mints names for whatever is genuinely new.
//
// # Naming rules
//
//	modified (1 output)   id kept, shape and descriptor rebound
//	split (N outputs)     output 0 keeps id; output k gets "<id>/<kind>-split-<k>"
//	generated             "<source>/<kind>-gen-<k>", sources = ids of the input
//	deleted               entry removed, id retired forever
//	untraceable output    "<opID>/<kind>-<k>", no sources
//
// A derived name that is already live or retired gets a "~2", "~3", ...
// suffix, so an ID string is never handed out twice.
//
// Split outputs are ordered by canonical fingerprint (geometry type, then
// point x/y/z, then measure, then kernel enumeration index), so the
// primary output does not depend on incidental kernel iteration order.
//
// # Concurrency
//
// A Map is NOT safe for concurrent use. It is mutated only by the
// regeneration engine, which runs on the scheduler's single worker
// goroutine (or on a caller that otherwise guarantees exclusive access).
//
// # Determinism
//
// Given equal change-sets and op IDs, Update produces byte-identical IDs.
// All iteration over internal maps goes through sorted keys, and String
// emits canonical JSON, so two equal maps always serialize identically.
package naming
