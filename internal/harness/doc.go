// Package harness runs regeneration scenarios against the reference kernel.
//
// A scenario is a YAML file holding an inline history document, an optional
// rollback cursor, expectations on the regeneration result and a list of
// assertions on the element identity map.
//
// # Scenario Format
//
//	name: fillet_keeps_face_names
//	description: "A fillet modifies its face in place"
//	history:
//	  id: plate
//	  sketches:
//	    s1:
//	      regions: [[[0, 0], [10, 0], [10, 10], [0, 10]]]
//	  operations:
//	    - {id: pad, type: extrude, input: {sketch: s1}, params: {distance: 5}, result: [body1]}
//	    - {id: round, type: fillet, input: {body: body1, face: pad/face-1}, params: {radius: 1}, result: [body1]}
//	to: 2                       # optional, defaults to the document cursor
//	edits:                      # optional, applied before a second run
//	  - {op: pad, params: {distance: 8}}
//	expect:
//	  status: success
//	  failed: []
//	  live_bodies: [body1]
//	  ids_contain: [pad/face-1]
//	assertions:
//	  - {type: id_kind, id: pad/face-1, kind: face}
//	  - {type: stable_ids}
//
// # Determinism
//
// Every run uses a fixed run token (run_token, default "scenario-run") and a
// fresh in-memory store, so identity maps can be compared byte for byte
// against golden files under testdata/golden.
//
// # Persistence
//
// Each run is written through the store (document, identity-map snapshot,
// run log) and read back; a snapshot that does not reproduce the live map
// fails the scenario.
package harness
