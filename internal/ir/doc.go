// Package ir provides the shared value types of the regeneration core.
//
// This package contains type definitions and their canonical encodings only.
// All other internal packages import ir; ir imports nothing internal, which
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float values inside canonical JSON - geometric quantities are
//     stored as fixed-point nano-units (see Nano/FromNano)
//   - Operation parameters and input references are closed sum types,
//     matched exhaustively by every consumer
//   - All JSON keys use snake_case
//   - Element IDs are derived from history content, never from wall-clock
//     time or randomness
package ir
