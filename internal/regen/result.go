package regen

import (
	"fmt"
	"slices"
)

// Status is the overall outcome of a regeneration.
type Status int

const (
	// Success: every replayed operation succeeded.
	Success Status = iota

	// PartialFailure: at least one operation failed and at least one
	// succeeded.
	PartialFailure

	// CriticalFailure: operations failed and none succeeded, or the
	// document itself is unusable.
	CriticalFailure
)

// String returns the status name used in logs, the CLI and the store.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case PartialFailure:
		return "partial_failure"
	case CriticalFailure:
		return "critical_failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "success":
		return Success, nil
	case "partial_failure":
		return PartialFailure, nil
	case "critical_failure":
		return CriticalFailure, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Failure records one failed operation.
type Failure struct {
	OpID    string    `json:"op_id"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Result is the outcome of one regeneration call. Each call returns a
// fresh value; nothing accumulates across calls.
type Result struct {
	// RunID correlates log lines of one regeneration. Not part of any
	// element ID.
	RunID string `json:"run_id"`

	Status Status    `json:"status"`
	Failed []Failure `json:"failed"`

	// Applied is the cursor the history was replayed to.
	Applied int `json:"applied"`

	// Succeeded and Skipped count operations below Applied that ran
	// successfully or were suppressed.
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`

	// LiveBodies are the body IDs live after replay, sorted.
	LiveBodies []string `json:"live_bodies"`

	// Elements is the number of live element IDs after replay.
	Elements int `json:"elements"`
}

// FailedOps returns the op IDs of Failed, in history order.
func (r Result) FailedOps() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.OpID)
	}
	return out
}

// FailureOf returns the failure recorded for opID.
func (r Result) FailureOf(opID string) (Failure, bool) {
	i := slices.IndexFunc(r.Failed, func(f Failure) bool { return f.OpID == opID })
	if i < 0 {
		return Failure{}, false
	}
	return r.Failed[i], true
}

func statusOf(failed, succeeded int) Status {
	switch {
	case failed == 0:
		return Success
	case succeeded == 0:
		return CriticalFailure
	default:
		return PartialFailure
	}
}
