// Package scheduler serializes regeneration requests onto one worker
// goroutine.
//
// The geometry kernel and the identity map it feeds are not safe for
// concurrent mutation, so every regeneration runs on the scheduler's
// single worker. Submit and Cancel may be called from any goroutine; they
// only touch the queue under a short-held lock and never wait for kernel
// work.
//
// # Job lifecycle
//
//	Submit ─► Queued ─► Running ─► Completed
//	            │          │
//	            │          └─ Cancel: runs to completion, Completion.Cancelled
//	            └─ Cancel: removed, callback never invoked
//
// Jobs run strictly in submission order. Callbacks run on the worker
// goroutine; a callback that blocks stalls the scheduler. Only the most
// recent finished jobs keep a state; older ones report Unknown.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/regen"
)

// JobID identifies a submitted job. IDs increase monotonically from 1.
type JobID uint64

// InvalidJob is returned by Submit after Shutdown.
const InvalidJob JobID = 0

// defaultRetain is how many finished jobs keep their state.
const defaultRetain = 256

// ToCursor requests replay to the document's own applied cursor.
const ToCursor = -1

// Request describes one regeneration.
type Request struct {
	Doc document.History

	// To is the applied count to replay to. ToCursor uses the document's
	// cursor.
	To int
}

// Completion is delivered to a job's callback when it finishes.
type Completion struct {
	ID     JobID
	Result regen.Result

	// Cancelled is true when Cancel was called while the job was running.
	// The result is complete but the caller asked to discard it.
	Cancelled bool
}

// Callback receives a job's completion on the worker goroutine.
type Callback func(Completion)

// Runner executes one regeneration. *regen.Engine satisfies it through
// ForEngine.
type Runner interface {
	Run(ctx context.Context, req Request) regen.Result
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req Request) regen.Result

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, req Request) regen.Result {
	return f(ctx, req)
}

// ForEngine returns a Runner that drives e.
func ForEngine(e *regen.Engine) Runner {
	return RunnerFunc(func(ctx context.Context, req Request) regen.Result {
		if req.To == ToCursor {
			return e.Regenerate(ctx, req.Doc)
		}
		return e.RegenerateToAppliedCount(ctx, req.Doc, req.To)
	})
}

// JobState is the lifecycle state of a job.
type JobState int

const (
	Unknown JobState = iota
	Queued
	Running
	Completed
	Cancelled
)

// String returns the state name.
func (s JobState) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Scheduler is a single-writer FIFO over a Runner.
type Scheduler struct {
	runner Runner
	q      *jobQueue

	mu       sync.Mutex
	next     JobID
	states   map[JobID]JobState
	finished []JobID // finished jobs still in states, oldest first
	retain   int
	running  JobID
	revoked  bool // Cancel was called on the running job
	stopping bool

	stopOnce sync.Once
	done     chan struct{}
}

// New starts a scheduler with one worker goroutine.
func New(r Runner) *Scheduler {
	s := &Scheduler{
		runner: r,
		q:      newJobQueue(),
		next:   1,
		states: make(map[JobID]JobState),
		retain: defaultRetain,
		done:   make(chan struct{}),
	}
	go s.work()
	return s
}

// Submit enqueues a regeneration and returns its job ID, or InvalidJob
// if the scheduler is shutting down. cb may be nil.
func (s *Scheduler) Submit(req Request, cb Callback) JobID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		slog.Warn("job rejected: scheduler stopped")
		return InvalidJob
	}
	id := s.next
	if !s.q.Enqueue(job{id: id, req: req, cb: cb}) {
		return InvalidJob
	}
	s.next++
	s.states[id] = Queued
	slog.Debug("job queued", "job_id", uint64(id), "pending", s.q.Len())
	return id
}

// Cancel cancels a job. A queued job is removed and its callback is never
// invoked. A running job finishes and its Completion is marked cancelled.
// Returns false if the job is unknown or already finished.
func (s *Scheduler) Cancel(id JobID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.states[id] {
	case Queued:
		if !s.q.Remove(id) {
			return false
		}
		s.finish(id, Cancelled)
		slog.Debug("job cancelled", "job_id", uint64(id), "state", "queued")
		return true
	case Running:
		if id != s.running {
			return false
		}
		s.revoked = true
		slog.Debug("job cancelled", "job_id", uint64(id), "state", "running")
		return true
	default:
		return false
	}
}

// State returns the lifecycle state of id.
func (s *Scheduler) State(id JobID) JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

// Pending returns the number of queued jobs.
func (s *Scheduler) Pending() int {
	return s.q.Len()
}

// Shutdown stops accepting jobs, waits for the running job to finish,
// drops queued jobs without invoking their callbacks and joins the worker.
// Idempotent and safe to call from any goroutine except a callback.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		dropped := s.q.Drain()
		for _, j := range dropped {
			s.finish(j.id, Cancelled)
		}
		s.mu.Unlock()

		s.q.Close()
		if len(dropped) > 0 {
			slog.Info("scheduler dropped queued jobs", "count", len(dropped))
		}
	})
	<-s.done
}

// finish records a terminal state and forgets the oldest finished jobs
// beyond the retention limit. Callers hold s.mu.
func (s *Scheduler) finish(id JobID, state JobState) {
	s.states[id] = state
	s.finished = append(s.finished, id)
	for len(s.finished) > s.retain {
		delete(s.states, s.finished[0])
		s.finished = s.finished[1:]
	}
}

func (s *Scheduler) work() {
	defer close(s.done)
	for {
		j, ok := s.dequeue()
		if !ok {
			return
		}
		s.execute(j)
	}
}

// dequeue blocks until a job is available or the queue is closed.
// Marks the job running under the same lock Cancel takes, so a job is
// either removed from the queue or started, never both.
func (s *Scheduler) dequeue() (job, bool) {
	for {
		s.mu.Lock()
		if s.stopping {
			s.mu.Unlock()
			return job{}, false
		}
		j, ok := s.q.TryDequeue()
		if ok {
			s.running = j.id
			s.revoked = false
			s.states[j.id] = Running
			s.mu.Unlock()
			return j, true
		}
		s.mu.Unlock()

		if _, open := <-s.q.Wait(); !open {
			return job{}, false
		}
	}
}

func (s *Scheduler) execute(j job) {
	slog.Debug("job started", "job_id", uint64(j.id))
	res := s.runner.Run(context.Background(), j.req)

	s.mu.Lock()
	cancelled := s.revoked
	s.running = InvalidJob
	s.revoked = false
	if cancelled {
		s.finish(j.id, Cancelled)
	} else {
		s.finish(j.id, Completed)
	}
	s.mu.Unlock()

	slog.Debug("job finished",
		"job_id", uint64(j.id),
		"status", res.Status.String(),
		"cancelled", cancelled)

	if j.cb != nil {
		j.cb(Completion{ID: j.id, Result: res, Cancelled: cancelled})
	}
}
