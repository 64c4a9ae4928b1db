// Package protocol implements the read-verify-write protocol for encoding a
// student id onto a tag: read the tag first, detect a conflicting payload,
// write, then verify with a second read. One run owns the reader handle for
// its whole duration and always releases it.
package protocol

import (
	"sync/atomic"
	"time"

	"github.com/gnomeskillet/kiosk/internal/event"
	"github.com/gnomeskillet/kiosk/internal/tag"
)

// State is a phase of a protocol run.
type State int

const (
	StateIdle State = iota
	StateAwaitingFirstRead
	StateInspect
	StateConfirmOverwrite
	StateWriting
	StateAwaitingVerifyRead

	// Terminal states.
	StateVerified
	StateMismatch
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	StateIdle:               "Idle",
	StateAwaitingFirstRead:  "AwaitingFirstRead",
	StateInspect:            "Inspect",
	StateConfirmOverwrite:   "ConfirmOverwrite",
	StateWriting:            "Writing",
	StateAwaitingVerifyRead: "AwaitingVerifyRead",
	StateVerified:           "Verified",
	StateMismatch:           "Mismatch",
	StateCancelled:          "Cancelled",
	StateFailed:             "Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool { return s >= StateVerified }

// Identity is the roster record the protocol consumes. Only ID matters to the
// tag; Name rides along for log lines.
type Identity struct {
	ID   string
	Name string
}

// Confirmer answers the protocol's two user gates. Both are synchronous; the
// run blocks until the user decides.
type Confirmer interface {
	// ConfirmWriteAnyway gates ids that are not purely numeric digits.
	ConfirmWriteAnyway(id string) bool
	// ConfirmOverwrite gates replacing a different non-empty payload.
	ConfirmOverwrite(existing, target string) bool
}

// Outcome is the terminal result of one run.
type Outcome struct {
	State    State
	UID      string // UID of the last tag touched
	Existing string // cleaned payload found on the first read
	Verify   string // cleaned payload found on the verify read
	Err      error  // set only when State is StateFailed
}

// Runner executes protocol runs against a single reader handle. At most one
// run may be in flight; concurrent calls are rejected with tag.ErrBusy rather
// than interleaved.
type Runner struct {
	reader  tag.Reader
	confirm Confirmer
	events  chan<- event.Event
	busy    atomic.Bool
}

// NewRunner wires a runner. events may be nil when no shell is listening.
func NewRunner(reader tag.Reader, confirm Confirmer, events chan<- event.Event) *Runner {
	return &Runner{reader: reader, confirm: confirm, events: events}
}

// Busy reports whether a run currently owns the reader handle.
func (r *Runner) Busy() bool { return r.busy.Load() }

// Run executes one write protocol run for the given identity. It returns
// tag.ErrNotReady when no reader is attached and tag.ErrBusy when another run
// is in flight; otherwise the terminal Outcome tells the story and the error
// is nil (a Failed outcome is a result, not a call error).
func (r *Runner) Run(id Identity) (Outcome, error) {
	return r.RunWith(id, r.events)
}

// RunWith is Run with a per-call event channel, for callers that want to
// drain and close a fresh channel around each run.
func (r *Runner) RunWith(id Identity, events chan<- event.Event) (Outcome, error) {
	if r.reader == nil {
		return Outcome{}, tag.ErrNotReady
	}
	if !r.busy.CompareAndSwap(false, true) {
		return Outcome{}, tag.ErrBusy
	}
	defer r.busy.Store(false)

	emit(events, event.Event{Type: event.RunStarted, Path: id.Name, Payload: id.ID})

	// Non-numeric id gate, before the hardware is touched at all.
	if !isDigits(id.ID) && !r.confirm.ConfirmWriteAnyway(id.ID) {
		out := Outcome{State: StateCancelled}
		emit(events, event.Event{Type: event.RunCancelled, Payload: id.ID})
		return out, nil
	}

	out := r.attempt(id.ID, events)
	emitTerminal(events, out, id.ID)
	return out, nil
}

// attempt drives the state machine for one hardware attempt. The reader's
// cleanup hook runs exactly once on every exit path.
func (r *Runner) attempt(target string, events chan<- event.Event) Outcome {
	defer r.reader.Cleanup()

	// AwaitingFirstRead.
	emit(events, event.Event{Type: event.ReadPrompt})
	uid, raw, err := r.reader.Read()
	if err != nil {
		return Outcome{State: StateFailed, Err: err}
	}

	// Inspect.
	existing := tag.Clean(raw)
	emit(events, event.Event{Type: event.TagRead, UID: uid, Payload: existing})

	if existing != "" && existing != target {
		// ConfirmOverwrite: declining cancels with zero writes issued.
		if !r.confirm.ConfirmOverwrite(existing, target) {
			return Outcome{State: StateCancelled, UID: uid, Existing: existing}
		}
	}

	// Writing.
	emit(events, event.Event{Type: event.WriteStarted, UID: uid, Payload: target})
	if err := r.reader.Write(target); err != nil {
		return Outcome{State: StateFailed, UID: uid, Existing: existing, Err: err}
	}
	emit(events, event.Event{Type: event.WriteDone, UID: uid, Payload: target})

	// AwaitingVerifyRead: the same tag must be presented again.
	emit(events, event.Event{Type: event.VerifyPrompt})
	uid2, raw2, err := r.reader.Read()
	if err != nil {
		return Outcome{State: StateFailed, UID: uid, Existing: existing, Err: err}
	}

	verify := tag.Clean(raw2)
	if verify == target {
		return Outcome{State: StateVerified, UID: uid2, Existing: existing, Verify: verify}
	}
	// The write already happened; a mismatch is a reportable outcome, not a
	// failure.
	return Outcome{State: StateMismatch, UID: uid2, Existing: existing, Verify: verify}
}

func emitTerminal(events chan<- event.Event, out Outcome, target string) {
	switch out.State {
	case StateVerified:
		emit(events, event.Event{Type: event.Verified, UID: out.UID, Payload: out.Verify})
	case StateMismatch:
		emit(events, event.Event{Type: event.VerifyMismatch, UID: out.UID, Payload: out.Verify})
	case StateCancelled:
		emit(events, event.Event{Type: event.RunCancelled, UID: out.UID, Payload: target})
	case StateFailed:
		emit(events, event.Event{Type: event.RunFailed, UID: out.UID, Payload: target, Err: out.Err})
	}
}

func emit(events chan<- event.Event, ev event.Event) {
	if events == nil {
		return
	}
	ev.Timestamp = time.Now()
	events <- ev
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
