package protocol

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnomeskillet/kiosk/internal/event"
	"github.com/gnomeskillet/kiosk/internal/tag"
)

// fakeReader scripts read results and records calls.
type fakeReader struct {
	mu       sync.Mutex
	reads    []readResult // consumed in order
	writeErr error
	writes   []string
	cleanups int

	// blockRead, when non-nil, is closed to release a blocked Read.
	blockRead chan struct{}
}

type readResult struct {
	uid  string
	text string
	err  error
}

func (f *fakeReader) Read() (string, string, error) {
	if f.blockRead != nil {
		<-f.blockRead
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reads) == 0 {
		return "", "", &tag.TransferError{Op: "read", Err: errors.New("no tag presented")}
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	return r.uid, r.text, r.err
}

func (f *fakeReader) Write(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, text)
	return nil
}

func (f *fakeReader) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
}

// fakeConfirmer scripts gate answers and counts prompts.
type fakeConfirmer struct {
	writeAnyway bool
	overwrite   bool

	writeAnywayCalls int
	overwriteCalls   int
}

func (f *fakeConfirmer) ConfirmWriteAnyway(string) bool {
	f.writeAnywayCalls++
	return f.writeAnyway
}

func (f *fakeConfirmer) ConfirmOverwrite(string, string) bool {
	f.overwriteCalls++
	return f.overwrite
}

func run(t *testing.T, r *fakeReader, c *fakeConfirmer, id Identity) (Outcome, []event.Event) {
	t.Helper()
	events := make(chan event.Event, 64)
	runner := NewRunner(r, c, events)

	out, err := runner.Run(id)
	require.NoError(t, err)
	close(events)

	var all []event.Event
	for ev := range events {
		all = append(all, ev)
	}
	return out, all
}

func TestEmptyTagWritesWithoutPrompt(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: "\x00\x00"},
		{uid: "uid1", text: "123\x00"},
	}}
	confirm := &fakeConfirmer{}

	out, _ := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateVerified, out.State)
	assert.Zero(t, confirm.overwriteCalls)
	assert.Equal(t, []string{"123"}, reader.writes)
}

func TestMatchingPayloadSkipsOverwritePrompt(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: "123\x00\x00"},
		{uid: "uid1", text: "123"},
	}}
	confirm := &fakeConfirmer{}

	out, _ := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateVerified, out.State)
	assert.Zero(t, confirm.overwriteCalls)
	assert.Equal(t, []string{"123"}, reader.writes)
}

func TestDecliningOverwriteCancelsWithZeroWrites(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: "999"},
	}}
	confirm := &fakeConfirmer{overwrite: false}

	out, events := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, "999", out.Existing)
	assert.Equal(t, 1, confirm.overwriteCalls)
	assert.Empty(t, reader.writes)
	assert.Equal(t, 1, reader.cleanups)
	assert.Equal(t, event.RunCancelled, events[len(events)-1].Type)
}

func TestAcceptedOverwriteProceeds(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: "999"},
		{uid: "uid1", text: "123"},
	}}
	confirm := &fakeConfirmer{overwrite: true}

	out, _ := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateVerified, out.State)
	assert.Equal(t, "999", out.Existing)
	assert.Equal(t, []string{"123"}, reader.writes)
}

func TestVerifyMismatchIsNotFailed(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: ""},
		{uid: "uid2", text: "456"},
	}}
	confirm := &fakeConfirmer{}

	out, events := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateMismatch, out.State)
	assert.Equal(t, "456", out.Verify)
	assert.Equal(t, "uid2", out.UID)
	require.NoError(t, out.Err)
	assert.Equal(t, event.VerifyMismatch, events[len(events)-1].Type)
	// The write itself happened.
	assert.Equal(t, []string{"123"}, reader.writes)
}

func TestFirstReadFailureIsFailed(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{err: &tag.TransferError{Op: "read", Err: errors.New("no tag presented")}},
	}}
	confirm := &fakeConfirmer{}

	out, events := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateFailed, out.State)
	var terr *tag.TransferError
	require.ErrorAs(t, out.Err, &terr)
	assert.Empty(t, reader.writes)
	assert.Equal(t, 1, reader.cleanups)
	assert.Equal(t, event.RunFailed, events[len(events)-1].Type)
}

func TestWriteFailureIsFailed(t *testing.T) {
	reader := &fakeReader{
		reads:    []readResult{{uid: "uid1", text: ""}},
		writeErr: &tag.TransferError{Op: "write", Err: errors.New("transfer failed")},
	}
	confirm := &fakeConfirmer{}

	out, _ := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 1, reader.cleanups)
}

func TestVerifyReadFailureIsFailed(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: ""},
		{err: &tag.TransferError{Op: "read", Err: errors.New("tag removed")}},
	}}
	confirm := &fakeConfirmer{}

	out, _ := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateFailed, out.State)
	// The write went through before the verify read failed.
	assert.Equal(t, []string{"123"}, reader.writes)
	assert.Equal(t, 1, reader.cleanups)
}

func TestNonNumericGateDeclined(t *testing.T) {
	reader := &fakeReader{}
	confirm := &fakeConfirmer{writeAnyway: false}

	out, _ := run(t, reader, confirm, Identity{ID: "AB-12"})
	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, 1, confirm.writeAnywayCalls)
	// The hardware was never touched: no reads, no cleanup hook.
	assert.Empty(t, reader.writes)
	assert.Zero(t, reader.cleanups)
}

func TestNonNumericGateAccepted(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: ""},
		{uid: "uid1", text: "AB-12"},
	}}
	confirm := &fakeConfirmer{writeAnyway: true}

	out, _ := run(t, reader, confirm, Identity{ID: "AB-12"})
	assert.Equal(t, StateVerified, out.State)
	assert.Equal(t, 1, confirm.writeAnywayCalls)
}

func TestNumericIDSkipsGate(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: ""},
		{uid: "uid1", text: "123"},
	}}
	confirm := &fakeConfirmer{}

	out, _ := run(t, reader, confirm, Identity{ID: "123"})
	assert.Equal(t, StateVerified, out.State)
	assert.Zero(t, confirm.writeAnywayCalls)
}

func TestCleanupRunsOncePerAttempt(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: ""},
		{uid: "uid1", text: "123"},
	}}
	runner := NewRunner(reader, &fakeConfirmer{}, nil)

	_, err := runner.Run(Identity{ID: "123"})
	require.NoError(t, err)
	assert.Equal(t, 1, reader.cleanups)

	reader.reads = []readResult{
		{uid: "uid1", text: ""},
		{uid: "uid1", text: "123"},
	}
	_, err = runner.Run(Identity{ID: "123"})
	require.NoError(t, err)
	assert.Equal(t, 2, reader.cleanups)
}

func TestConcurrentRunRejectedAsBusy(t *testing.T) {
	block := make(chan struct{})
	reader := &fakeReader{
		blockRead: block,
		reads: []readResult{
			{uid: "uid1", text: ""},
			{uid: "uid1", text: "123"},
		},
	}
	runner := NewRunner(reader, &fakeConfirmer{}, nil)

	started := make(chan struct{})
	donech := make(chan Outcome, 1)
	go func() {
		close(started)
		out, err := runner.Run(Identity{ID: "123"})
		require.NoError(t, err)
		donech <- out
	}()

	<-started
	// Wait for the first run to take the busy gate and block in Read.
	require.Eventually(t, runner.Busy, time.Second, time.Millisecond)

	_, err := runner.Run(Identity{ID: "456"})
	require.ErrorIs(t, err, tag.ErrBusy)

	close(block)
	out := <-donech
	assert.Equal(t, StateVerified, out.State)
	assert.Equal(t, []string{"123"}, reader.writes)
}

func TestNilReaderIsNotReady(t *testing.T) {
	runner := NewRunner(nil, &fakeConfirmer{}, nil)
	_, err := runner.Run(Identity{ID: "123"})
	require.ErrorIs(t, err, tag.ErrNotReady)
}

func TestEventSequenceHappyPath(t *testing.T) {
	reader := &fakeReader{reads: []readResult{
		{uid: "uid1", text: "123\x00"},
		{uid: "uid1", text: "123"},
	}}

	_, events := run(t, reader, &fakeConfirmer{}, Identity{ID: "123", Name: "Alice Smith"})
	var types []event.Type
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []event.Type{
		event.RunStarted, event.ReadPrompt, event.TagRead,
		event.WriteStarted, event.WriteDone, event.VerifyPrompt, event.Verified,
	}, types)
	assert.Equal(t, "Alice Smith", events[0].Path)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Verified", StateVerified.String())
	assert.Equal(t, "Mismatch", StateMismatch.String())
	assert.Equal(t, "Unknown", State(99).String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateWriting.Terminal())
}
