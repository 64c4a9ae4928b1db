package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		want string
		typ  Type
	}{
		{want: "RunStarted", typ: RunStarted},
		{want: "ReadPrompt", typ: ReadPrompt},
		{want: "TagRead", typ: TagRead},
		{want: "WriteStarted", typ: WriteStarted},
		{want: "WriteDone", typ: WriteDone},
		{want: "VerifyPrompt", typ: VerifyPrompt},
		{want: "Verified", typ: Verified},
		{want: "VerifyMismatch", typ: VerifyMismatch},
		{want: "RunCancelled", typ: RunCancelled},
		{want: "RunFailed", typ: RunFailed},
		{want: "ScanComplete", typ: ScanComplete},
		{want: "FolderCreated", typ: FolderCreated},
		{want: "FileCreated", typ: FileCreated},
		{want: "FileUpdated", typ: FileUpdated},
		{want: "FileSkipped", typ: FileSkipped},
		{want: "FileFailed", typ: FileFailed},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestTypeStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Type(999).String())
	assert.Equal(t, "Unknown", Type(0).String())
}

func TestTerminal(t *testing.T) {
	for _, typ := range []Type{Verified, VerifyMismatch, RunCancelled, RunFailed} {
		assert.True(t, typ.Terminal(), typ.String())
	}
	for _, typ := range []Type{RunStarted, TagRead, WriteDone, FileCreated, ScanComplete} {
		assert.False(t, typ.Terminal(), typ.String())
	}
}

func TestEventZeroValue(t *testing.T) {
	var e Event
	assert.Equal(t, Type(0), e.Type)
	assert.True(t, e.Timestamp.IsZero())
	assert.Empty(t, e.Path)
	assert.Zero(t, e.Size)
	assert.Zero(t, e.Total)
	assert.Zero(t, e.TotalSize)
	require.NoError(t, e.Err)
}

func TestNewStampsTimestamp(t *testing.T) {
	before := time.Now()
	e := New(TagRead)
	assert.Equal(t, TagRead, e.Type)
	assert.False(t, e.Timestamp.Before(before))
}
