package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/npezzotti/pr-messenger/internal/testutil"
	"github.com/npezzotti/pr-messenger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoom(code string) types.Room {
	return types.Room{
		Code:    code,
		Created: types.Now(),
		Participants: []types.Participant{
			{Id: "p1", Name: "alice", CurrentRoom: code, Role: types.RoleCreator},
		},
		Messages: []types.Message{
			{
				Id:        "m1",
				Type:      types.MessageTypeSystem,
				Sender:    "System",
				Timestamp: types.Now(),
				System:    &types.SystemPayload{Content: "Room " + code + " created"},
			},
		},
		Active: true,
	}
}

func newTestFileStore(t *testing.T) *FileStore {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "rooms.json"), testutil.TestLogger(t))
	require.NoError(t, err, "expected file store to open")
	return fs
}

func TestFileStore_RoundTrip(t *testing.T) {
	fs := newTestFileStore(t)

	room := testRoom("123456")
	require.NoError(t, fs.Save(room), "expected save to succeed")

	rooms, err := fs.Load()
	require.NoError(t, err, "expected load to succeed")
	assert.Equal(t, map[string]types.Room{"123456": room}, rooms, "expected loaded mapping to deep-equal the saved room")
}

func TestFileStore_MergesRooms(t *testing.T) {
	fs := newTestFileStore(t)

	require.NoError(t, fs.Save(testRoom("111111")))
	require.NoError(t, fs.Save(testRoom("222222")))

	rooms, err := fs.Load()
	require.NoError(t, err)
	assert.Len(t, rooms, 2, "expected both rooms in the mapping")
}

func TestFileStore_LastWriteWins(t *testing.T) {
	fs := newTestFileStore(t)

	first := testRoom("123456")
	require.NoError(t, fs.Save(first))

	second := first
	second.Messages = append(second.Messages, types.Message{
		Id:        "m2",
		Type:      types.MessageTypeText,
		Sender:    "alice",
		Timestamp: types.Now(),
		Text:      &types.TextPayload{Content: "hello"},
	})
	require.NoError(t, fs.Save(second))

	room, ok, err := fs.Room("123456")
	require.NoError(t, err)
	assert.True(t, ok, "expected room to exist")
	assert.Len(t, room.Messages, 2, "expected the later write to win")
}

func TestFileStore_MissingFileReadsEmpty(t *testing.T) {
	fs := newTestFileStore(t)

	rooms, err := fs.Load()
	require.NoError(t, err, "expected missing store to read as empty")
	assert.Empty(t, rooms, "expected empty mapping")
}

func TestFileStore_MalformedDataReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	fs, err := NewFileStore(path, testutil.TestLogger(t))
	require.NoError(t, err)

	rooms, err := fs.Load()
	require.NoError(t, err, "expected malformed store to read as empty, not error")
	assert.Empty(t, rooms, "expected empty mapping")
}

func TestFileStore_RoomLookup(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.Save(testRoom("123456")))

	_, ok, err := fs.Room("999999")
	require.NoError(t, err)
	assert.False(t, ok, "expected unknown code to be absent")

	room, ok, err := fs.Room("123456")
	require.NoError(t, err)
	assert.True(t, ok, "expected saved room to be found")
	assert.Equal(t, "123456", room.Code, "expected code to match")
}

func TestFileStore_Watch(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.Watch(), "expected watch to start")
	defer fs.Close()

	// A write from "another tab" against the same path.
	other, err := NewFileStore(fs.path, testutil.TestLogger(t))
	require.NoError(t, err)
	require.NoError(t, other.Save(testRoom("123456")))

	select {
	case <-fs.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout: no change notification for external write")
	}
}
