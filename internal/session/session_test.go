package session

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/npezzotti/pr-messenger/internal/store"
	"github.com/npezzotti/pr-messenger/internal/testutil"
	"github.com/npezzotti/pr-messenger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.FileStore {
	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "rooms.json"), testutil.TestLogger(t))
	require.NoError(t, err, "expected file store to open")
	return fs
}

func newTestSession(t *testing.T, fs store.RoomStore) *Session {
	return NewSession(fs, testutil.TestLogger(t))
}

func TestCreateRoom(t *testing.T) {
	fs := newTestStore(t)
	sess := newTestSession(t, fs)

	room, err := sess.CreateRoom("alice")
	require.NoError(t, err, "expected create to succeed")

	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), room.Code, "expected a 6-digit room code")
	assert.True(t, room.Active, "expected a fresh room to be active")

	require.Len(t, room.Participants, 1, "expected exactly one participant")
	assert.Equal(t, types.RoleCreator, room.Participants[0].Role, "expected the caller to be the creator")
	assert.Equal(t, "alice", room.Participants[0].Name, "expected participant name to match")
	assert.Equal(t, room.Code, room.Participants[0].CurrentRoom, "expected membership to reference the room")

	require.Len(t, room.Messages, 1, "expected exactly one system message")
	require.Equal(t, types.MessageTypeSystem, room.Messages[0].Type, "expected a system message")
	assert.Equal(t, "Room "+room.Code+" created", room.Messages[0].System.Content, "expected the creation notice")

	stored, ok, err := fs.Room(room.Code)
	require.NoError(t, err)
	require.True(t, ok, "expected the room to be persisted")
	assert.Equal(t, room, stored, "expected stored room to deep-equal the created room")
}

func TestCreateRoom_EmptyName(t *testing.T) {
	sess := newTestSession(t, newTestStore(t))

	_, err := sess.CreateRoom("  ")
	assert.Equal(t, types.CodeValidation, types.CodeOf(err), "expected a validation error")
	assert.False(t, sess.InRoom(), "expected session to stay anonymous")
}

func TestJoinRoom(t *testing.T) {
	fs := newTestStore(t)
	creator := newTestSession(t, fs)
	room, err := creator.CreateRoom("alice")
	require.NoError(t, err)

	joiner := newTestSession(t, fs)
	joined, err := joiner.JoinRoom(room.Code, "bob")
	require.NoError(t, err, "expected join to succeed")

	require.Len(t, joined.Participants, 2, "expected two participants after join")
	assert.Equal(t, types.RoleParticipant, joined.Participants[1].Role, "expected the joiner to be a plain participant")

	last := joined.Messages[len(joined.Messages)-1]
	require.Equal(t, types.MessageTypeSystem, last.Type)
	assert.Equal(t, "bob joined the room", last.System.Content, "expected a join notice")
}

func TestJoinRoom_Errors(t *testing.T) {
	fs := newTestStore(t)
	creator := newTestSession(t, fs)
	room, err := creator.CreateRoom("alice")
	require.NoError(t, err)

	tcases := []struct {
		name     string
		code     string
		userName string
		errCode  types.ErrorCode
	}{
		{
			name:     "unknown code",
			code:     "000000",
			userName: "bob",
			errCode:  types.CodeRoomNotFound,
		},
		{
			name:     "wrong-length code",
			code:     "1234",
			userName: "bob",
			errCode:  types.CodeValidation,
		},
		{
			name:     "empty name",
			code:     room.Code,
			userName: " ",
			errCode:  types.CodeValidation,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			sess := newTestSession(t, fs)
			_, err := sess.JoinRoom(tc.code, tc.userName)
			assert.Equal(t, tc.errCode, types.CodeOf(err), "expected error code to match")
			assert.False(t, sess.InRoom(), "expected session to stay anonymous")
		})
	}
}

func TestJoinRoom_InactiveRoom(t *testing.T) {
	fs := newTestStore(t)
	creator := newTestSession(t, fs)
	room, err := creator.CreateRoom("alice")
	require.NoError(t, err)
	require.NoError(t, creator.LeaveRoom())

	joiner := newTestSession(t, fs)
	_, err = joiner.JoinRoom(room.Code, "bob")
	assert.Equal(t, types.CodeRoomNotFound, types.CodeOf(err), "expected an inactive room to read as not found")
}

func TestLeaveRoom_LastParticipantDeactivates(t *testing.T) {
	fs := newTestStore(t)
	sess := newTestSession(t, fs)
	room, err := sess.CreateRoom("alice")
	require.NoError(t, err)

	require.NoError(t, sess.LeaveRoom(), "expected leave to succeed")
	assert.False(t, sess.InRoom(), "expected session to return to anonymous")

	stored, ok, err := fs.Room(room.Code)
	require.NoError(t, err)
	require.True(t, ok, "expected the room to be retained in the store")
	assert.False(t, stored.Active, "expected the empty room to be deactivated")
	assert.Empty(t, stored.Participants, "expected no participants left")

	last := stored.Messages[len(stored.Messages)-1]
	require.Equal(t, types.MessageTypeSystem, last.Type)
	assert.Equal(t, "alice left the room", last.System.Content, "expected a leave notice")
}

func TestLeaveRoom_OthersRemain(t *testing.T) {
	fs := newTestStore(t)
	creator := newTestSession(t, fs)
	room, err := creator.CreateRoom("alice")
	require.NoError(t, err)

	joiner := newTestSession(t, fs)
	_, err = joiner.JoinRoom(room.Code, "bob")
	require.NoError(t, err)

	require.NoError(t, joiner.LeaveRoom())

	stored, ok, err := fs.Room(room.Code)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.Active, "expected the room to stay active")
	require.Len(t, stored.Participants, 1, "expected one participant left")
	assert.Equal(t, "alice", stored.Participants[0].Name)
}

func TestLeaveRoom_Anonymous(t *testing.T) {
	sess := newTestSession(t, newTestStore(t))
	assert.NoError(t, sess.LeaveRoom(), "expected leave to be a no-op when anonymous")
}

func TestRejoinAssignsNewParticipantId(t *testing.T) {
	fs := newTestStore(t)
	creator := newTestSession(t, fs)
	room, err := creator.CreateRoom("alice")
	require.NoError(t, err)

	joiner := newTestSession(t, fs)
	first, err := joiner.JoinRoom(room.Code, "bob")
	require.NoError(t, err)
	firstId := first.Participants[len(first.Participants)-1].Id

	require.NoError(t, joiner.LeaveRoom())

	second, err := joiner.JoinRoom(room.Code, "bob")
	require.NoError(t, err)
	secondId := second.Participants[len(second.Participants)-1].Id

	assert.NotEqual(t, firstId, secondId, "expected re-entry to mint a fresh participant id")
}

func TestSendText(t *testing.T) {
	t.Run("whitespace-only content is a no-op", func(t *testing.T) {
		fs := newTestStore(t)
		sess := newTestSession(t, fs)
		room, err := sess.CreateRoom("alice")
		require.NoError(t, err)

		require.NoError(t, sess.SendText("   \t  "))

		stored, _, err := fs.Room(room.Code)
		require.NoError(t, err)
		assert.Len(t, stored.Messages, len(room.Messages), "expected message count unchanged")
	})

	t.Run("appends a trimmed text message", func(t *testing.T) {
		fs := newTestStore(t)
		sess := newTestSession(t, fs)
		room, err := sess.CreateRoom("alice")
		require.NoError(t, err)

		require.NoError(t, sess.SendText("  hello there  "))

		stored, _, err := fs.Room(room.Code)
		require.NoError(t, err)
		require.Len(t, stored.Messages, len(room.Messages)+1)

		msg := stored.Messages[len(stored.Messages)-1]
		require.Equal(t, types.MessageTypeText, msg.Type)
		assert.Equal(t, "hello there", msg.Text.Content, "expected trimmed content")
		assert.Equal(t, "alice", msg.Sender, "expected sender name")
		assert.NotEmpty(t, msg.Id, "expected a message id")
	})

	t.Run("fails when anonymous", func(t *testing.T) {
		sess := newTestSession(t, newTestStore(t))
		err := sess.SendText("hello")
		assert.Equal(t, types.CodeValidation, types.CodeOf(err), "expected a validation error")
	})
}

func TestApplyRemote(t *testing.T) {
	fs := newTestStore(t)
	sess := newTestSession(t, fs)
	room, err := sess.CreateRoom("alice")
	require.NoError(t, err)

	updated := room
	updated.Messages = append(updated.Messages, types.Message{
		Id:        "ext",
		Type:      types.MessageTypeText,
		Sender:    "bob",
		Timestamp: types.Now(),
		Text:      &types.TextPayload{Content: "hi"},
	})
	sess.ApplyRemote(updated)

	current, ok := sess.CurrentRoom()
	require.True(t, ok)
	assert.Len(t, current.Messages, 2, "expected the remote snapshot to replace local state")

	// A snapshot for another room is ignored.
	other := updated
	other.Code = "999999"
	sess.ApplyRemote(other)
	current, _ = sess.CurrentRoom()
	assert.Equal(t, room.Code, current.Code, "expected foreign snapshot to be ignored")
}

func TestCreateRoom_StoreError(t *testing.T) {
	ms := &store.MockRoomStore{}
	ms.On("Load").Return(map[string]types.Room{}, errors.New("disk failure"))

	sess := NewSession(ms, testutil.TestLogger(t))
	_, err := sess.CreateRoom("alice")
	assert.ErrorContains(t, err, "disk failure", "expected the store error to propagate")
	assert.False(t, sess.InRoom())
}

func TestJoinRoom_StoreError(t *testing.T) {
	ms := &store.MockRoomStore{}
	ms.On("Room", "123456").Return(types.Room{}, false, errors.New("disk failure"))

	sess := NewSession(ms, testutil.TestLogger(t))
	_, err := sess.JoinRoom("123456", "bob")
	assert.ErrorContains(t, err, "disk failure", "expected the store error to propagate")
}

func Test_uniqueRoomCode(t *testing.T) {
	rooms := map[string]types.Room{
		"123456": {Code: "123456"},
	}

	code, err := uniqueRoomCode(rooms)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code, "expected a 6-digit code")
	assert.NotContains(t, rooms, code, "expected a code not already in use")
}
