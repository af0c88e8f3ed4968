// Package session owns the current user's room membership and every
// mutation of the room record: create, join, leave and message
// composition. Each mutation persists the room before returning, so
// other sessions converge on the next poll.
package session

import (
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/npezzotti/pr-messenger/internal/store"
	"github.com/npezzotti/pr-messenger/internal/types"
	"github.com/teris-io/shortid"
)

const (
	systemSender = "System"
	// codeAttempts bounds regeneration when a freshly generated room
	// code collides with an existing room.
	codeAttempts = 10
)

type Session struct {
	store store.RoomStore
	log   *log.Logger

	mu   sync.RWMutex
	user *types.Participant
	room *types.Room
}

func NewSession(s store.RoomStore, logger *log.Logger) *Session {
	return &Session{
		store: s,
		log:   logger,
	}
}

// CurrentRoom returns a copy of the active room, if any.
func (s *Session) CurrentRoom() (types.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return types.Room{}, false
	}
	return *s.room, true
}

// CurrentUser returns the participant record for this session, if any.
func (s *Session) CurrentUser() (types.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return types.Participant{}, false
	}
	return *s.user, true
}

func (s *Session) InRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room != nil
}

// ParticipantCount reports the number of participants in the active
// room, zero when anonymous.
func (s *Session) ParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return 0
	}
	return len(s.room.Participants)
}

// CreateRoom allocates a fresh 6-digit code, persists a new active
// room containing the caller as creator and one system message, and
// enters it.
func (s *Session) CreateRoom(name string) (types.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Room{}, types.NewValidationError("please enter your name")
	}

	rooms, err := s.store.Load()
	if err != nil {
		return types.Room{}, err
	}

	code, err := uniqueRoomCode(rooms)
	if err != nil {
		return types.Room{}, err
	}

	user := types.Participant{
		Id:          shortid.MustGenerate(),
		Name:        name,
		CurrentRoom: code,
		Role:        types.RoleCreator,
	}

	room := types.Room{
		Code:    code,
		Created: types.Now(),
		Messages: []types.Message{
			systemMessage("Room " + code + " created"),
		},
		Participants: []types.Participant{user},
		Active:       true,
	}

	if err := s.store.Save(room); err != nil {
		return types.Room{}, err
	}

	s.mu.Lock()
	s.user = &user
	s.room = &room
	s.mu.Unlock()

	s.log.Printf("created room %q as %q", code, name)
	return room, nil
}

// JoinRoom enters an existing active room, appending the caller as a
// participant and a join notice to the message log.
func (s *Session) JoinRoom(code, name string) (types.Room, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if len(code) != 6 {
		return types.Room{}, types.NewValidationError("please enter a valid 6-digit room code")
	}
	if name == "" {
		return types.Room{}, types.NewValidationError("please enter your name")
	}

	room, ok, err := s.store.Room(code)
	if err != nil {
		return types.Room{}, err
	}
	if !ok || !room.Active {
		return types.Room{}, types.NewRoomNotFoundError(code)
	}

	user := types.Participant{
		Id:          shortid.MustGenerate(),
		Name:        name,
		CurrentRoom: code,
		Role:        types.RoleParticipant,
	}

	room.Participants = append(room.Participants, user)
	room.Messages = append(room.Messages, systemMessage(name+" joined the room"))

	if err := s.store.Save(room); err != nil {
		return types.Room{}, err
	}

	s.mu.Lock()
	s.user = &user
	s.room = &room
	s.mu.Unlock()

	s.log.Printf("joined room %q as %q", code, name)
	return room, nil
}

// LeaveRoom appends a leave notice, removes the caller from the room
// and deactivates it when no participants remain. The room itself is
// retained in the store. Safe to call when anonymous.
func (s *Session) LeaveRoom() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil || s.user == nil {
		return nil
	}

	room := *s.room
	room.Messages = append(room.Messages, systemMessage(s.user.Name+" left the room"))

	participants := room.Participants[:0:0]
	for _, p := range room.Participants {
		if p.Id != s.user.Id {
			participants = append(participants, p)
		}
	}
	room.Participants = participants

	if len(room.Participants) == 0 {
		room.Active = false
	}

	if err := s.store.Save(room); err != nil {
		return err
	}

	s.log.Printf("left room %q", room.Code)
	s.user = nil
	s.room = nil
	return nil
}

// SendText appends one text message. Whitespace-only input is a no-op.
func (s *Session) SendText(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	return s.appendMessage(types.Message{
		Type: types.MessageTypeText,
		Text: &types.TextPayload{Content: content},
	})
}

// ApplyRemote replaces the in-memory room with a store snapshot taken
// by the sync poller. It is a no-op when the session has moved on to
// another room or left.
func (s *Session) ApplyRemote(room types.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil || s.room.Code != room.Code {
		return
	}
	s.room = &room
}

// appendMessage stamps id, sender and timestamp on msg, appends it to
// the active room and persists.
func (s *Session) appendMessage(msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil || s.user == nil {
		return types.NewValidationError("not in a room")
	}

	msg.Id = shortid.MustGenerate()
	msg.Sender = s.user.Name
	msg.Timestamp = types.Now()

	room := *s.room
	room.Messages = append(room.Messages, msg)

	if err := s.store.Save(room); err != nil {
		return err
	}
	s.room = &room
	return nil
}

func systemMessage(content string) types.Message {
	return types.Message{
		Id:        shortid.MustGenerate(),
		Type:      types.MessageTypeSystem,
		Sender:    systemSender,
		Timestamp: types.Now(),
		System:    &types.SystemPayload{Content: content},
	}
}

func uniqueRoomCode(rooms map[string]types.Room) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := strconv.Itoa(100000 + rand.Intn(900000))
		if _, exists := rooms[code]; !exists {
			return code, nil
		}
	}
	return "", types.NewValidationError("could not allocate an unused room code")
}
