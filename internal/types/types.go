package types

import (
	"time"
)

type Role string

const (
	RoleCreator     Role = "creator"
	RoleParticipant Role = "participant"
)

type Participant struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	CurrentRoom string `json:"current_room"`
	Role        Role   `json:"role"`
}

// Room is one chat session keyed by its 6-digit code. Messages are
// append-only; a room is deactivated, never deleted, when the last
// participant leaves.
type Room struct {
	Code         string        `json:"code"`
	Created      time.Time     `json:"created"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
	Active       bool          `json:"active"`
}

// Participant returns the participant with the given id, if present.
func (r *Room) Participant(id string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.Id == id {
			return p, true
		}
	}
	return Participant{}, false
}

type MessageType string

const (
	MessageTypeSystem MessageType = "system"
	MessageTypeText   MessageType = "text"
	MessageTypeVoice  MessageType = "voice"
	MessageTypeFile   MessageType = "file"
)

// Message is a tagged union: Type names the variant and exactly one of
// the payload fields is set.
type Message struct {
	Id        string      `json:"id"`
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`

	System *SystemPayload `json:"system,omitempty"`
	Text   *TextPayload   `json:"text,omitempty"`
	Voice  *VoicePayload  `json:"voice,omitempty"`
	File   *FilePayload   `json:"file,omitempty"`
}

type SystemPayload struct {
	Content string `json:"content"`
}

type TextPayload struct {
	Content string `json:"content"`
}

type VoicePayload struct {
	// AudioURL is a base64 data URL so the recording survives a restart.
	AudioURL string `json:"audio_url"`
	Duration string `json:"duration"`
}

type FileCategory string

const (
	FileCategoryImage    FileCategory = "images"
	FileCategoryDocument FileCategory = "documents"
	FileCategoryAudio    FileCategory = "audio"
	FileCategoryVideo    FileCategory = "video"
)

type FilePayload struct {
	Name     string       `json:"name"`
	Size     int64        `json:"size"`
	Category FileCategory `json:"category"`
	DataURL  string       `json:"data_url"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
