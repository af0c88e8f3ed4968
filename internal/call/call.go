// Package call manages the peer-connection lifecycle for voice and
// video calls. No signaling transport exists: ICE candidates are
// logged, never exchanged, so a call is a local media session.
package call

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/pr-messenger/internal/types"
	"github.com/pion/webrtc/v4"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// RoomInfo reports the call entry guard's view of the current room.
type RoomInfo interface {
	InRoom() bool
	ParticipantCount() int
}

type Manager struct {
	devices     MediaDevices
	room        RoomInfo
	log         *log.Logger
	stunServers []string
	// OnElapsed, when set, receives an MM:SS call duration display
	// once per second while a call is active.
	OnElapsed func(elapsed string)

	mu          sync.Mutex
	state       State
	callId      string
	pc          *webrtc.PeerConnection
	dataChannel *webrtc.DataChannel
	local       *MediaStream
	screen      *MediaStream
	videoSender *webrtc.RTPSender
	started     time.Time
	stopTicker  chan struct{}
}

func NewManager(devices MediaDevices, room RoomInfo, stunServers []string, logger *log.Logger) *Manager {
	if len(stunServers) == 0 {
		stunServers = DefaultSTUNServers
	}
	return &Manager{
		devices:     devices,
		room:        room,
		log:         logger,
		stunServers: stunServers,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LocalStream returns the active local capture, nil when idle.
func (m *Manager) LocalStream() *MediaStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.local
}

// ScreenStream returns the active display capture, nil when not
// sharing.
func (m *Manager) ScreenStream() *MediaStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen
}

func (m *Manager) Sharing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen != nil
}

// StartVideoCall acquires camera and microphone and brings up a call.
func (m *Manager) StartVideoCall() error {
	return m.start(true)
}

// StartVoiceCall acquires microphone only and brings up a call.
func (m *Manager) StartVoiceCall() error {
	return m.start(false)
}

func (m *Manager) start(video bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return types.NewValidationError("already in a call")
	}
	if !m.room.InRoom() || m.room.ParticipantCount() < 2 {
		return types.NewInsufficientParticipantsError()
	}

	m.state = StateConnecting

	local, err := m.devices.GetUserMedia(video, true)
	if err != nil {
		m.state = StateIdle
		return types.NewPermissionDeniedError(err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: m.stunServers}},
	})
	if err != nil {
		local.Stop()
		m.state = StateIdle
		return fmt.Errorf("create peer connection: %w", err)
	}

	callId := uuid.NewString()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.log.Printf("call %s: remote %s track %q", callId, track.Kind(), track.ID())
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			// No signaling transport; the candidate goes nowhere.
			m.log.Printf("call %s: ICE candidate %s", callId, c.ToJSON().Candidate)
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.log.Printf("call %s: connection state %s", callId, s.String())
	})

	var videoSender *webrtc.RTPSender
	for _, track := range local.Tracks() {
		sender, err := pc.AddTrack(track.Local())
		if err != nil {
			pc.Close()
			local.Stop()
			m.state = StateIdle
			return fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
		if track.Kind() == TrackKindVideo {
			videoSender = sender
		}
	}

	// Reserved for peer file transfer; only logged for now.
	dc, err := pc.CreateDataChannel("fileTransfer", nil)
	if err != nil {
		pc.Close()
		local.Stop()
		m.state = StateIdle
		return fmt.Errorf("create data channel: %w", err)
	}
	dc.OnOpen(func() {
		m.log.Printf("call %s: data channel opened", callId)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		m.log.Printf("call %s: data channel message (%d bytes)", callId, len(msg.Data))
	})

	m.callId = callId
	m.pc = pc
	m.dataChannel = dc
	m.local = local
	m.videoSender = videoSender
	m.started = time.Now()
	m.stopTicker = make(chan struct{})
	m.state = StateActive

	go m.tick(m.started, m.stopTicker)

	m.log.Printf("call %s: started (video=%t)", callId, video)
	return nil
}

func (m *Manager) tick(started time.Time, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.OnElapsed != nil {
				m.OnElapsed(formatElapsed(time.Since(started)))
			}
		case <-stop:
			return
		}
	}
}

// StartScreenShare acquires a display capture and swaps it in for the
// outgoing video track. The share reverts when the screen track ends.
func (m *Manager) StartScreenShare() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return types.NewValidationError("no active call")
	}
	if m.screen != nil {
		return types.NewValidationError("already sharing the screen")
	}

	screen, err := m.devices.GetDisplayMedia()
	if err != nil {
		return types.NewPermissionDeniedError(err)
	}

	screenTrack := screen.VideoTrack()
	if m.videoSender != nil && screenTrack != nil {
		if err := m.videoSender.ReplaceTrack(screenTrack.Local()); err != nil {
			screen.Stop()
			return fmt.Errorf("replace video track: %w", err)
		}
	}
	if screenTrack != nil {
		screenTrack.OnEnded = func() {
			m.StopScreenShare()
		}
	}

	m.screen = screen
	m.log.Printf("call %s: screen sharing started", m.callId)
	return nil
}

// StopScreenShare reverts to the camera track. Safe to call when not
// sharing.
func (m *Manager) StopScreenShare() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopScreenShareLocked()
}

func (m *Manager) stopScreenShareLocked() {
	if m.screen == nil {
		return
	}

	screen := m.screen
	m.screen = nil
	if track := screen.VideoTrack(); track != nil {
		// Clear the revert hook before stopping to avoid re-entry.
		track.OnEnded = nil
	}
	screen.Stop()

	if m.videoSender != nil && m.local != nil {
		if camera := m.local.VideoTrack(); camera != nil {
			if err := m.videoSender.ReplaceTrack(camera.Local()); err != nil {
				m.log.Println("restore camera track:", err)
			}
		}
	}
	m.log.Printf("call %s: screen sharing stopped", m.callId)
}

// ToggleScreenShare flips between camera and screen capture.
func (m *Manager) ToggleScreenShare() error {
	if m.Sharing() {
		m.StopScreenShare()
		return nil
	}
	return m.StartScreenShare()
}

// ToggleMute flips the local audio track and reports whether the
// microphone is now muted.
func (m *Manager) ToggleMute() (bool, error) {
	return m.toggleTrack(TrackKindAudio)
}

// ToggleCamera flips the local video track and reports whether the
// camera is now off.
func (m *Manager) ToggleCamera() (bool, error) {
	return m.toggleTrack(TrackKindVideo)
}

func (m *Manager) toggleTrack(kind TrackKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.local == nil {
		return false, types.NewValidationError("no active call")
	}
	track := m.local.trackOfKind(kind)
	if track == nil {
		return false, types.NewValidationError(fmt.Sprintf("no local %s track", kind))
	}

	track.SetEnabled(!track.Enabled())
	return !track.Enabled(), nil
}

// End tears down the call: peer connection, local and screen capture,
// elapsed ticker. Idempotent; safe when no call was ever started.
func (m *Manager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		return
	}

	m.stopScreenShareLocked()

	if m.pc != nil {
		if err := m.pc.Close(); err != nil {
			m.log.Println("close peer connection:", err)
		}
		m.pc = nil
	}
	if m.local != nil {
		m.local.Stop()
		m.local = nil
	}
	if m.stopTicker != nil {
		close(m.stopTicker)
		m.stopTicker = nil
	}

	m.dataChannel = nil
	m.videoSender = nil
	m.state = StateIdle
	m.log.Printf("call %s: ended", m.callId)
	m.callId = ""
}

func formatElapsed(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
