package call

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// Track wraps a local RTP track with an enabled flag. Disabling does
// not stop the track, so re-enabling is instant.
type Track struct {
	kind  TrackKind
	local *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
	// OnEnded fires once when the track is stopped, used to revert a
	// finished screen share.
	OnEnded func()
}

func (t *Track) Kind() TrackKind {
	return t.kind
}

func (t *Track) Local() webrtc.TrackLocal {
	return t.local
}

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	onEnded := t.OnEnded
	t.mu.Unlock()

	if onEnded != nil {
		onEnded()
	}
}

// MediaStream is an ordered set of local tracks from one capture.
type MediaStream struct {
	Id     string
	tracks []*Track
}

func (s *MediaStream) Tracks() []*Track {
	return s.tracks
}

func (s *MediaStream) AudioTrack() *Track {
	return s.trackOfKind(TrackKindAudio)
}

func (s *MediaStream) VideoTrack() *Track {
	return s.trackOfKind(TrackKindVideo)
}

func (s *MediaStream) trackOfKind(kind TrackKind) *Track {
	for _, t := range s.tracks {
		if t.kind == kind {
			return t
		}
	}
	return nil
}

func (s *MediaStream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// MediaDevices is the platform capture boundary. Any acquisition can
// be denied by the host.
type MediaDevices interface {
	// GetUserMedia acquires camera and/or microphone capture.
	GetUserMedia(video, audio bool) (*MediaStream, error)
	// GetDisplayMedia acquires a display capture for screen sharing.
	GetDisplayMedia() (*MediaStream, error)
	// OpenMicrophone opens a raw microphone stream for voice notes.
	OpenMicrophone() (io.ReadCloser, error)
}

// SyntheticDevices satisfies MediaDevices with generated silent
// tracks. There is no portable camera or microphone access on this
// platform, so local capture is a test signal.
type SyntheticDevices struct{}

func NewSyntheticDevices() *SyntheticDevices {
	return &SyntheticDevices{}
}

func (d *SyntheticDevices) GetUserMedia(video, audio bool) (*MediaStream, error) {
	stream := &MediaStream{Id: "user-media"}

	if audio {
		track, err := newLocalTrack(TrackKindAudio, "microphone", stream.Id)
		if err != nil {
			return nil, err
		}
		stream.tracks = append(stream.tracks, track)
	}
	if video {
		track, err := newLocalTrack(TrackKindVideo, "camera", stream.Id)
		if err != nil {
			return nil, err
		}
		stream.tracks = append(stream.tracks, track)
	}
	return stream, nil
}

func (d *SyntheticDevices) GetDisplayMedia() (*MediaStream, error) {
	stream := &MediaStream{Id: "display-media"}
	track, err := newLocalTrack(TrackKindVideo, "screen", stream.Id)
	if err != nil {
		return nil, err
	}
	stream.tracks = append(stream.tracks, track)
	return stream, nil
}

func (d *SyntheticDevices) OpenMicrophone() (io.ReadCloser, error) {
	return newSyntheticMic(), nil
}

func newLocalTrack(kind TrackKind, id, streamId string) (*Track, error) {
	capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
	if kind == TrackKindVideo {
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
	}

	local, err := webrtc.NewTrackLocalStaticSample(capability, id, streamId)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}

	return &Track{
		kind:    kind,
		local:   local,
		enabled: true,
	}, nil
}

// syntheticMic produces silence at a steady pace until closed.
type syntheticMic struct {
	closeOnce sync.Once
	closed    chan struct{}
}

func newSyntheticMic() *syntheticMic {
	return &syntheticMic{closed: make(chan struct{})}
}

func (m *syntheticMic) Read(p []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, io.EOF
	case <-time.After(20 * time.Millisecond):
	}

	n := len(p)
	if n > 1920 {
		n = 1920
	}
	clear(p[:n])
	return n, nil
}

func (m *syntheticMic) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}
