package session

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/pr-messenger/internal/types"
)

type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderRecording
	RecorderRecorded
)

// MicrophoneOpener is the capture capability the recorder depends on.
// Opening can be denied by the platform.
type MicrophoneOpener interface {
	OpenMicrophone() (io.ReadCloser, error)
}

// Recorder drives one voice-note capture: start, timed recording,
// then stop and either discard or send. The result is sent through
// the session as a single voice message.
type Recorder struct {
	mic     MicrophoneOpener
	session *Session
	log     *log.Logger
	// OnTick, when set, receives an MM:SS elapsed display once per
	// second while recording.
	OnTick func(elapsed string)

	mu      sync.Mutex
	state   RecorderState
	started time.Time
	elapsed time.Duration
	buf     bytes.Buffer
	stream  io.ReadCloser
	stop    chan struct{}
	done    chan struct{}
}

func NewRecorder(mic MicrophoneOpener, sess *Session, logger *log.Logger) *Recorder {
	return &Recorder{
		mic:     mic,
		session: sess,
		log:     logger,
	}
}

func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start opens the microphone and begins capturing. A denied capture
// surfaces as a permission error and leaves the recorder idle.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RecorderIdle {
		return types.NewValidationError("already recording")
	}

	stream, err := r.mic.OpenMicrophone()
	if err != nil {
		return types.NewPermissionDeniedError(err)
	}

	r.stream = stream
	r.buf.Reset()
	r.started = time.Now()
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.state = RecorderRecording

	go r.capture(&r.buf, stream, r.started, r.stop, r.done)
	return nil
}

// capture drains the microphone into buf and drives the elapsed-time
// display until stopped. buf is not touched by anyone else until done
// is closed.
func (r *Recorder) capture(buf io.Writer, stream io.Reader, started time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		if _, err := io.Copy(buf, stream); err != nil {
			r.log.Println("recording capture:", err)
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if r.OnTick != nil {
				r.OnTick(formatClock(time.Since(started)))
			}
		case <-stop:
			<-copied
			return
		}
	}
}

// Stop ends the capture, keeping the recording for a later Send or
// Discard.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RecorderRecording {
		return types.NewValidationError("not recording")
	}
	r.finishLocked()
	r.state = RecorderRecorded
	return nil
}

// Discard throws away the capture from either the recording or the
// recorded state.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == RecorderRecording {
		r.finishLocked()
	}
	r.buf.Reset()
	r.state = RecorderIdle
}

// Send encodes the stopped recording as a data URL and appends one
// voice message to the room.
func (r *Recorder) Send() error {
	r.mu.Lock()

	if r.state != RecorderRecorded {
		r.mu.Unlock()
		return types.NewValidationError("no recording to send")
	}

	audioURL := "data:audio/webm;base64," + base64.StdEncoding.EncodeToString(r.buf.Bytes())
	duration := FormatDuration(r.elapsed)
	r.buf.Reset()
	r.state = RecorderIdle
	r.mu.Unlock()

	return r.session.SendVoice(audioURL, duration)
}

// finishLocked tears down the capture goroutine and stream. Caller
// holds the lock; the capture goroutine never takes it, so waiting
// here cannot deadlock.
func (r *Recorder) finishLocked() {
	r.stream.Close()
	close(r.stop)
	<-r.done

	r.elapsed = time.Since(r.started)
	r.stream = nil
}

// FormatDuration renders a recording length as M:SS.
func FormatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// formatClock renders elapsed time as MM:SS for the live display.
func formatClock(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
