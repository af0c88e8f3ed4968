// Package app wires the session, store, sync poller, recorder and
// call manager into one explicit application context with an
// init/teardown lifecycle.
package app

import (
	"log"
	"os"
	"path/filepath"

	"github.com/npezzotti/pr-messenger/internal/call"
	"github.com/npezzotti/pr-messenger/internal/config"
	"github.com/npezzotti/pr-messenger/internal/poller"
	"github.com/npezzotti/pr-messenger/internal/session"
	"github.com/npezzotti/pr-messenger/internal/stats"
	"github.com/npezzotti/pr-messenger/internal/store"
	"github.com/npezzotti/pr-messenger/internal/types"
)

// Renderer is the presentation boundary: re-render on state change,
// surface transient notices. Errors never escalate past a notice.
type Renderer interface {
	RenderRoom(room types.Room, current types.Participant)
	Notify(message string, isError bool)
}

type Messenger struct {
	log      *log.Logger
	store    store.RoomStore
	stats    stats.StatsProvider
	renderer Renderer

	Session  *session.Session
	Recorder *session.Recorder
	Calls    *call.Manager

	poller *poller.Poller
}

func NewMessenger(cfg *config.Config, st store.RoomStore, devices call.MediaDevices, sp stats.StatsProvider, renderer Renderer, logger *log.Logger) *Messenger {
	sess := session.NewSession(st, logger)

	m := &Messenger{
		log:      logger,
		store:    st,
		stats:    sp,
		renderer: renderer,
		Session:  sess,
		Recorder: session.NewRecorder(devices, sess, logger),
		Calls:    call.NewManager(devices, sess, cfg.STUNServers, logger),
	}

	m.poller = poller.New(st, sess, cfg.PollInterval, logger)
	m.poller.OnUpdate = func(room types.Room) {
		m.stats.Incr(stats.Reconciles)
		m.render()
	}

	for _, name := range []string{
		stats.RoomsCreated,
		stats.RoomsJoined,
		stats.MessagesSent,
		stats.Reconciles,
		stats.CallsStarted,
		stats.ActiveCalls,
	} {
		m.stats.RegisterMetric(name)
	}

	return m
}

// Start brings up the sync poller. Call Close to tear down.
func (m *Messenger) Start() {
	m.stats.Run()
	go m.poller.Run()
}

// Close tears down any active call and the poller. The session is left
// as-is: leaving a room is a user action, not a shutdown side effect.
func (m *Messenger) Close() {
	m.Calls.End()
	m.poller.Stop()
	if cn, ok := m.store.(store.ChangeNotifier); ok {
		cn.Close()
	}
}

// CreateRoom creates and enters a new room, returning its code.
func (m *Messenger) CreateRoom(name string) (string, error) {
	room, err := m.Session.CreateRoom(name)
	if err != nil {
		m.notifyErr(err)
		return "", err
	}

	m.stats.Incr(stats.RoomsCreated)
	m.render()
	return room.Code, nil
}

func (m *Messenger) JoinRoom(code, name string) error {
	if _, err := m.Session.JoinRoom(code, name); err != nil {
		m.notifyErr(err)
		return err
	}

	m.stats.Incr(stats.RoomsJoined)
	m.render()
	return nil
}

// LeaveRoom ends any active call first, then leaves. The recorder is
// discarded as well so no capture outlives the session.
func (m *Messenger) LeaveRoom() error {
	m.Calls.End()
	m.Recorder.Discard()

	if err := m.Session.LeaveRoom(); err != nil {
		m.notifyErr(err)
		return err
	}

	m.renderer.Notify("Left the room successfully", false)
	return nil
}

func (m *Messenger) SendText(content string) error {
	before, _ := m.Session.CurrentRoom()
	if err := m.Session.SendText(content); err != nil {
		m.notifyErr(err)
		return err
	}

	after, _ := m.Session.CurrentRoom()
	if len(after.Messages) != len(before.Messages) {
		m.stats.Incr(stats.MessagesSent)
		m.render()
	}
	return nil
}

// AttachFilePaths reads each path and appends one file message per
// accepted file. A failed or oversized file is reported and the rest
// still go through.
func (m *Messenger) AttachFilePaths(paths ...string) {
	var files []session.FileInput
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			m.renderer.Notify("Could not read "+path, true)
			continue
		}
		files = append(files, session.FileInput{Name: filepath.Base(path), Data: data})
	}

	errs := m.Session.AttachFiles(files...)
	for _, err := range errs {
		m.notifyErr(err)
	}

	if len(errs) < len(files) {
		for i := 0; i < len(files)-len(errs); i++ {
			m.stats.Incr(stats.MessagesSent)
		}
		m.render()
	}
}

func (m *Messenger) StartVoiceNote() error {
	if !m.Session.InRoom() {
		err := types.NewValidationError("not in a room")
		m.notifyErr(err)
		return err
	}
	if err := m.Recorder.Start(); err != nil {
		m.notifyErr(err)
		return err
	}
	return nil
}

func (m *Messenger) StopVoiceNote() error {
	if err := m.Recorder.Stop(); err != nil {
		m.notifyErr(err)
		return err
	}
	return nil
}

func (m *Messenger) DiscardVoiceNote() {
	m.Recorder.Discard()
}

func (m *Messenger) SendVoiceNote() error {
	if err := m.Recorder.Send(); err != nil {
		m.notifyErr(err)
		return err
	}
	m.stats.Incr(stats.MessagesSent)
	m.render()
	return nil
}

func (m *Messenger) StartVideoCall() error {
	return m.startCall(m.Calls.StartVideoCall, "Video call started")
}

func (m *Messenger) StartVoiceCall() error {
	return m.startCall(m.Calls.StartVoiceCall, "Voice call started")
}

func (m *Messenger) startCall(start func() error, notice string) error {
	if err := start(); err != nil {
		m.notifyErr(err)
		return err
	}
	m.stats.Incr(stats.CallsStarted)
	m.stats.Incr(stats.ActiveCalls)
	m.renderer.Notify(notice, false)
	return nil
}

func (m *Messenger) EndCall() {
	if m.Calls.State() == call.StateIdle {
		return
	}
	m.Calls.End()
	m.stats.Decr(stats.ActiveCalls)
	m.renderer.Notify("Call ended", false)
}

func (m *Messenger) ToggleScreenShare() error {
	if err := m.Calls.ToggleScreenShare(); err != nil {
		m.notifyErr(err)
		return err
	}
	if m.Calls.Sharing() {
		m.renderer.Notify("Screen sharing started", false)
	} else {
		m.renderer.Notify("Screen sharing stopped", false)
	}
	return nil
}

func (m *Messenger) ToggleMute() error {
	muted, err := m.Calls.ToggleMute()
	if err != nil {
		m.notifyErr(err)
		return err
	}
	if muted {
		m.renderer.Notify("Microphone muted", false)
	} else {
		m.renderer.Notify("Microphone unmuted", false)
	}
	return nil
}

func (m *Messenger) ToggleCamera() error {
	off, err := m.Calls.ToggleCamera()
	if err != nil {
		m.notifyErr(err)
		return err
	}
	if off {
		m.renderer.Notify("Camera off", false)
	} else {
		m.renderer.Notify("Camera on", false)
	}
	return nil
}

func (m *Messenger) render() {
	room, ok := m.Session.CurrentRoom()
	if !ok {
		return
	}
	user, _ := m.Session.CurrentUser()
	m.renderer.RenderRoom(room, user)
}

func (m *Messenger) notifyErr(err error) {
	m.renderer.Notify(err.Error(), true)
}
