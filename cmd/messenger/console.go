package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/npezzotti/pr-messenger/internal/app"
	"github.com/npezzotti/pr-messenger/internal/session"
	"github.com/npezzotti/pr-messenger/internal/types"
)

// consoleRenderer is the terminal presentation layer. It re-renders
// the participant and message lists whenever the room changes.
type consoleRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleRenderer(out io.Writer) *consoleRenderer {
	return &consoleRenderer{out: out}
}

func (c *consoleRenderer) RenderRoom(room types.Room, current types.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n=== Room %s (%d participant(s)) ===\n", room.Code, len(room.Participants))
	for _, p := range room.Participants {
		marker := " "
		if p.Id == current.Id {
			marker = "*"
		}
		fmt.Fprintf(c.out, " %s %s (%s)\n", marker, p.Name, p.Role)
	}

	for _, msg := range room.Messages {
		fmt.Fprintln(c.out, formatMessage(msg))
	}
}

func (c *consoleRenderer) Notify(message string, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isError {
		fmt.Fprintf(c.out, "! %s\n", message)
		return
	}
	fmt.Fprintf(c.out, "- %s\n", message)
}

func (c *consoleRenderer) ShowRecordingTime(elapsed string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\rrecording %s", elapsed)
}

func (c *consoleRenderer) ShowCallTime(elapsed string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\rin call %s", elapsed)
}

// formatMessage renders one message line, matched exhaustively over
// the variant tag.
func formatMessage(msg types.Message) string {
	ts := msg.Timestamp.Local().Format("15:04")

	switch msg.Type {
	case types.MessageTypeSystem:
		return fmt.Sprintf("  -- %s --", msg.System.Content)
	case types.MessageTypeText:
		return fmt.Sprintf("  [%s] %s: %s", ts, msg.Sender, msg.Text.Content)
	case types.MessageTypeVoice:
		return fmt.Sprintf("  [%s] %s: voice note (%s)", ts, msg.Sender, msg.Voice.Duration)
	case types.MessageTypeFile:
		return fmt.Sprintf("  [%s] %s: file %s (%s, %s)", ts, msg.Sender,
			msg.File.Name, session.FormatFileSize(msg.File.Size), msg.File.Category)
	default:
		return fmt.Sprintf("  [%s] %s: unsupported message", ts, msg.Sender)
	}
}

const consoleHelp = `commands:
  /create <name>          create a room and enter it
  /join <code> <name>     join an existing room
  /leave                  leave the current room
  /file <path> [path...]  send files
  /voice start|stop|send|discard
  /call video|voice       start a call
  /share                  toggle screen sharing
  /mute                   toggle microphone
  /camera                 toggle camera
  /end                    end the call
  /quit                   exit
anything else is sent as a text message`

// runConsole drives the user-facing command surface until EOF or
// /quit.
func runConsole(m *app.Messenger, renderer *consoleRenderer, in io.Reader) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	renderer.Notify("PR Messenger ready, /help for commands", false)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			m.SendText(line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/help":
			renderer.Notify(consoleHelp, false)
		case "/create":
			if len(fields) < 2 {
				renderer.Notify("usage: /create <name>", true)
				continue
			}
			if code, err := m.CreateRoom(strings.Join(fields[1:], " ")); err == nil {
				renderer.Notify("Room code: "+code, false)
			}
		case "/join":
			if len(fields) < 3 {
				renderer.Notify("usage: /join <code> <name>", true)
				continue
			}
			m.JoinRoom(fields[1], strings.Join(fields[2:], " "))
		case "/leave":
			m.LeaveRoom()
		case "/file":
			if len(fields) < 2 {
				renderer.Notify("usage: /file <path> [path...]", true)
				continue
			}
			m.AttachFilePaths(fields[1:]...)
		case "/voice":
			if len(fields) != 2 {
				renderer.Notify("usage: /voice start|stop|send|discard", true)
				continue
			}
			switch fields[1] {
			case "start":
				m.StartVoiceNote()
			case "stop":
				m.StopVoiceNote()
			case "send":
				m.SendVoiceNote()
			case "discard":
				m.DiscardVoiceNote()
			default:
				renderer.Notify("usage: /voice start|stop|send|discard", true)
			}
		case "/call":
			if len(fields) != 2 {
				renderer.Notify("usage: /call video|voice", true)
				continue
			}
			switch fields[1] {
			case "video":
				m.StartVideoCall()
			case "voice":
				m.StartVoiceCall()
			default:
				renderer.Notify("usage: /call video|voice", true)
			}
		case "/share":
			m.ToggleScreenShare()
		case "/mute":
			m.ToggleMute()
		case "/camera":
			m.ToggleCamera()
		case "/end":
			m.EndCall()
		case "/quit":
			m.LeaveRoom()
			return
		default:
			renderer.Notify("unknown command "+fields[0], true)
		}
	}
}
