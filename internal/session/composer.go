package session

import (
	"encoding/base64"
	"fmt"
	"math"
	"mime"
	"path/filepath"
	"strings"

	"github.com/npezzotti/pr-messenger/internal/types"
)

// MaxFileSize is the per-file attachment cap in bytes.
const MaxFileSize = 50_000_000

// FileInput is one attachment candidate, already read into memory.
type FileInput struct {
	Name string
	Data []byte
}

// AttachFiles appends one file message per accepted input. Oversized
// files are rejected individually; the remaining inputs still go
// through. The returned errors parallel the rejections.
func (s *Session) AttachFiles(files ...FileInput) []error {
	var errs []error
	for _, f := range files {
		size := int64(len(f.Data))
		if size > MaxFileSize {
			errs = append(errs, types.NewResourceLimitExceededError(f.Name, size))
			continue
		}

		msg := types.Message{
			Type: types.MessageTypeFile,
			File: &types.FilePayload{
				Name:     f.Name,
				Size:     size,
				Category: FileCategoryOf(f.Name),
				DataURL:  dataURL(f.Name, f.Data),
			},
		}
		if err := s.appendMessage(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SendVoice appends one voice message carrying the encoded recording
// and its M:SS duration.
func (s *Session) SendVoice(audioURL, duration string) error {
	return s.appendMessage(types.Message{
		Type: types.MessageTypeVoice,
		Voice: &types.VoicePayload{
			AudioURL: audioURL,
			Duration: duration,
		},
	})
}

var fileCategories = map[types.FileCategory][]string{
	types.FileCategoryImage:    {"jpg", "jpeg", "png", "gif", "webp"},
	types.FileCategoryDocument: {"pdf", "doc", "docx", "txt", "rtf"},
	types.FileCategoryAudio:    {"mp3", "wav", "ogg", "m4a"},
	types.FileCategoryVideo:    {"mp4", "webm", "mov", "avi"},
}

// FileCategoryOf infers a category from the file extension, defaulting
// to document.
func FileCategoryOf(name string) types.FileCategory {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for category, exts := range fileCategories {
		for _, e := range exts {
			if e == ext {
				return category
			}
		}
	}
	return types.FileCategoryDocument
}

func dataURL(name string, data []byte) string {
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// FormatFileSize renders a byte count the way the message list shows
// it, e.g. "1.5 MB".
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%s %s", trimZeros(fmt.Sprintf("%.2f", value)), sizes[i])
}

func trimZeros(s string) string {
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
