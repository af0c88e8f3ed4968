package call

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticDevices_GetUserMedia(t *testing.T) {
	d := NewSyntheticDevices()

	tcases := []struct {
		name   string
		video  bool
		audio  bool
		tracks int
	}{
		{name: "audio only", audio: true, tracks: 1},
		{name: "audio and video", audio: true, video: true, tracks: 2},
		{name: "video only", video: true, tracks: 1},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			stream, err := d.GetUserMedia(tc.video, tc.audio)
			require.NoError(t, err)
			assert.Len(t, stream.Tracks(), tc.tracks, "expected track count to match")
			if tc.audio {
				assert.NotNil(t, stream.AudioTrack())
			}
			if tc.video {
				assert.NotNil(t, stream.VideoTrack())
			}
		})
	}
}

func TestSyntheticDevices_GetDisplayMedia(t *testing.T) {
	stream, err := NewSyntheticDevices().GetDisplayMedia()
	require.NoError(t, err)
	require.NotNil(t, stream.VideoTrack(), "expected a screen video track")
	assert.Nil(t, stream.AudioTrack(), "expected no audio on display capture")
}

func TestSyntheticMic(t *testing.T) {
	mic, err := NewSyntheticDevices().OpenMicrophone()
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := mic.Read(buf)
	require.NoError(t, err)
	assert.Greater(t, n, 0, "expected the mic to produce data")

	require.NoError(t, mic.Close())
	_, err = mic.Read(buf)
	assert.ErrorIs(t, err, io.EOF, "expected EOF after close")
	assert.NoError(t, mic.Close(), "expected close to be idempotent")
}

func TestTrack_EnableAndStop(t *testing.T) {
	track, err := newLocalTrack(TrackKindAudio, "microphone", "stream")
	require.NoError(t, err)

	assert.True(t, track.Enabled(), "expected tracks to start enabled")
	track.SetEnabled(false)
	assert.False(t, track.Enabled())

	var ended int
	track.OnEnded = func() { ended++ }
	track.Stop()
	track.Stop()
	assert.Equal(t, 1, ended, "expected OnEnded to fire exactly once")
}
