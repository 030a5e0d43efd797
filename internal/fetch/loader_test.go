package fetch

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/soundshelf/internal/audio"
)

type fakeOutput struct {
	opened [][]byte
}

func (o *fakeOutput) Format() audio.Format {
	return audio.Format{SampleRate: 44100, Channels: 2}
}

func (o *fakeOutput) Open(pcm []byte) (audio.Handle, error) {
	o.opened = append(o.opened, pcm)
	return audio.NewMockTrack(audio.Format{SampleRate: 44100, Channels: 2}.Duration(len(pcm))), nil
}

// stereoWAV builds a 44.1kHz 16-bit stereo WAV with frames silent frames.
func stereoWAV(frames int) []byte {
	pcm := make([]byte, frames*4)
	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint16(2))
	_ = binary.Write(&buf, le, uint32(44100))
	_ = binary.Write(&buf, le, uint32(44100*4))
	_ = binary.Write(&buf, le, uint16(4))
	_ = binary.Write(&buf, le, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func TestLoader_Load(t *testing.T) {
	wav := stereoWAV(44100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tone.wav":
			_, _ = w.Write(wav)
		default:
			_, _ = w.Write([]byte("not audio"))
		}
	}))
	defer srv.Close()

	out := &fakeOutput{}
	l := NewLoader(testFetcher(newMemCache()), out)

	h, err := l.Load(context.Background(), srv.URL+"/tone.wav", "tone.wav")
	require.NoError(t, err)
	defer h.Close()

	require.Len(t, out.opened, 1)
	assert.Len(t, out.opened[0], 44100*4)
	assert.Equal(t, time.Second, h.Duration())

	_, err = l.Load(context.Background(), srv.URL+"/notes.txt", "notes.txt")
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestLoader_NoOutput(t *testing.T) {
	l := NewLoader(testFetcher(nil), nil)

	_, err := l.Load(context.Background(), "https://x.co/a.wav", "a.wav")
	assert.ErrorIs(t, err, ErrNoOutput)
}
