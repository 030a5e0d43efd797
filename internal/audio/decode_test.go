package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildWAV assembles a minimal RIFF/WAVE file around pcm.
func buildWAV(t *testing.T, sampleRate, channels, bits int, pcm []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	le := binary.LittleEndian
	write := func(v any) {
		if err := binary.Write(&buf, le, v); err != nil {
			t.Fatalf("write wav: %v", err)
		}
	}

	blockAlign := channels * bits / 8
	buf.WriteString("RIFF")
	write(uint32(36 + len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	write(uint32(16))
	write(uint16(1))
	write(uint16(channels))
	write(uint32(sampleRate))
	write(uint32(sampleRate * blockAlign))
	write(uint16(blockAlign))
	write(uint16(bits))
	buf.WriteString("data")
	write(uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func samples16(values ...int16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestDecode_WAVStereoSameRate(t *testing.T) {
	pcm := samples16(1, -1, 2, -2, 3, -3)
	wav := buildWAV(t, 44100, 2, 16, pcm)

	out, err := Decode(wav, "loop.wav", 44100)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(out, pcm) {
		t.Errorf("stereo pcm at the device rate should pass through unchanged")
	}
}

func TestDecode_WAVMonoIsDuplicated(t *testing.T) {
	wav := buildWAV(t, 44100, 1, 16, samples16(100, -200))

	out, err := Decode(wav, "kick.wav", 44100)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := samples16(100, 100, -200, -200)
	if !bytes.Equal(out, want) {
		t.Errorf("mono decode = %v, want %v", out, want)
	}
}

func TestDecode_WAVResample(t *testing.T) {
	frames := 22050
	pcm := make([]byte, frames*4)
	wav := buildWAV(t, 22050, 2, 16, pcm)

	out, err := Decode(wav, "pad.wav", 44100)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	gotFrames := len(out) / 4
	if gotFrames != 44100 {
		t.Errorf("resampled frames = %d, want 44100", gotFrames)
	}

	f := Format{SampleRate: 44100, Channels: 2}
	if d := f.Duration(len(out)); d.Seconds() != 1 {
		t.Errorf("duration = %v, want 1s", d)
	}
}

func TestDecode_WAV8Bit(t *testing.T) {
	wav := buildWAV(t, 44100, 2, 8, []byte{128, 255})

	out, err := Decode(wav, "", 44100)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := samples16(0, 127<<8)
	if !bytes.Equal(out, want) {
		t.Errorf("8-bit decode = %v, want %v", out, want)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		file    string
		wantErr error
	}{
		{"empty", nil, "x.wav", ErrEmptyAudio},
		{"unknown container", []byte("hello world, not audio"), "notes.txt", ErrUnsupportedFormat},
		{"truncated wav", []byte("RIFF\x00\x00\x00\x00WAVE"), "x.wav", ErrInvalidWAV},
		{"24-bit wav", buildWAV(t, 44100, 2, 24, make([]byte, 6)), "x.wav", ErrUnsupportedFormat},
		{"surround wav", buildWAV(t, 44100, 6, 16, make([]byte, 12)), "x.wav", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.file, 44100)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		data []byte
		name string
		want string
	}{
		{[]byte("ID3\x04"), "", "mp3"},
		{[]byte{0xFF, 0xFB, 0x90}, "", "mp3"},
		{[]byte("RIFF\x00\x00\x00\x00WAVE"), "", "wav"},
		{[]byte("????"), "https://cdn.example.com/a/b/rain.MP3?token=1", "mp3"},
		{[]byte("????"), "storm.ogg", "ogg"},
	}

	for _, tt := range tests {
		if got := sniff(tt.data, tt.name); got != tt.want {
			t.Errorf("sniff(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
