package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

var (
	// ErrUnsupportedFormat is returned for audio that is neither WAV nor MP3.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidWAV is returned when a RIFF/WAVE stream cannot be parsed.
	ErrInvalidWAV = errors.New("invalid wav data")
)

// Decode converts an encoded sound into interleaved s16le stereo PCM at
// sampleRate. The container is sniffed from the data, falling back to the
// extension of name.
func Decode(data []byte, name string, sampleRate int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	var (
		pcm []byte
		src Format
		err error
	)
	switch sniff(data, name) {
	case "wav":
		pcm, src, err = decodeWAV(data)
	case "mp3":
		pcm, src, err = decodeMP3(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, err
	}

	pcm = toStereo(pcm, src.Channels)
	return resample(pcm, src.SampleRate, sampleRate), nil
}

func sniff(data []byte, name string) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	return ext
}

func decodeMP3(data []byte) ([]byte, Format, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to open mp3: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to decode mp3: %w", err)
	}

	// go-mp3 always produces 16-bit stereo.
	return pcm, Format{SampleRate: dec.SampleRate(), Channels: 2}, nil
}

func decodeWAV(data []byte) ([]byte, Format, error) {
	if len(data) < 12 {
		return nil, Format{}, ErrInvalidWAV
	}

	var (
		format   Format
		bits     uint16
		haveFmt  bool
		pcm      []byte
		haveData bool
	)

	r := data[12:]
	for len(r) >= 8 && !(haveFmt && haveData) {
		id := string(r[0:4])
		size := int(binary.LittleEndian.Uint32(r[4:8]))
		r = r[8:]
		if size > len(r) {
			size = len(r)
		}
		body := r[:size]

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			if audioFormat != 1 {
				return nil, Format{}, fmt.Errorf("%w: compressed wav (format %d)", ErrUnsupportedFormat, audioFormat)
			}
			format.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			pcm = body
			haveData = true
		}

		// Chunks are word aligned.
		if size%2 == 1 && size < len(r) {
			size++
		}
		r = r[size:]
	}

	if !haveFmt || !haveData {
		return nil, Format{}, fmt.Errorf("%w: missing fmt or data chunk", ErrInvalidWAV)
	}
	if format.Channels != 1 && format.Channels != 2 {
		return nil, Format{}, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, format.Channels)
	}
	if format.SampleRate <= 0 {
		return nil, Format{}, fmt.Errorf("%w: sample rate %d", ErrInvalidWAV, format.SampleRate)
	}

	switch bits {
	case 16:
		frame := format.BytesPerFrame()
		out := make([]byte, len(pcm)-len(pcm)%frame)
		copy(out, pcm)
		return out, format, nil
	case 8:
		// 8-bit WAV is unsigned; widen to signed 16-bit.
		out := make([]byte, len(pcm)*2)
		for i, b := range pcm {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(int(b)-128)<<8))
		}
		return out, format, nil
	default:
		return nil, Format{}, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, bits)
	}
}

// toStereo duplicates mono samples into both channels.
func toStereo(pcm []byte, channels int) []byte {
	if channels != 1 {
		return pcm
	}
	out := make([]byte, len(pcm)*2)
	for i := 0; i+1 < len(pcm); i += 2 {
		copy(out[i*2:], pcm[i:i+2])
		copy(out[i*2+2:], pcm[i:i+2])
	}
	return out
}

// resample converts stereo s16le PCM between sample rates using linear
// interpolation.
func resample(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 {
		return pcm
	}

	const frame = 4
	inFrames := len(pcm) / frame
	if inFrames == 0 {
		return pcm
	}
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	out := make([]byte, outFrames*frame)

	sample := func(f, ch int) float64 {
		if f >= inFrames {
			f = inFrames - 1
		}
		return float64(int16(binary.LittleEndian.Uint16(pcm[f*frame+ch*2:])))
	}

	ratio := float64(from) / float64(to)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		f := int(pos)
		frac := pos - float64(f)
		for ch := 0; ch < 2; ch++ {
			v := sample(f, ch)*(1-frac) + sample(f+1, ch)*frac
			binary.LittleEndian.PutUint16(out[i*frame+ch*2:], uint16(int16(v)))
		}
	}
	return out
}
