package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgnsrekt/soundshelf/internal/audio"
)

// ErrNoOutput is returned when audio is loaded without an output device.
var ErrNoOutput = errors.New("no audio output available")

// Output turns device-format PCM into a playable handle. *audio.Device
// implements it.
type Output interface {
	Format() audio.Format
	Open(pcm []byte) (audio.Handle, error)
}

var _ Output = (*audio.Device)(nil)

// Loader fetches, decodes and opens sounds for playback.
type Loader struct {
	fetcher *Fetcher
	output  Output
}

// NewLoader creates a loader. A nil output makes every Load fail with
// ErrNoOutput, which is how machines without a sound card behave.
func NewLoader(f *Fetcher, out Output) *Loader {
	return &Loader{fetcher: f, output: out}
}

// Load returns a handle for the sound at url. name is used to guess the
// container when the data does not say.
func (l *Loader) Load(ctx context.Context, url, name string) (audio.Handle, error) {
	if l.output == nil {
		return nil, ErrNoOutput
	}

	data, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return l.Open(data, name)
}

// Open decodes already fetched data into a handle.
func (l *Loader) Open(data []byte, name string) (audio.Handle, error) {
	if l.output == nil {
		return nil, ErrNoOutput
	}
	pcm, err := audio.Decode(data, name, l.output.Format().SampleRate)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return l.output.Open(pcm)
}
