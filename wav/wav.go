// Package wav writes rendered graph output to wav files with go-audio.
package wav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/multierr"

	"pipelined.dev/graph"
	"pipelined.dev/graph/run"
)

// BitDepth of encoded samples.
type BitDepth int

// Supported bit depths.
const (
	BitDepth16 BitDepth = 16
	BitDepth32 BitDepth = 32
)

const pcmFormat = 1

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")
	// ErrInvalidFile is returned when decoded file is not a valid wav.
	ErrInvalidFile = errors.New("wav is not valid")
	// ErrInvalidDuration is returned when rendered duration is shorter than
	// one frame.
	ErrInvalidDuration = errors.New("duration must be at least one frame")
)

func (b BitDepth) max() float64 {
	return float64(int64(1)<<(uint(b)-1) - 1)
}

// Sink encodes blocks into a wav stream.
type Sink struct {
	channels int
	bitDepth BitDepth
	encoder  *wav.Encoder
	closer   io.Closer
	buffer   *audio.IntBuffer
}

var (
	_ run.Sink    = (*Sink)(nil)
	_ run.Flusher = (*Sink)(nil)
)

// NewSink returns sink that encodes into ws.
func NewSink(ws io.WriteSeeker, sampleRate, channels int, bitDepth BitDepth) (*Sink, error) {
	if bitDepth != BitDepth16 && bitDepth != BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	return &Sink{
		channels: channels,
		bitDepth: bitDepth,
		encoder:  wav.NewEncoder(ws, sampleRate, int(bitDepth), channels, pcmFormat),
		buffer: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Create returns sink that writes a new file at path. The file is closed
// on flush.
func Create(path string, sampleRate, channels int, bitDepth BitDepth) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSink(f, sampleRate, channels, bitDepth)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	s.closer = f
	return s, nil
}

// Write encodes block samples. Samples are clipped to [-1, 1].
func (s *Sink) Write(b *run.Block) error {
	if b.Channels != s.channels {
		return fmt.Errorf("block has %d channels, sink expects %d", b.Channels, s.channels)
	}
	samples := b.Samples()
	if cap(s.buffer.Data) < len(samples) {
		s.buffer.Data = make([]int, len(samples))
	}
	s.buffer.Data = s.buffer.Data[:len(samples)]
	scale := s.bitDepth.max()
	for i, v := range samples {
		s.buffer.Data[i] = int(math.Max(-1, math.Min(1, float64(v))) * scale)
	}
	return s.encoder.Write(s.buffer)
}

// Flush finalizes the wav header and closes the file if sink owns it.
func (s *Sink) Flush() error {
	err := s.encoder.Close()
	if s.closer != nil {
		err = multierr.Append(err, s.closer.Close())
	}
	return err
}

// Close releases the file without finalizing it. It is used when
// rendering failed.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Render renders duration of graph outputs into a new 16 bit file at path.
// Without outputs the primary output is rendered as mono. No file is
// created if duration is shorter than one frame.
func Render(ctx context.Context, g graph.Interface, path string, seconds float64, outputs ...string) error {
	channels := len(outputs)
	if channels == 0 {
		channels = 1
	}
	sampleRate := g.SampleRate()
	frames := seconds * float64(sampleRate)
	if math.IsNaN(frames) || frames < 1 || frames > math.MaxInt32 {
		return fmt.Errorf("%w: %v seconds at %v Hz", ErrInvalidDuration, seconds, sampleRate)
	}
	s, err := Create(path, int(sampleRate), channels, BitDepth16)
	if err != nil {
		return err
	}
	opts := []run.Option{run.WithLimit(int(frames))}
	if len(outputs) > 0 {
		opts = append(opts, run.WithOutputs(outputs...))
	}
	if err := run.Render(ctx, g, s, opts...); err != nil {
		return multierr.Append(err, s.Close())
	}
	return nil
}

// Load decodes the file at path into interleaved samples in [-1, 1].
func Load(path string) ([]float32, *audio.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}
	bitDepth := BitDepth(d.BitDepth)
	if bitDepth != BitDepth16 && bitDepth != BitDepth32 {
		return nil, nil, ErrUnsupportedBitDepth
	}
	ib, err := d.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", path, err)
	}
	scale := bitDepth.max()
	samples := make([]float32, len(ib.Data))
	for i, v := range ib.Data {
		samples[i] = float32(float64(v) / scale)
	}
	return samples, ib.Format, nil
}
