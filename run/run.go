// Package run renders graphs block by block. A producer goroutine ticks the
// graph into preallocated blocks and a consumer goroutine writes them to a
// sink. Blocks circulate between the two over channels, so rendering does
// not allocate once started.
package run

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pipelined.dev/graph"
	"pipelined.dev/graph/log"
	"pipelined.dev/graph/metric"
)

const (
	// DefaultBlockSize is number of frames in a block.
	DefaultBlockSize = 512
	// DefaultBuffers is number of blocks circulating between producer and
	// consumer.
	DefaultBuffers = 2
)

type (
	// Block holds interleaved frames of graph outputs.
	Block struct {
		Data     []float32
		Frames   int
		Channels int
	}

	// Sink receives rendered blocks. Block data is only valid during the
	// call.
	Sink interface {
		Write(b *Block) error
	}

	// Flusher is implemented by sinks that must be finalized after the
	// last block.
	Flusher interface {
		Flush() error
	}

	// SinkFunc adapts a function to Sink.
	SinkFunc func(b *Block) error

	// Run renders graph asynchronously.
	Run struct {
		cancelFn context.CancelFunc
		group    *errgroup.Group
		frames   atomic.Int64
		logger   logrus.FieldLogger
	}

	config struct {
		blockSize int
		buffers   int
		limit     int
		outputs   []string
		logger    logrus.FieldLogger
	}
)

// Write calls fn.
func (fn SinkFunc) Write(b *Block) error {
	return fn(b)
}

// Frame returns channels of frame i.
func (b *Block) Frame(i int) []float32 {
	return b.Data[i*b.Channels : (i+1)*b.Channels]
}

// Samples returns interleaved samples of all frames in block.
func (b *Block) Samples() []float32 {
	return b.Data[:b.Frames*b.Channels]
}

// Option configures rendering.
type Option func(*config)

// WithBlockSize sets number of frames per block.
func WithBlockSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.blockSize = n
		}
	}
}

// WithBuffers sets number of blocks in flight.
func WithBuffers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.buffers = n
		}
	}
}

// WithLimit stops rendering after n frames. Zero renders until the
// context is done.
func WithLimit(n int) Option {
	return func(c *config) {
		c.limit = n
	}
}

// WithOutputs renders named graph outputs as channels. Without outputs the
// primary output is rendered as a single channel.
func WithOutputs(names ...string) Option {
	return func(c *config) {
		c.outputs = names
	}
}

// WithLogger sets the logger rendering is reported to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New starts rendering of graph g into sink s. The graph must not be
// processed by other goroutines until rendering is done.
func New(ctx context.Context, g graph.Interface, s Sink, opts ...Option) *Run {
	c := config{
		blockSize: DefaultBlockSize,
		buffers:   DefaultBuffers,
		logger:    log.GetLogger(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	ctx, cancelFn := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	r := Run{
		cancelFn: cancelFn,
		group:    group,
		logger: c.logger.WithFields(logrus.Fields{
			"block_size": c.blockSize,
			"buffers":    c.buffers,
			"limit":      c.limit,
		}),
	}

	channels := len(c.outputs)
	if channels == 0 {
		channels = 1
	}
	free := make(chan *Block, c.buffers)
	filled := make(chan *Block, c.buffers)
	for i := 0; i < c.buffers; i++ {
		free <- &Block{
			Data:     make([]float32, c.blockSize*channels),
			Channels: channels,
		}
	}

	r.logger.Debug("run started")
	group.Go(func() error {
		defer close(filled)
		return r.produce(ctx, g, &c, free, filled)
	})
	group.Go(func() error {
		return consume(ctx, s, free, filled)
	})
	return &r
}

func (r *Run) produce(ctx context.Context, g graph.Interface, c *config, free <-chan *Block, filled chan<- *Block) error {
	meter := metric.New(g, g.SampleRate())
	remaining := c.limit
	for c.limit == 0 || remaining > 0 {
		var b *Block
		select {
		case b = <-free:
		case <-ctx.Done():
			return ctx.Err()
		}
		b.Frames = c.blockSize
		if c.limit > 0 && remaining < b.Frames {
			b.Frames = remaining
		}
		meter.Begin()
		fill(g, c.outputs, b)
		meter.End(b.Frames)
		r.frames.Add(int64(b.Frames))
		remaining -= b.Frames

		select {
		case filled <- b:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func fill(g graph.Interface, outputs []string, b *Block) {
	if len(outputs) == 0 {
		for i := 0; i < b.Frames; i++ {
			b.Data[i] = g.ProcessSample()
		}
		return
	}
	for i := 0; i < b.Frames; i++ {
		g.ProcessSample()
		frame := b.Frame(i)
		for ch, name := range outputs {
			frame[ch] = g.Output(name)
		}
	}
}

func consume(ctx context.Context, s Sink, free chan<- *Block, filled <-chan *Block) error {
	for b := range filled {
		if err := s.Write(b); err != nil {
			return fmt.Errorf("sink write: %w", err)
		}
		free <- b
	}
	// producer closes the channel on cancellation too
	if ctx.Err() != nil {
		return nil
	}
	if f, ok := s.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("sink flush: %w", err)
		}
	}
	return nil
}

// Frames returns number of frames rendered so far.
func (r *Run) Frames() int64 {
	return r.frames.Load()
}

// Cancel stops rendering. Wait returns context.Canceled afterwards.
func (r *Run) Cancel() {
	r.cancelFn()
}

// Wait blocks until rendering is done and returns the first error.
func (r *Run) Wait() error {
	err := r.group.Wait()
	r.cancelFn()
	r.logger.WithField("frames", r.Frames()).Debug("run done")
	return err
}

// Render renders graph g into sink s and waits for completion.
func Render(ctx context.Context, g graph.Interface, s Sink, opts ...Option) error {
	return New(ctx, g, s, opts...).Wait()
}
