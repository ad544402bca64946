package run

import (
	"fmt"

	"go.uber.org/multierr"
)

// Repeater writes every block to multiple sinks in order. The first
// failing sink stops the block.
type Repeater struct {
	sinks []Sink
}

var _ Flusher = (*Repeater)(nil)

// Repeat returns sink that repeats blocks to all provided sinks.
func Repeat(sinks ...Sink) *Repeater {
	return &Repeater{sinks: sinks}
}

// Write implements Sink.
func (r *Repeater) Write(b *Block) error {
	for i, s := range r.sinks {
		if err := s.Write(b); err != nil {
			return fmt.Errorf("repeat %d: %w", i, err)
		}
	}
	return nil
}

// Flush flushes every sink that implements Flusher and returns all errors.
func (r *Repeater) Flush() error {
	var err error
	for _, s := range r.sinks {
		if f, ok := s.(Flusher); ok {
			err = multierr.Append(err, f.Flush())
		}
	}
	return err
}
