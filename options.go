package graph

import (
	"github.com/sirupsen/logrus"

	"pipelined.dev/graph/param"
)

// DefaultSampleRate is used when graph is created without explicit rate.
const DefaultSampleRate float32 = 44100

// Option configures a graph.
type Option func(*Graph)

// WithSampleRate sets initial sample rate of the graph.
func WithSampleRate(sampleRate float32) Option {
	return func(g *Graph) {
		if sampleRate > 0 {
			g.sampleRate = sampleRate
		}
	}
}

// WithLogger sets the logger graph reports construction steps to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// InputOption configures a graph input.
type InputOption func(*endpoint)

// WithDefault sets initial value of a stream or value input.
func WithDefault(v float32) InputOption {
	return func(e *endpoint) {
		e.value = v
		e.initial = v
	}
}

// WithSpec sets shaping of a value input.
func WithSpec(s param.Spec) InputOption {
	return func(e *endpoint) {
		e.input.Spec = s
	}
}
