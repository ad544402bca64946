// Package compiler turns graph descriptions into runnable graphs.
//
// A description is first analyzed into a Plan: node arrays are expanded,
// connection expressions are resolved and every problem is reported as a
// Diagnostic. A plan is then either built as a dynamic graph or rendered as
// Go source of a static graph type. Static code is generated from the
// validated dynamic graph, so both forms run nodes in the same order and
// produce the same output.
package compiler

import (
	"github.com/sirupsen/logrus"

	"pipelined.dev/graph"
	"pipelined.dev/graph/description"
	"pipelined.dev/graph/log"
)

// Artifact is the result of compilation. Graph is set in dynamic mode,
// Source in static mode.
type Artifact struct {
	Plan   *Plan
	Graph  *graph.Graph
	Source []byte
}

type config struct {
	logger       logrus.FieldLogger
	graphOptions []graph.Option
}

// Option configures compilation.
type Option func(*config)

// WithLogger sets the logger compilation steps are reported to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithGraphOptions passes options to dynamic graphs.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(c *config) {
		c.graphOptions = append(c.graphOptions, opts...)
	}
}

// Compile analyzes description and compiles it in its mode.
func Compile(d *description.Description, registry *Registry, opts ...Option) (*Artifact, error) {
	c := config{logger: log.GetLogger()}
	for _, opt := range opts {
		opt(&c)
	}
	p, err := Analyze(d, registry)
	if err != nil {
		return nil, err
	}
	l := c.logger.WithFields(logrus.Fields{
		"description": p.Name,
		"mode":        p.Mode,
		"instances":   len(p.Instances),
		"wires":       len(p.Wires),
	})

	a := Artifact{Plan: p}
	switch p.Mode {
	case description.Static:
		if a.Source, err = GenerateStatic(p); err != nil {
			return nil, err
		}
		l.WithField("bytes", len(a.Source)).Debug("static graph generated")
	default:
		opts := append([]graph.Option{graph.WithLogger(c.logger)}, c.graphOptions...)
		if a.Graph, err = BuildDynamic(p, opts...); err != nil {
			return nil, err
		}
		l.Debug("dynamic graph built")
	}
	return &a, nil
}
