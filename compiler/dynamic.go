package compiler

import (
	"fmt"

	"pipelined.dev/graph"
)

// exprPrefix starts names of expression nodes. It cannot start a
// description name.
const exprPrefix = "~expr"

// build is a dynamic graph with its relation to the plan.
type build struct {
	graph *graph.Graph
	// instances holds node key of every plan instance.
	instances []graph.NodeKey
	// exprs maps node keys of expression nodes to their wires.
	exprs map[graph.NodeKey]int
}

// BuildDynamic instantiates plan as a validated dynamic graph.
func BuildDynamic(p *Plan, opts ...graph.Option) (*graph.Graph, error) {
	b, err := buildGraph(p, opts...)
	if err != nil {
		return nil, err
	}
	return b.graph, nil
}

func buildGraph(p *Plan, opts ...graph.Option) (*build, error) {
	if p.SampleRate > 0 {
		opts = append([]graph.Option{graph.WithSampleRate(p.SampleRate)}, opts...)
	}
	g := graph.New(opts...)
	for _, in := range p.Inputs {
		var inOpts []graph.InputOption
		if in.Kind.IsScalar() {
			inOpts = append(inOpts, graph.WithDefault(in.Default), graph.WithSpec(in.Spec))
		}
		if _, err := g.AddInput(in.Name, in.Kind, inOpts...); err != nil {
			return nil, &Diagnostic{Where: fmt.Sprintf("input %q", in.Name), Err: err}
		}
	}
	for _, out := range p.Outputs {
		if _, err := g.AddOutput(out.Name, out.Kind); err != nil {
			return nil, &Diagnostic{Where: fmt.Sprintf("output %q", out.Name), Err: err}
		}
	}

	b := build{
		graph:     g,
		instances: make([]graph.NodeKey, len(p.Instances)),
		exprs:     make(map[graph.NodeKey]int),
	}
	for i, inst := range p.Instances {
		k, err := g.AddNode(inst.Name, inst.Type.New(inst.Args))
		if err != nil {
			return nil, &Diagnostic{Where: fmt.Sprintf("node %q", inst.Name), Err: err}
		}
		b.instances[i] = k
	}

	for wi, w := range p.Wires {
		where := fmt.Sprintf("connection %d", w.Connection)
		if w.Direct() {
			if err := g.ConnectPaths(p.Path(w.Terms[0].Factors[0]), p.Path(w.To)); err != nil {
				return nil, &Diagnostic{Where: where, Err: err}
			}
			continue
		}
		name := fmt.Sprintf("%s%d", exprPrefix, len(b.exprs))
		k, err := g.AddNode(name, newExprNode(w.Terms))
		if err != nil {
			return nil, &Diagnostic{Where: where, Err: err}
		}
		b.exprs[k] = wi
		in := 0
		for _, t := range w.Terms {
			for _, f := range t.Factors {
				if err := g.ConnectPaths(p.Path(f), fmt.Sprintf("%s.in%d", name, in)); err != nil {
					return nil, &Diagnostic{Where: where, Err: err}
				}
				in++
			}
		}
		if err := g.ConnectPaths(name+"."+exprOutput, p.Path(w.To)); err != nil {
			return nil, &Diagnostic{Where: where, Err: err}
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
