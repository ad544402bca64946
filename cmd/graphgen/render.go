package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pipelined.dev/graph"
	"pipelined.dev/graph/compiler"
	"pipelined.dev/graph/jit"
	"pipelined.dev/graph/wav"
)

type renderCmd struct {
	output     string
	seconds    float64
	sampleRate float32
	outputs    []string
	backend    string
}

func newRenderCmd() *cobra.Command {
	var r renderCmd
	cmd := &cobra.Command{
		Use:   "render [description]",
		Short: "Render graph outputs into a wav file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := analyze(args[0])
			if err != nil {
				return err
			}
			var opts []graph.Option
			if r.sampleRate > 0 {
				opts = append(opts, graph.WithSampleRate(r.sampleRate))
			}
			dynamic, err := compiler.BuildDynamic(p, opts...)
			if err != nil {
				return err
			}
			var g graph.Interface = dynamic
			if r.backend != "" {
				if g, err = jit.Compile(dynamic, jit.WithBackend(r.backend)); err != nil {
					return err
				}
			}
			if err := wav.Render(cmd.Context(), g, r.output, r.seconds, r.outputs...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], r.output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&r.output, "output", "o", "out.wav", "output wav file")
	cmd.Flags().Float64Var(&r.seconds, "seconds", 1, "duration to render")
	cmd.Flags().Float32Var(&r.sampleRate, "sample-rate", 0, "override description sample rate")
	cmd.Flags().StringSliceVar(&r.outputs, "outputs", nil, "graph outputs rendered as channels")
	cmd.Flags().StringVar(&r.backend, "backend", "", "render with jit backend")
	return cmd
}
