package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pipelined.dev/graph"
	"pipelined.dev/graph/compiler"
	"pipelined.dev/graph/jit"
)

type checkCmd struct {
	dump    bool
	backend string
}

func newCheckCmd() *cobra.Command {
	var c checkCmd
	cmd := &cobra.Command{
		Use:   "check [description]",
		Short: "Validate description and print execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.check(cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().BoolVar(&c.dump, "dump", false, "dump lowering input")
	cmd.Flags().StringVar(&c.backend, "backend", "", "also compile with jit backend")
	return cmd
}

func (c *checkCmd) check(w io.Writer, path string) error {
	p, err := analyze(path)
	if err != nil {
		return err
	}
	g, err := compiler.BuildDynamic(p)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(w, "%s: %s, %d nodes, %d connections\n", p.Name, p.Mode, len(g.Nodes()), len(g.Connections()))
	fmt.Fprintf(w, "order: %s\n", strings.Join(nodeNames(g, g.Order()), ", "))
	for _, conn := range g.Delayed() {
		fmt.Fprintf(w, "delayed: %s -> %s\n", endpointPath(g, conn.From), endpointPath(g, conn.To))
	}
	settable := make([]string, 0, len(g.Settable()))
	for _, k := range g.Settable() {
		settable = append(settable, endpointPath(g, k))
	}
	fmt.Fprintf(w, "settable: %s\n", strings.Join(settable, ", "))

	if c.dump {
		ir, err := jit.NewIR(g)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, ir.Dump())
	}
	if c.backend != "" {
		cg, err := jit.Compile(g, jit.WithBackend(c.backend))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "compiled: %s, %d scalars, %d buses\n", cg.Backend(), cg.Layout().Scalars, cg.Layout().Buses)
	}
	return nil
}

func nodeNames(g *graph.Graph, keys []graph.NodeKey) []string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if info, ok := g.NodeInfo(k); ok {
			names = append(names, info.Name)
		}
	}
	return names
}

func endpointPath(g *graph.Graph, k graph.ValueKey) string {
	if info, ok := g.EndpointInfo(k); ok {
		return info.Path
	}
	return "?"
}
