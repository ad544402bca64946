// Command graphgen checks, generates and renders graph descriptions.
//
//	graphgen generate -o voice_gen.go voice.yaml
//	graphgen check --dump voice.yaml
//	graphgen render -o voice.wav --seconds 2 voice.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pipelined.dev/graph/compiler"
	"pipelined.dev/graph/description"
	"pipelined.dev/graph/log"
	"pipelined.dev/graph/nodes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:           "graphgen",
		Short:         "Compile DSP graph descriptions",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				log.GetLogger().SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(
		newGenerateCmd(),
		newCheckCmd(),
		newRenderCmd(),
	)
	return root
}

// analyze loads description from path and resolves it against the
// reference node registry.
func analyze(path string) (*compiler.Plan, error) {
	d, err := description.Load(path)
	if err != nil {
		return nil, err
	}
	p, err := compiler.Analyze(d, nodes.Registry())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
