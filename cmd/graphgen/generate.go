package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"pipelined.dev/graph/compiler"
	"pipelined.dev/graph/log"
)

type generateCmd struct {
	output string
	pkg    string
	watch  bool
}

func newGenerateCmd() *cobra.Command {
	var g generateCmd
	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Generate Go source of a static graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if g.output == "" {
				g.output = strings.TrimSuffix(path, filepath.Ext(path)) + "_gen.go"
			}
			if err := g.generate(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, g.output)
			if !g.watch {
				return nil
			}
			return g.watchFile(cmd.Context(), path, func(err error) {
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, g.output)
			})
		},
	}
	cmd.Flags().StringVarP(&g.output, "output", "o", "", "output file, defaults to <description>_gen.go")
	cmd.Flags().StringVar(&g.pkg, "package", "", "override package of generated code")
	cmd.Flags().BoolVar(&g.watch, "watch", false, "regenerate when description changes")
	return cmd
}

func (g *generateCmd) generate(path string) error {
	p, err := analyze(path)
	if err != nil {
		return err
	}
	if g.pkg != "" {
		p.Package = g.pkg
	}
	src, err := compiler.GenerateStatic(p)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return os.WriteFile(g.output, src, 0o644)
}

// watchFile regenerates code on every write of the description until ctx
// is done. The directory is watched, so editors that replace files are
// handled.
func (g *generateCmd) watchFile(ctx context.Context, path string, done func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)
	l := log.GetLogger().WithField("description", path)
	l.Debug("watching")
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != target || !e.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			l.WithField("op", e.Op.String()).Debug("description changed")
			done(g.generate(path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.WithError(err).Warn("watch failed")
		}
	}
}
