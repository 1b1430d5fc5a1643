package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/chazu/kerf/pkg/engine"
	"github.com/chazu/kerf/pkg/evaluate"
	"github.com/chazu/kerf/pkg/graph"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/kernel/brep"
	"github.com/chazu/kerf/pkg/kernel/sdfx"
	"github.com/spf13/cobra"
)

func newEvalCmd(a *app) *cobra.Command {
	var kernelName string
	cmd := &cobra.Command{
		Use:   "eval FILE",
		Short: "Evaluate a scene file and report its parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			g, err := a.scene(cmd.Context(), args[0], string(src))
			if err != nil {
				return err
			}
			if kernelName == "" {
				kernelName = a.cfg.Eval.Kernel
			}
			k, err := a.kernel(kernelName)
			if err != nil {
				return err
			}
			parts, err := evaluate.Evaluate(cmd.Context(), g, k, evaluate.Options{
				Fuzzy:  a.cfg.Boolean.FuzzyTolerance,
				Logger: a.log,
			})
			if err != nil {
				return err
			}
			if b, ok := k.(*brep.Kernel); ok {
				for _, w := range b.Warnings() {
					a.log.Warn(w.Message, "kind", w.Kind, "shapes", w.Shapes)
				}
			}
			return printParts(cmd.OutOrStdout(), parts)
		},
	}
	cmd.Flags().StringVar(&kernelName, "kernel", "", "geometry kernel, brep or sdfx (default from config)")
	return cmd
}

// scene evaluates source, reporting evaluation errors against file.
func (a *app) scene(ctx context.Context, file, source string) (*graph.Scene, error) {
	eng := engine.NewEngine()
	eng.Timeout = time.Duration(a.cfg.Eval.Timeout)
	g, evalErrs, err := eng.Evaluate(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		errs := make([]error, len(evalErrs))
		for i, e := range evalErrs {
			errs[i] = fmt.Errorf("%s: %w", file, e)
		}
		return nil, errors.Join(errs...)
	}
	for _, v := range graph.Validate(g) {
		a.log.Warn(v.Message, "node", v.NodeID.Short())
	}
	a.log.Debug("scene", "file", file, "nodes", g.NodeCount(), "roots", len(g.Roots))
	return g, nil
}

func (a *app) kernel(name string) (kernel.Kernel, error) {
	switch name {
	case "brep":
		return brep.New(a.cfg.Options(a.log)), nil
	case "sdfx":
		return sdfx.New(), nil
	}
	return nil, fmt.Errorf("unknown kernel %q, want brep or sdfx", name)
}

// printParts writes one line per part: name, volume when the kernel knows
// it, and bounding box.
func printParts(w io.Writer, parts []evaluate.Part) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PART\tVOLUME\tMIN\tMAX")
	for _, p := range parts {
		vol := "-"
		if v, ok := p.Solid.(interface{ Volume() float64 }); ok {
			vol = fmt.Sprintf("%.6g", v.Volume())
		}
		if p.Solid.Empty() {
			fmt.Fprintf(tw, "%s\t%s\t(empty)\t\n", p.Name, vol)
			continue
		}
		min, max := p.Solid.BoundingBox()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, vol, point(min), point(max))
	}
	return tw.Flush()
}

func point(p [3]float64) string {
	return fmt.Sprintf("(%.4g, %.4g, %.4g)", p[0], p[1], p[2])
}
