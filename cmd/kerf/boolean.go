package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/chazu/kerf/pkg/bop"
	"github.com/chazu/kerf/pkg/evaluate"
	"github.com/chazu/kerf/pkg/kernel/brep"
	"github.com/chazu/kerf/pkg/topo"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newBooleanCmd(a *app) *cobra.Command {
	var (
		fuzzy      float64
		parallel   bool
		bestEffort bool
		stats      bool
	)
	cmd := &cobra.Command{
		Use:   "boolean OP EXPR EXPR...",
		Short: "Apply union, intersect, cut or section to solids given as scene expressions",
		Example: `  kerf boolean cut '(box 1 1 1)' '(place (sphere 0.3) :at (vec3 0.5 0.5 1))'
  kerf boolean section '(box 1 1 1)' '(place (box 1 1 1) :at (vec3 0.5 0.5 0.5))'`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := bop.ParseOp(args[0])
			if err != nil {
				return err
			}
			opts := a.cfg.Options(a.log)
			if cmd.Flags().Changed("fuzzy") {
				opts.FuzzyTolerance = fuzzy
			}
			if cmd.Flags().Changed("parallel") {
				opts.Parallel = parallel
			}
			if cmd.Flags().Changed("best-effort") {
				opts.BestEffort = bestEffort
			}

			source := fmt.Sprintf("(assembly %q %s)", "operands", strings.Join(args[1:], " "))
			g, err := a.scene(cmd.Context(), "operands", source)
			if err != nil {
				return err
			}
			parts, err := evaluate.Evaluate(cmd.Context(), g, brep.New(opts), evaluate.Options{Logger: a.log})
			if err != nil {
				return err
			}
			shapes := lo.Map(parts, func(p evaluate.Part, _ int) topo.Shape {
				return p.Solid.(*brep.Solid).Shape()
			})

			res, err := bop.PerformBoolean(cmd.Context(), shapes, op, opts)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				a.log.Warn(w.Message, "kind", w.Kind, "shapes", w.Shapes)
			}
			printResult(cmd.OutOrStdout(), op, res, stats)
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&fuzzy, "fuzzy", 0, "fuzzy tolerance (default from config)")
	f.BoolVar(&parallel, "parallel", false, "run phases on several goroutines")
	f.BoolVar(&bestEffort, "best-effort", false, "skip unsupported geometry with a warning")
	f.BoolVar(&stats, "stats", false, "print pipeline counters")
	return cmd
}

func printResult(w io.Writer, op bop.Op, res *bop.Result, stats bool) {
	s := res.Shape
	if res.Empty {
		fmt.Fprintf(w, "%s: empty\n", op)
	} else {
		fmt.Fprintf(w, "%s: %d solids, %d shells, %d faces, %d edges, %d vertices\n", op,
			topo.Count(s, topo.KindSolid), topo.Count(s, topo.KindShell), topo.Count(s, topo.KindFace),
			topo.Count(s, topo.KindEdge), topo.Count(s, topo.KindVertex))
		if op != bop.Section {
			fmt.Fprintf(w, "volume: %.6g\n", topo.Volume(s))
		}
		bb := topo.Bounds(s)
		fmt.Fprintf(w, "bounds: (%.4g, %.4g, %.4g) - (%.4g, %.4g, %.4g)\n",
			bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z)
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "warnings: %d\n", len(res.Warnings))
	}
	if !stats {
		return
	}
	keys := lo.Keys(res.Stats)
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %d\n", k, res.Stats[k])
	}
}
