package main

import (
	"log/slog"

	"github.com/chazu/kerf/pkg/config"
	"github.com/spf13/cobra"
)

// app is the state shared by the subcommands, set up before any of them
// runs.
type app struct {
	configPath string
	verbose    bool

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "kerf",
		Short:         "B-Rep Boolean operations on solid scenes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := cfg.Log.Level
			if a.verbose {
				level = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "options file (default ./"+config.FileName+" if present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newEvalCmd(a), newBooleanCmd(a), newConfigCmd(a))
	return root
}
