// Package main provides the econsheet CLI: render, edit, validate and compile
// economic-assumption models from their field schemas, and keep saved
// documents in a local store.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dlovans/econsheet/internal/config"
	"github.com/dlovans/econsheet/internal/logging"
	"github.com/dlovans/econsheet/pkg/econsheet"
)

// app carries what every command shares once the root command has run.
type app struct {
	configPath string
	verbose    bool
	today      string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "econsheet",
		Short: "Schema-driven economic assumption sheets",
		Long: `econsheet renders economic-assumption models (pricing, taxes, dates,
reserves and the like) as editable cell grids driven by a field schema,
validates edited state, and compiles it into the econ_function payload.

A <kind> argument names a schema in the configured schema directory, or is a
path to a schema file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger, err = logging.New(cfg.LogLevel, a.verbose)
			if err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.FileName, "configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&a.today, "today", "", "date used for date defaults (YYYY-MM-DD, defaults to now)")

	root.AddCommand(
		a.defaultsCmd(),
		a.gridCmd(),
		a.validateCmd(),
		a.compileCmd(),
		a.lintCmd(),
		a.editCmd(),
		a.saveCmd(),
		a.showCmd(),
		a.listCmd(),
		a.deleteCmd(),
		a.initCmd(),
	)
	return root
}

// engineOptions builds the engine options from configuration and flags.
func (a *app) engineOptions() ([]econsheet.Option, error) {
	opts := []econsheet.Option{
		econsheet.WithLogger(a.logger),
		econsheet.WithLocale(a.cfg.LocaleTag()),
	}
	if a.today != "" {
		day, err := time.Parse("2006-01-02", a.today)
		if err != nil {
			return nil, fmt.Errorf("--today %q: %w", a.today, err)
		}
		opts = append(opts, econsheet.WithClock(func() time.Time { return day }))
	}
	return opts, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
