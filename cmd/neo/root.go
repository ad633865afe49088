package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/neo-catalog/internal/config"
	"github.com/signalsfoundry/neo-catalog/internal/extract"
	"github.com/signalsfoundry/neo-catalog/internal/logging"
	"github.com/signalsfoundry/neo-catalog/kb"
)

// app carries state shared by every subcommand. The catalog is loaded on
// first use and kept for the rest of the process, which lets the
// interactive session run many commands against one load.
type app struct {
	stdout, stderr io.Writer

	configPath string
	cfg        *config.Config
	log        logging.Logger
	catalog    *kb.Catalog
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, log: logging.Noop()}
}

var flagBindings = []config.FlagBinding{
	{Key: "data.neos", Flag: "neofile"},
	{Key: "data.approaches", Flag: "cadfile"},
	{Key: "log.level", Flag: "log-level"},
	{Key: "log.format", Flag: "log-format"},
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "neo",
		Short: "Explore near-earth objects and their close approaches",
		Long: `neo loads the JPL small-body NEO export (CSV) and close-approach data (JSON)
into an in-memory catalog and answers lookups and filtered queries against it.

Examples:
  neo inspect --pdes 433
  neo inspect --name Halley --verbose
  neo query --start-date 2020-01-01 --max-distance 0.05 --limit 5
  neo query --hazardous --outfile results.json
  neo interactive`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (yaml, toml or json)")
	pf.String("neofile", "", "path to the NEO CSV file (default data/neos.csv)")
	pf.String("cadfile", "", "path to the close-approach JSON file (default data/cad.json)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")

	root.AddCommand(
		a.inspectCmd(),
		a.queryCmd(),
		a.interactiveCmd(),
		versionCmd(),
	)
	return root
}

// configure resolves configuration and the logger once per process.
func (a *app) configure(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(config.New(), a.configPath, cmd.Flags(), flagBindings...)
	if err != nil {
		return err
	}
	logCfg := cfg.Logging()
	logCfg.Output = a.stderr
	a.cfg = cfg
	a.log = logging.New(logCfg)
	return nil
}

func (a *app) loadCatalog(ctx context.Context) (*kb.Catalog, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}
	c, err := extract.LoadCatalog(ctx, a.log, a.cfg.Data.NEOs, a.cfg.Data.Approaches)
	if err != nil {
		return nil, err
	}
	a.catalog = c
	return c, nil
}
