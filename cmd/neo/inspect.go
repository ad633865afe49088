package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/neo-catalog/model"
)

var errNoMatch = errors.New("no matching NEO")

func (a *app) inspectCmd() *cobra.Command {
	var (
		pdes, name string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show one NEO by primary designation or name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			var neo *model.NearEarthObject
			if pdes != "" {
				neo = c.LookupByDesignation(pdes)
			} else {
				neo = c.LookupByName(name)
			}
			if neo == nil {
				fmt.Fprintln(a.stderr, "No matching NEOs exist in the database.")
				return errNoMatch
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, neo)
			if verbose {
				for _, ca := range neo.Approaches() {
					fmt.Fprintln(out, "-", ca)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&pdes, "pdes", "p", "", "primary designation of the NEO")
	cmd.Flags().StringVarP(&name, "name", "n", "", "IAU name of the NEO")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also list the NEO's close approaches")
	cmd.MarkFlagsOneRequired("pdes", "name")
	cmd.MarkFlagsMutuallyExclusive("pdes", "name")
	return cmd
}
