package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/colbench"
	"github.com/hupe1980/colbench/engine"
)

func newEnginesCmd(_ *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the available storage engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := colbench.NewRegistry(engine.NewStores(engine.StoreOptions{}))
			if err != nil {
				return err
			}
			for _, name := range reg.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
