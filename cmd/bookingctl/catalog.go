package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCatalogCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the service and staff catalog as TOML",
		Long:  "catalog prints the active catalog. Redirect it to a file and point CATALOG_FILE at it to customize services, prices and barbers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := c.catalog()
			if err != nil {
				return err
			}
			if err := cat.Validate(); err != nil {
				return err
			}
			raw, err := cat.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
}
