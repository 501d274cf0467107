package main

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/davidbz/uniai/internal/catalog"
)

func newModelsCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the known models of every provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("PROVIDER", "CAPABILITY", "MODEL", "DEFAULT")

			for _, row := range catalog.Default().Rows() {
				if provider != "" && row.Provider != provider {
					continue
				}
				def := ""
				if row.Default {
					def = "*"
				}
				table.AddRow(row.Provider, string(row.Capability), row.Model, def)
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), table)
			return err
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "only list this provider's models")
	return cmd
}
