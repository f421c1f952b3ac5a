package main

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fiberseq/m6a-service/internal/model"
	"github.com/fiberseq/m6a-service/internal/precision"
)

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Validate and summarize the embedded precision tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := model.PrecisionTables()
			labels := make([]string, 0, len(tables))
			for label := range tables {
				labels = append(labels, label)
			}
			sort.Strings(labels)

			out := cmd.OutOrStdout()
			for _, label := range labels {
				table, err := precision.Parse([]byte(tables[label]))
				if err != nil {
					return errors.WithMessagef(err, "precision table %q", label)
				}
				first, last := table.Data[0], table.Data[len(table.Data)-1]
				fmt.Fprintf(out, "%-12s columns=%v rows=%d score=[%g, %g] level=[%d, %d]\n",
					label, table.Columns, len(table.Data), first.Score, last.Score, first.Level, last.Level)
			}
			return nil
		},
	}
}
