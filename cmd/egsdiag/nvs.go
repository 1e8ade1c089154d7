package main

import (
	"context"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/LoveWonYoung/egsdiag/diag"
	"github.com/LoveWonYoung/egsdiag/nvs"
)

func newNVSCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nvs",
		Short: "Non-volatile storage partition tools",
	}
	var out string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Download and decode the NVS partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				raw, part, err := d.DumpNVS(ctx, progressPrinter(a, "nvs"))
				if err != nil {
					return err
				}
				if out != "" {
					if err := os.WriteFile(out, raw, 0644); err != nil {
						return err
					}
					a.ok("raw partition written to %s", out)
				}
				printNVS(a, part)
				return nil
			})
		},
	}
	dump.Flags().StringVarP(&out, "out", "o", "", "also save the raw partition to this file")
	cmd.AddCommand(dump)
	return cmd
}

func printNVS(a *app, part *nvs.Partition) {
	ns := part.Namespaces()
	for _, pg := range part.Pages {
		a.printf("page %d: %s seq %d, %d items\n", pg.Index, pg.State, pg.Seq, len(pg.Items))
		if pg.Err != nil {
			a.warn("page %d: %v", pg.Index, pg.Err)
		}
	}
	items := part.Items()
	sort.SliceStable(items, func(i, j int) bool {
		return ns[items[i].Entry.NS] < ns[items[j].Entry.NS]
	})
	for _, it := range items {
		if it.Entry.NS == 0 {
			continue
		}
		a.printf("%-12s %-16s %-10s %v\n", ns[it.Entry.NS], it.Key(), nvs.TypeName(it.Entry.Type), it.Value)
	}
}
