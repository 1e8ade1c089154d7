package main

import (
	"github.com/spf13/cobra"

	"github.com/LoveWonYoung/egsdiag/driver"
)

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List adapters of the configured type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := a.cfg.Diag()
			if err != nil {
				return err
			}
			found, err := driver.Scan(dc.Type, dc.Scan)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				a.warn("no %s adapters found", dc.Type)
				return nil
			}
			for _, info := range found {
				a.printf("%-24s %-16s %s\n", info.Name, info.Vendor, info.Path)
			}
			return nil
		},
	}
}
