package main

import (
	"context"
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/LoveWonYoung/egsdiag/diag"
)

func newMemoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Direct TCU memory access",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "read <sram0|sram1|sram2|psram|calibration> <offset> <len>",
		Short: "Hex dump a memory range, split into 255 byte reads",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			region, err := diag.ParseMemoryRegion(args[0])
			if err != nil {
				return err
			}
			off, err := parseUint(args[1], 32)
			if err != nil {
				return err
			}
			n, err := parseUint(args[2], 32)
			if err != nil {
				return err
			}
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				var data []byte
				for done := uint64(0); done < n; {
					chunk := min(n-done, diag.MaxReadMemory)
					b, err := d.ReadMemory(ctx, region, uint32(off+done), int(chunk))
					if err != nil {
						return err
					}
					data = append(data, b...)
					done += chunk
				}
				a.printf("%s", hex.Dump(data))
				return nil
			})
		},
	})
	return cmd
}
