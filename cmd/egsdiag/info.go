package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/LoveWonYoung/egsdiag/diag"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show TCU identity, firmware, partitions and mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				a.printf("Adapter:     %s\n", d.Info())
				if id, err := d.QueryIdent(ctx); err == nil {
					a.printf("Part number: %s\n", id.PartNumber)
					a.printf("EGS mode:    %s\n", id.EgsMode)
					a.printf("PCB:         %s\n", id.BoardVer)
					a.printf("Production:  %02d/%02d/20%02d\n", id.ManfDay, id.ManfMonth, id.ManfYear)
				} else {
					a.warn("ident unavailable: %v", err)
				}
				if sn, err := d.SerialNumber(ctx); err == nil {
					a.printf("Serial:      %s\n", sn)
				}
				if h, err := d.RunningFirmwareHeader(ctx); err == nil {
					a.printf("Firmware:    %s\n", h)
				} else if !diag.IsDeviceFault(err) {
					return err
				}
				parts, err := d.QueryPartitions(ctx)
				if err != nil {
					return err
				}
				a.printf("Running:     %s\n", parts.Running)
				a.printf("Next OTA:    %s\n", parts.NextOTA)
				a.printf("Coredump:    %s\n", parts.Coredump)
				a.printf("Flash:       %s\n", parts.Total)
				mode, err := d.ReadDeviceMode(ctx)
				if err != nil {
					return err
				}
				a.printf("Mode:        %s\n", mode)
				if msg := mode.Attention(); msg != "" {
					a.warn("%s", msg)
				}
				if efuse, err := d.ReadEfuseConfig(ctx); err == nil {
					a.printf("Board:       %s, made %s\n", efuse.BoardVer, efuse.ManufactureDate())
				}
				return nil
			})
		},
	}
}
