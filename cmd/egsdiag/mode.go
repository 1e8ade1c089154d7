package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/diag"
)

func newModeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Read or change the TCU device mode",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current device mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				mode, err := d.ReadDeviceMode(ctx)
				if err != nil {
					return err
				}
				a.printf("%s (0x%04X)\n", mode, uint16(mode))
				return nil
			})
		},
	})

	var persist bool
	set := &cobra.Command{
		Use:   "set <FLAG>[|FLAG...]",
		Short: "Set the device mode, e.g. NORMAL|CANLOGGER",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mode codec.DeviceMode
			for _, name := range strings.Split(args[0], "|") {
				flag, err := codec.ParseDeviceModeName(strings.TrimSpace(name))
				if err != nil {
					return err
				}
				mode = mode.With(flag)
			}
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				if err := d.SetDeviceMode(ctx, mode, persist); err != nil {
					return err
				}
				a.ok("mode set to %s", mode)
				return nil
			})
		},
	}
	set.Flags().BoolVar(&persist, "persist", false, "store the mode in EEPROM")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "release",
		Short: "Hand mode control back to the TCU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				if err := d.ReturnModeControl(ctx); err != nil {
					return err
				}
				a.ok("mode control released")
				return nil
			})
		},
	})
	return cmd
}
