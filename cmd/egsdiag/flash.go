package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LoveWonYoung/egsdiag/diag"
	"github.com/LoveWonYoung/egsdiag/firmware"
)

func newFlashCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "flash <image.bin|image.hex>",
		Short: "Write a firmware image to the next OTA partition and reboot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fw, err := firmware.LoadFile(args[0])
			if err != nil {
				return err
			}
			a.printf("Image: %s (header at offset %d, %d bytes)\n", fw.Header, fw.HeaderOffset, len(fw.Raw))
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				running, err := d.RunningFirmwareHeader(ctx)
				if err != nil {
					return err
				}
				a.printf("Running: %s\n", running)
				if !force && !firmware.IsNewer(running.Version(), fw.Header.Version()) {
					return fmt.Errorf("image %s is not newer than running %s, use --force", fw.Header.Version(), running.Version())
				}
				f := d.NewFlasher(progressPrinter(a, "flash"))
				if err := f.Flash(ctx, fw.Raw); err != nil {
					return err
				}
				a.ok("flash complete, TCU is rebooting")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "flash even if the image is not newer")
	return cmd
}
