package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/diag"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "SCN settings and the module settings document",
	}

	var doc string
	read := &cobra.Command{
		Use:   "read <scn id>",
		Short: "Decode the current and default value of one SCN setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], 8)
			if err != nil {
				return err
			}
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				msd, err := a.moduleSettings(ctx, d, doc)
				if err != nil {
					return err
				}
				vals, err := d.DecodeSetting(ctx, msd, uint8(id))
				if err != nil {
					if codec.IsVersionMismatch(err) {
						return fmt.Errorf("%s", codec.UserMessage(err))
					}
					return err
				}
				a.printf("%s (SCN 0x%02X)\n", vals.Setting.Name, id)
				for _, name := range vals.Setting.SortedNames() {
					a.printf("  %-32s %-12v default %v\n", name, vals.Current[name], vals.Default[name])
				}
				return nil
			})
		},
	}
	read.Flags().StringVar(&doc, "doc", "", "module settings YAML (downloaded from the TCU if empty)")
	cmd.AddCommand(read)

	var out string
	download := &cobra.Command{
		Use:   "download",
		Short: "Download the module settings document stored on the TCU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				yml, _, err := d.DownloadModuleSettings(ctx, a.cfg.ModuleSettings.Info(), progressPrinter(a, "download"))
				if err != nil {
					return err
				}
				if out == "" {
					a.printf("%s", yml)
					return nil
				}
				return os.WriteFile(out, yml, 0644)
			})
		},
	}
	download.Flags().StringVarP(&out, "out", "o", "", "write the YAML to this file")
	cmd.AddCommand(download)

	cmd.AddCommand(&cobra.Command{
		Use:   "upload <module_settings.yml>",
		Short: "Store a module settings document on the TCU",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yml, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				if err := d.UploadModuleSettings(ctx, a.cfg.ModuleSettings.Info(), yml, progressPrinter(a, "upload")); err != nil {
					return err
				}
				a.ok("module settings uploaded")
				return nil
			})
		},
	})
	return cmd
}

func (a *app) moduleSettings(ctx context.Context, d *diag.Nag52Diag, path string) (*codec.ModuleSettingsData, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return codec.ParseModuleSettings(bytes.NewReader(data))
	}
	_, msd, err := d.DownloadModuleSettings(ctx, a.cfg.ModuleSettings.Info(), nil)
	return msd, err
}
