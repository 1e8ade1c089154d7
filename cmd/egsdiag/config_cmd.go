package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/diag"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "TCU core and eFuse configuration",
	}

	var write string
	core := &cobra.Command{
		Use:   "core",
		Short: "Print the core configuration, or write it from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				if write != "" {
					cfg, err := loadYAML[codec.TcmCoreConfig](write)
					if err != nil {
						return err
					}
					if err := d.WriteCoreConfig(ctx, cfg); err != nil {
						return err
					}
					a.ok("core configuration written, TCU is rebooting")
					return nil
				}
				cfg, err := d.ReadCoreConfig(ctx)
				if codec.IsVersionMismatch(err) {
					return errors.New(codec.UserMessage(err))
				}
				if err != nil {
					return err
				}
				a.printf("%+v\n", cfg)
				a.printf("engine %s, can %s, shifter %s, profile %s, jeep/chrysler %t\n",
					cfg.EngineType, cfg.EgsCanType, cfg.ShifterStyle, cfg.DefaultProfile, cfg.IsJeepChrysler())
				if unknown := cfg.UnknownFields(); len(unknown) > 0 {
					a.warn("unknown values in %s, please update app or firmware", strings.Join(unknown, ", "))
				}
				return nil
			})
		},
	}
	core.Flags().StringVar(&write, "write", "", "YAML file with the configuration to write")
	cmd.AddCommand(core)

	cmd.AddCommand(&cobra.Command{
		Use:   "efuse",
		Short: "Print the eFuse board configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				e, err := d.ReadEfuseConfig(ctx)
				if codec.IsVersionMismatch(err) {
					return errors.New(codec.UserMessage(err))
				}
				if err != nil {
					return err
				}
				a.printf("board %s, manufactured %s (week %d)\n", e.BoardVer, e.ManufactureDate(), e.ManfWeek)
				return nil
			})
		},
	})
	return cmd
}

func loadYAML[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	err = yaml.Unmarshal(data, &v)
	return v, err
}
