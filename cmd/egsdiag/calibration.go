package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/diag"
)

// calibrationView 导出为 YAML 的标定内容，名称无效的段落省略
type calibrationView struct {
	TccName       string                              `yaml:"tcc_cfg,omitempty"`
	Tcc           *codec.TorqueConverterConfiguration `yaml:"tcc,omitempty"`
	MechName      string                              `yaml:"mech_cfg,omitempty"`
	Mech          *codec.MechanicalConfiguration      `yaml:"mech,omitempty"`
	HydrName      string                              `yaml:"hydr_cfg,omitempty"`
	Hydr          *codec.HydraulicConfiguration       `yaml:"hydr,omitempty"`
	ShiftAlgoName string                              `yaml:"shift_algo_cfg,omitempty"`
	ShiftAlgo     *codec.ShiftMapConfiguration        `yaml:"shift_algo,omitempty"`
}

func viewCalibration(c *codec.StoredCalibration) calibrationView {
	var v calibrationView
	if n, ok := c.SectionName(codec.SectionTorqueConverter); ok {
		v.TccName, v.Tcc = n, &c.Tcc
	}
	if n, ok := c.SectionName(codec.SectionMechanical); ok {
		v.MechName, v.Mech = n, &c.Mech
	}
	if n, ok := c.SectionName(codec.SectionHydraulic); ok {
		v.HydrName, v.Hydr = n, &c.Hydr
	}
	if n, ok := c.SectionName(codec.SectionShiftAlgo); ok {
		v.ShiftAlgoName, v.ShiftAlgo = n, &c.ShiftAlgo
	}
	return v
}

func newCalibrationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibration",
		Short: "Read or write the EGS calibration block",
	}

	var out string
	read := &cobra.Command{
		Use:   "read",
		Short: "Download the calibration block and print it as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				cal, err := d.ReadCalibration(ctx)
				if err != nil {
					return err
				}
				if err := cal.Verify(); err != nil {
					a.warn("stored calibration does not verify: %v", err)
				}
				data, err := yaml.Marshal(viewCalibration(cal))
				if err != nil {
					return err
				}
				if out != "" {
					return os.WriteFile(out, data, 0644)
				}
				a.printf("%s", data)
				return nil
			})
		},
	}
	read.Flags().StringVarP(&out, "out", "o", "", "write the YAML to this file")
	cmd.AddCommand(read)

	var db, pn, chassis string
	write := &cobra.Command{
		Use:   "write",
		Short: "Build a calibration from the database and write it to the TCU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if db == "" {
				db = a.cfg.Calibration.Database
			}
			if db == "" {
				return fmt.Errorf("no calibration database, use --db or calibration.database")
			}
			cdb, err := codec.LoadCalibrationDatabaseFile(db)
			if err != nil {
				return err
			}
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				if pn == "" {
					id, err := d.QueryIdent(ctx)
					if err != nil {
						return fmt.Errorf("read EGS part number: %w", err)
					}
					pn = "A" + id.PartNumber
				}
				var cc *codec.ChassisConfig
				known := cdb.ChassisFor(pn)
				for i, c := range known {
					if c.Chassis == chassis || c.Gearbox+"/"+c.Chassis == chassis {
						cc = &known[i]
						break
					}
				}
				if cc == nil {
					return fmt.Errorf("no chassis %q for EGS %s", chassis, pn)
				}
				cal, err := cdb.Build(pn, *cc)
				if err != nil {
					return err
				}
				if err := d.WriteCalibration(ctx, cal); err != nil {
					return err
				}
				a.ok("calibration %s/%s written to %s, TCU is rebooting", cc.Gearbox, cc.Chassis, pn)
				return nil
			})
		},
	}
	write.Flags().StringVar(&db, "db", "", "calibration database YAML")
	write.Flags().StringVar(&pn, "pn", "", "EGS part number (read from the TCU if empty)")
	write.Flags().StringVar(&chassis, "chassis", "", "chassis, e.g. W210 or \"722.6 small/W210\"")
	cmd.AddCommand(write)
	return cmd
}
