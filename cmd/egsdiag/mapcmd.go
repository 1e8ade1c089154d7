package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LoveWonYoung/egsdiag/diag"
)

func newMapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map editor",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "meta <map id>",
		Short: "Print axes and EEPROM key of a map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], 8)
			if err != nil {
				return err
			}
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				m, err := d.ReadMapMeta(ctx, uint8(id))
				if err != nil {
					return err
				}
				a.printf("key %s\nx %v\ny %v\n", m.Key, m.X, m.Y)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "read <map id>",
		Short: "Print the current map with default and EEPROM differences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], 8)
			if err != nil {
				return err
			}
			return a.withDiag(func(ctx context.Context, d *diag.Nag52Diag) error {
				m, err := d.ReadMap(ctx, uint8(id))
				if err != nil {
					return err
				}
				a.printf("%s", formatMap(m))
				return nil
			})
		},
	})
	return cmd
}

// formatMap 按 y 行 x 列输出，与默认值不同的格子标 *，与 EEPROM 不同的标 !
func formatMap(m *diag.Map) string {
	var sb strings.Builder
	cols := len(m.Meta.X)
	if cols == 0 {
		cols = len(m.Current)
	}
	sb.WriteString(m.Meta.Key + "\n       ")
	for _, x := range m.Meta.X {
		sb.WriteString(padLeft(x, 8))
	}
	sb.WriteString("\n")
	for i, v := range m.Current {
		if i%cols == 0 {
			row := i / cols
			if row < len(m.Meta.Y) {
				sb.WriteString(padLeft(m.Meta.Y[row], 7))
			} else {
				sb.WriteString("       ")
			}
		}
		mark := " "
		if i < len(m.EEPROM) && m.EEPROM[i] != v {
			mark = "!"
		} else if i < len(m.Default) && m.Default[i] != v {
			mark = "*"
		}
		sb.WriteString(padLeft(v, 7) + mark)
		if i%cols == cols-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func padLeft(v int16, w int) string {
	return fmt.Sprintf("%*d", w, v)
}
