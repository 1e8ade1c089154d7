package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "egsdiag",
		Short:         "Diagnostic and configuration tool for the NAG52 EGS TCU",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}
	f := rootCmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "egsdiag.yaml", "configuration file")
	f.StringVarP(&a.adapterType, "adapter", "a", "", "adapter type override: usb, passthru, socketcan")
	f.StringVarP(&a.deviceName, "device", "d", "", "adapter name override (serial port, J2534 device, CAN interface)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "also print the process log to stderr")

	rootCmd.AddCommand(
		newScanCmd(a),
		newInfoCmd(a),
		newModeCmd(a),
		newFlashCmd(a),
		newNVSCmd(a),
		newMemoryCmd(a),
		newCalibrationCmd(a),
		newConfigCmd(a),
		newSettingsCmd(a),
		newMapCmd(a),
		newMonitorCmd(a),
	)
	return rootCmd
}
