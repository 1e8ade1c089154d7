package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/diag"
	"github.com/LoveWonYoung/egsdiag/driver"
	"github.com/LoveWonYoung/egsdiag/logrecorder"
)

const logPollInterval = 20 * time.Millisecond

var levelColor = map[driver.LogLevel]func(format string, a ...any) string{
	driver.LogDebug: color.New(color.FgHiBlack).SprintfFunc(),
	driver.LogInfo:  color.New(color.FgGreen).SprintfFunc(),
	driver.LogWarn:  color.New(color.FgYellow).SprintfFunc(),
	driver.LogError: color.New(color.FgRed).SprintfFunc(),
}

func newMonitorCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Record TCU log output and watch the device mode until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			d, err := a.open()
			if err != nil {
				return err
			}
			defer d.Close()
			rec, err := logrecorder.NewRecorder(a.cfg.Logging.Prefix + "_")
			if err != nil {
				return err
			}
			defer rec.Close()
			a.ok("recording TCU log to %s", rec.Path())

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return pumpLogs(gctx, a, d, rec) })
			g.Go(func() error { return watchMode(gctx, a, d, interval) })
			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			a.printf("%d log lines recorded\n", rec.Lines())
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "device mode poll interval")
	return cmd
}

// pumpLogs 每次都重新取适配器，重连后自动跟随新的 USB 适配器
func pumpLogs(ctx context.Context, a *app, d *diag.Nag52Diag, rec *logrecorder.Recorder) error {
	ticker := time.NewTicker(logPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return rec.Flush()
		case <-ticker.C:
		}
		usb, ok := d.Adapter().(*driver.USBAdapter)
		if !ok {
			continue
		}
		for {
			m, ok := usb.ReadLog()
			if !ok {
				break
			}
			if err := rec.Record(m); err != nil {
				return err
			}
			paint, found := levelColor[m.Level]
			if !found {
				paint = fmt.Sprintf
			}
			fmt.Fprintln(a.out, paint("%s", m))
		}
	}
}

func watchMode(ctx context.Context, a *app, d *diag.Nag52Diag, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last codec.DeviceMode
	first := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		mode, err := d.ReadDeviceMode(ctx)
		switch {
		case err == nil:
			if first || mode != last {
				a.printf("device mode: %s\n", mode)
			}
			last, first = mode, false
		case diag.IsRecoverable(err):
			a.warn("connection lost: %v, reconnecting", err)
			if err := d.ReconnectWithRetry(ctx); err != nil {
				return fmt.Errorf("reconnect: %w", err)
			}
			a.ok("reconnected")
		default:
			return err
		}
	}
}
