package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"

	"github.com/LoveWonYoung/egsdiag/config"
	"github.com/LoveWonYoung/egsdiag/diag"
	"github.com/LoveWonYoung/egsdiag/driver"
	"github.com/LoveWonYoung/egsdiag/logrecorder"
)

type app struct {
	configPath  string
	adapterType string
	deviceName  string
	verbose     bool

	cfg     *config.Config
	stopLog func()
	out     io.Writer
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.adapterType != "" {
		cfg.Adapter.Type = a.adapterType
	}
	if a.deviceName != "" {
		cfg.Adapter.Name = a.deviceName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	if a.out == nil {
		a.out = os.Stdout
	}

	logrecorder.BaseDir = cfg.Logging.Dir
	var extra io.Writer
	if a.verbose || cfg.Logging.Stderr {
		extra = os.Stderr
	}
	a.stopLog = logrecorder.InitAndRotate(cfg.Logging.Prefix+"_", extra)
	return nil
}

func (a *app) teardown() {
	if a.stopLog != nil {
		a.stopLog()
	}
}

// open 按配置定位适配器；未指定名称时使用扫描到的第一个设备
func (a *app) open() (*diag.Nag52Diag, error) {
	dc, err := a.cfg.Diag()
	if err != nil {
		return nil, err
	}
	info := a.cfg.HardwareInfo()
	if info.Name == "" {
		found, err := driver.Scan(dc.Type, dc.Scan)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%w: no %s adapter found", driver.ErrDeviceNotFound, dc.Type)
		}
		info = found[0]
	}
	return diag.Open(info, dc)
}

// withDiag 打开会话执行 fn，结束后关闭
func (a *app) withDiag(fn func(ctx context.Context, d *diag.Nag52Diag) error) error {
	d, err := a.open()
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(context.Background(), d)
}

func (a *app) ok(format string, args ...any) {
	fmt.Fprintln(a.out, color.GreenString("✓ "+format, args...))
}

func (a *app) warn(format string, args ...any) {
	fmt.Fprintln(a.out, color.YellowString("! "+format, args...))
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// parseUint 支持 0x 前缀
func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}

func progressPrinter(a *app, what string) func(diag.Progress) {
	last := -1
	return func(p diag.Progress) {
		pct := int(p.Percent())
		if pct == last && p.State != diag.FlashDone {
			return
		}
		last = pct
		fmt.Fprintf(a.out, "\r%s: %-12s %3d%% (%d/%d)", what, p.State, pct, p.Done, p.Total)
		if p.State == diag.FlashDone || p.State == diag.FlashFailed {
			fmt.Fprintln(a.out)
		}
	}
}
