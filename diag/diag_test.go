package diag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/driver"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

func TestWithKWPAfterClose(t *testing.T) {
	d, _, a := newTestDiag(t)
	if !d.IsConnected() {
		t.Fatal("expected connected")
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !a.closed {
		t.Error("adapter not closed")
	}
	called := false
	err := d.WithKWP(func(*kwp.Server) error { called = true; return nil })
	if !errors.Is(err, ErrDeviceNotOpen) || called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
	if _, err := d.ReadDeviceMode(context.Background()); !errors.Is(err, ErrDeviceNotOpen) {
		t.Errorf("ReadDeviceMode err = %v", err)
	}
	if d.IsConnected() {
		t.Error("closed session reports connected")
	}
}

func TestConnectionStateDuringOperation(t *testing.T) {
	d, _, a := newTestDiag(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- d.WithKWP(func(*kwp.Server) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	state := make(chan bool, 1)
	go func() {
		state <- d.IsConnected() && d.Adapter() == driver.Adapter(a)
	}()
	select {
	case ok := <-state:
		if !ok {
			t.Error("session reported disconnected while an operation is running")
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("IsConnected blocked behind a running operation")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestTryReconnect(t *testing.T) {
	d, oldTCU, oldAdapter := newTestDiag(t)
	newTCU := newFakeTCU()
	var got driver.HardwareInfo
	d.connect = func(info driver.HardwareInfo, _ driver.AdapterType, _ driver.ScanOptions) (driver.Adapter, error) {
		got = info
		return &fakeAdapter{tcu: newTCU, name: info.Name, connected: true}, nil
	}
	if err := d.TryReconnect(); err != nil {
		t.Fatal(err)
	}
	if got.Name != "EGS52 USB" {
		t.Errorf("reconnect used identity %v", got)
	}
	if !oldAdapter.closed {
		t.Error("old adapter left open")
	}
	if err := d.ReturnModeControl(context.Background()); err != nil {
		t.Fatal(err)
	}
	if oldTCU.RequestCount() != 0 || newTCU.RequestCount() != 1 {
		t.Errorf("requests old=%d new=%d", oldTCU.RequestCount(), newTCU.RequestCount())
	}
}

func TestTryReconnectFailureLeavesSessionClosed(t *testing.T) {
	d, _, _ := newTestDiag(t)
	d.connect = func(driver.HardwareInfo, driver.AdapterType, driver.ScanOptions) (driver.Adapter, error) {
		return nil, driver.ErrDeviceNotFound
	}
	if err := d.TryReconnect(); !errors.Is(err, driver.ErrDeviceNotFound) {
		t.Fatalf("err = %v", err)
	}
	if err := d.WithKWP(func(*kwp.Server) error { return nil }); !errors.Is(err, ErrDeviceNotOpen) {
		t.Errorf("err = %v", err)
	}
}

func TestReconnectWithRetry(t *testing.T) {
	d, _, _ := newTestDiag(t)
	calls := 0
	d.connect = func(info driver.HardwareInfo, _ driver.AdapterType, _ driver.ScanOptions) (driver.Adapter, error) {
		calls++
		if calls < 3 {
			return nil, driver.ErrDeviceNotFound
		}
		return &fakeAdapter{tcu: newFakeTCU(), name: info.Name, connected: true}, nil
	}
	if err := d.ReconnectWithRetry(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !d.IsConnected() {
		t.Error("not connected after retry")
	}
}

func TestReconnectWithRetryGivesUp(t *testing.T) {
	d, _, _ := newTestDiag(t)
	calls := 0
	d.connect = func(driver.HardwareInfo, driver.AdapterType, driver.ScanOptions) (driver.Adapter, error) {
		calls++
		return nil, driver.ErrDeviceNotFound
	}
	err := d.ReconnectWithRetry(context.Background())
	if !errors.Is(err, driver.ErrDeviceNotFound) {
		t.Fatalf("err = %v", err)
	}
	if calls != int(d.cfg.ReconnectAttempts) {
		t.Errorf("calls = %d, want %d", calls, d.cfg.ReconnectAttempts)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
		fault       bool
	}{
		{"nil", nil, false, false},
		{"no response", fmt.Errorf("SID 0x21: %w", kwp.ErrNoResponse), true, false},
		{"bad length", kwp.ErrInvalidResponseLength, true, false},
		{"wrong sid", &kwp.ResponseError{Want: 0x61, Got: 0x62}, true, false},
		{"port gone", io.EOF, true, false},
		{"closed", ErrDeviceNotOpen, true, false},
		{"nrc", &kwp.ECUError{ServiceID: 0x21, Code: 0x31}, false, true},
		{"bounds", &BoundsError{Region: RegionSram0}, false, false},
		{"flash stage", &FlashError{Stage: FlashTransferring, Err: kwp.ErrNoResponse}, true, false},
		{"usb write", &driver.APIError{Code: 98, Desc: "write: input/output error"}, true, false},
		{"passthru read", fmt.Errorf("read: %w", &driver.APIError{Code: 8, Desc: "PassThruReadMsgs"}), true, false},
		{"foreign address", &driver.UnexpectedAddressError{Want: 0x7E9, Got: 0x7E8}, true, false},
		{"device gone", driver.ErrDeviceNotFound, true, false},
		{"interface closed", driver.ErrInterfaceNotOpen, true, false},
		{"flash check", &FlashError{Stage: FlashEnding, Err: ErrFlashCheckFailed}, false, false},
		{"layout mismatch", &codec.WrongIDError{Wanted: 0xFE, Real: 0xFD}, false, false},
		{"size mismatch", &SizeMismatchError{What: "calibration", Wanted: 10, Got: 8}, false, false},
		{"short struct", &codec.LengthError{Want: 4, Got: 2}, false, false},
		{"cancelled", fmt.Errorf("flash: %w", context.Canceled), false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRecoverable(tc.err); got != tc.recoverable {
				t.Errorf("IsRecoverable = %v", got)
			}
			if got := IsDeviceFault(tc.err); got != tc.fault {
				t.Errorf("IsDeviceFault = %v", got)
			}
		})
	}
}
