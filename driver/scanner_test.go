package driver

import (
	"errors"
	"runtime"
	"testing"

	"go.bug.st/serial/enumerator"
)

func TestScanUSBFiltersPorts(t *testing.T) {
	old := portLister
	defer func() { portLister = old }()
	portLister = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "303A", PID: "1001", Product: "ESP32"},
			{Name: "/dev/ttyS0", IsUSB: false},
			{Name: "/dev/ttyACM1", IsUSB: true},
			{Name: "/dev/cu.usbserial", IsUSB: true},
		}, nil
	}

	got, err := ScanUSB()
	if err != nil {
		t.Fatal(err)
	}
	want := 3
	if runtime.GOOS == "linux" {
		want = 2
	}
	if len(got) != want {
		t.Fatalf("got %d ports: %+v", len(got), got)
	}
	if got[0].Name != "/dev/ttyUSB0" || got[0].Vendor != "ESP32 303A:1001" || !got[0].Capabilities.IsoTP {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Vendor != usbVendor {
		t.Errorf("second vendor = %q", got[1].Vendor)
	}
}

func stubPassthruFinder(t *testing.T, libs ...PassthruLibrary) {
	t.Helper()
	old := passthruFinder
	t.Cleanup(func() { passthruFinder = old })
	passthruFinder = func() []PassthruLibrary { return libs }
}

func TestScanPassthruMergesInstalledAndConfigured(t *testing.T) {
	stubPassthruFinder(t,
		PassthruLibrary{Name: "Tactrix OpenPort 2.0", Vendor: "J2534", Library: `C:\Windows\op20pt32.dll`},
		PassthruLibrary{Name: "Macchina A0", Vendor: "J2534", Library: "/home/u/.passthru/a0.so"},
	)
	got, err := Scan(AdapterPassthru, ScanOptions{PassthruLibraries: []PassthruLibrary{
		{Name: "Macchina A0", Vendor: "Macchina", Library: "/usr/lib/libmacchina.so"},
		{Name: "Scanmatik 2", Vendor: "Scanmatik", Library: "/opt/sm2/libsm2.so"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Name != "Tactrix OpenPort 2.0" || !got[0].Capabilities.IsoTP {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Path != "/home/u/.passthru/a0.so" {
		t.Errorf("installed driver should win over the configured duplicate: %+v", got[1])
	}
	if got[2].Path != "/opt/sm2/libsm2.so" {
		t.Errorf("configured driver missing: %+v", got[2])
	}
}

func TestTryConnect(t *testing.T) {
	oldOpener := opener
	defer func() { opener = oldOpener }()
	stubPassthruFinder(t)

	var opened HardwareInfo
	opener = func(typ AdapterType, info HardwareInfo, opts ScanOptions) (Adapter, error) {
		opened = info
		dev := NewVirtualCAN()
		return NewCANAdapter(dev, info)
	}
	opts := ScanOptions{PassthruLibraries: []PassthruLibrary{{Name: "A"}, {Name: "B", Library: "b.dll"}}}

	a, err := TryConnect(HardwareInfo{Name: "B"}, AdapterPassthru, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if opened.Path != "b.dll" {
		t.Errorf("opened %+v", opened)
	}

	_, err = TryConnect(HardwareInfo{Name: "C"}, AdapterPassthru, opts)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestParseAdapterType(t *testing.T) {
	for _, s := range []string{"usb", "passthru", "socketcan"} {
		typ, err := ParseAdapterType(s)
		if err != nil {
			t.Fatal(err)
		}
		if typ.String() != s {
			t.Errorf("%s -> %s", s, typ)
		}
	}
	if _, err := ParseAdapterType("bluetooth"); err == nil {
		t.Error("expected error")
	}
}
