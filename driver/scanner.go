package driver

import (
	"fmt"
	"log"
	"runtime"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ScanOptions 扫描与打开适配器所需的外部信息
type ScanOptions struct {
	BaudRate          int
	PassthruLibraries []PassthruLibrary
}

// PassthruLibrary 一个已安装的 J2534 驱动库
type PassthruLibrary struct {
	Name    string `yaml:"name"`
	Vendor  string `yaml:"vendor"`
	Library string `yaml:"library"`
}

func (l PassthruLibrary) info() HardwareInfo {
	return HardwareInfo{
		Name:         l.Name,
		Vendor:       l.Vendor,
		Path:         l.Library,
		Capabilities: Capabilities{IsoTP: true, CAN: true},
	}
}

// portLister、passthruFinder 便于测试替换
var (
	portLister     = enumerator.GetDetailedPortsList
	passthruFinder = findPassthruLibraries
)

// ScanUSB 列出 USB 串口设备，linux 上只保留 ttyUSB / ttyACM
func ScanUSB() ([]HardwareInfo, error) {
	ports, err := portLister()
	if err != nil {
		return nil, &APIError{Code: 99, Desc: "list serial ports", Err: err}
	}
	var out []HardwareInfo
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if runtime.GOOS == "linux" && !strings.Contains(p.Name, "USB") && !strings.Contains(p.Name, "ACM") {
			continue
		}
		vendor := usbVendor
		if p.Product != "" {
			vendor = fmt.Sprintf("%s %s:%s", p.Product, p.VID, p.PID)
		}
		out = append(out, HardwareInfo{
			Name:         p.Name,
			Vendor:       vendor,
			Path:         p.Name,
			Capabilities: Capabilities{IsoTP: true},
		})
	}
	return out, nil
}

// ScanPassthru 系统已安装的 J2534 驱动在前，配置文件中额外列出的驱动 (同名跳过) 在后
func ScanPassthru(configured []PassthruLibrary) []HardwareInfo {
	var out []HardwareInfo
	seen := make(map[string]bool)
	for _, lib := range append(passthruFinder(), configured...) {
		if seen[lib.Name] {
			continue
		}
		seen[lib.Name] = true
		out = append(out, lib.info())
	}
	return out
}

// Scan 列出某一类适配器的候选设备
func Scan(typ AdapterType, opts ScanOptions) ([]HardwareInfo, error) {
	switch typ {
	case AdapterUSB:
		return ScanUSB()
	case AdapterPassthru:
		return ScanPassthru(opts.PassthruLibraries), nil
	case AdapterSocketCAN:
		return scanSocketCAN()
	}
	return nil, fmt.Errorf("unknown adapter type %d", typ)
}

// opener 按类型打开已定位的设备，便于测试替换
var opener = func(typ AdapterType, info HardwareInfo, opts ScanOptions) (Adapter, error) {
	switch typ {
	case AdapterUSB:
		return OpenUSB(info.Path, opts.BaudRate)
	case AdapterPassthru:
		return OpenPassthru(info)
	case AdapterSocketCAN:
		return openSocketCAN(info)
	}
	return nil, ErrChannelNotSupported
}

// TryConnect 按名称重新扫描并打开设备。设备不存在时返回 ErrDeviceNotFound。
func TryConnect(info HardwareInfo, typ AdapterType, opts ScanOptions) (Adapter, error) {
	found, err := Scan(typ, opts)
	if err != nil {
		return nil, err
	}
	for _, candidate := range found {
		if candidate.Name == info.Name {
			log.Printf("正在打开 %s 适配器: %s", typ, candidate)
			return opener(typ, candidate, opts)
		}
	}
	return nil, fmt.Errorf("%w: %s %q", ErrDeviceNotFound, typ, info.Name)
}
