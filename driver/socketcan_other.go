//go:build !linux

package driver

func openSocketCAN(HardwareInfo) (Adapter, error) { return nil, ErrChannelNotSupported }

func scanSocketCAN() ([]HardwareInfo, error) { return nil, nil }
