//go:build !windows && !(linux && cgo && (amd64 || arm64))

package driver

func findPassthruLibraries() []PassthruLibrary { return nil }

// OpenPassthru 当前平台没有 J2534 驱动
func OpenPassthru(HardwareInfo) (Adapter, error) { return nil, ErrChannelNotSupported }
