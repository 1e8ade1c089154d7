package diag

import (
	"context"
	"errors"
	"fmt"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/firmware"
	"github.com/LoveWonYoung/egsdiag/flashstore"
	"github.com/LoveWonYoung/egsdiag/kwp"
	"github.com/LoveWonYoung/egsdiag/nvs"
)

var (
	ErrDeviceNotOpen    = errors.New("device not open")
	ErrParameterInvalid = errors.New("parameter invalid")
)

// BoundsError 访问超出内存区域
type BoundsError struct {
	Region  MemoryRegion
	Address uint32
	Length  int
	End     uint32
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: 0x%06X+%d exceeds region end 0x%06X", e.Region, e.Address, e.Length, e.End)
}

func (e *BoundsError) Unwrap() error { return ErrParameterInvalid }

// PayloadTooLargeError 单次请求数据过长
type PayloadTooLargeError struct {
	Max int
	Got int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds %d", e.Got, e.Max)
}

func (e *PayloadTooLargeError) Unwrap() error { return ErrParameterInvalid }

// SizeMismatchError 设备与本地结构大小不一致，需要升级固件或本程序
type SizeMismatchError struct {
	What   string
	Wanted int
	Got    int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s size mismatch: device reports %d, expected %d. Either the firmware or this app is out of date", e.What, e.Got, e.Wanted)
}

// FlashError OTA 某一阶段失败
type FlashError struct {
	Stage FlashState
	Err   error
}

func (e *FlashError) Error() string {
	return fmt.Sprintf("flash failed during %s: %v", e.Stage, e.Err)
}

func (e *FlashError) Unwrap() error { return e.Err }

// IsDeviceFault 设备明确给出了负响应，说明设备仍在线
func IsDeviceFault(err error) bool {
	var ecuErr *kwp.ECUError
	return errors.As(err, &ecuErr)
}

// IsRecoverable 通讯层故障 (无响应、乱码、端口关闭、驱动 API 失败)，可以尝试重连。
// 设备负响应、本地参数错误、数据内容错误和调用方取消都不属于此类。
func IsRecoverable(err error) bool {
	if err == nil || IsDeviceFault(err) || isContentError(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// isContentError 设备在线并已应答，或请求在本地即被拒绝
func isContentError(err error) bool {
	var (
		sizeErr    *SizeMismatchError
		lenErr     *codec.LengthError
		contentErr *flashstore.ContentSizeError
		zErr       *flashstore.UncompressError
		pageErr    *nvs.PageError
	)
	return errors.Is(err, ErrParameterInvalid) ||
		errors.Is(err, ErrFlashCheckFailed) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, ErrCalibrationUnsupported) ||
		errors.Is(err, kwp.ErrEmptyRequest) ||
		errors.Is(err, codec.ErrMapTruncated) ||
		errors.Is(err, flashstore.ErrInvalidMagic) ||
		errors.Is(err, firmware.ErrHeaderNotFound) ||
		codec.IsVersionMismatch(err) ||
		errors.As(err, &sizeErr) ||
		errors.As(err, &lenErr) ||
		errors.As(err, &contentErr) ||
		errors.As(err, &zErr) ||
		errors.As(err, &pageErr)
}
