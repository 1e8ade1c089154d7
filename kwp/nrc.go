package kwp

import "fmt"

// KWP2000 负响应码 (ISO 14230-3)
const (
	NRCGeneralReject                    = 0x10
	NRCServiceNotSupported              = 0x11
	NRCSubFunctionNotSupported          = 0x12
	NRCBusyRepeatRequest                = 0x21
	NRCConditionsNotCorrect             = 0x22
	NRCRoutineNotComplete               = 0x23
	NRCRequestOutOfRange                = 0x31
	NRCSecurityAccessDenied             = 0x33
	NRCInvalidKey                       = 0x35
	NRCExceedNumberOfAttempts           = 0x36
	NRCRequiredTimeDelayNotExpired      = 0x37
	NRCDownloadNotAccepted              = 0x40
	NRCImproperDownloadType             = 0x41
	NRCCantDownloadToAddress            = 0x42
	NRCCantDownloadNumberOfBytes        = 0x43
	NRCUploadNotAccepted                = 0x50
	NRCImproperUploadType               = 0x51
	NRCCantUploadFromAddress            = 0x52
	NRCCantUploadNumberOfBytes          = 0x53
	NRCTransferSuspended                = 0x71
	NRCTransferAborted                  = 0x72
	NRCIllegalAddressInBlockTransfer    = 0x74
	NRCIllegalByteCountInTransfer       = 0x75
	NRCIllegalBlockTransferType         = 0x76
	NRCBlockTransferChecksumError       = 0x77
	NRCResponsePending                  = 0x78
	NRCIncorrectByteCountDuringTransfer = 0x79
	NRCServiceNotSupportedInSession     = 0x80
)

var nrcDescriptions = map[byte]string{
	NRCGeneralReject:                    "general reject",
	NRCServiceNotSupported:              "service not supported",
	NRCSubFunctionNotSupported:          "sub function not supported or invalid format",
	NRCBusyRepeatRequest:                "busy, repeat request",
	NRCConditionsNotCorrect:             "conditions not correct or request sequence error",
	NRCRoutineNotComplete:               "routine not complete",
	NRCRequestOutOfRange:                "request out of range",
	NRCSecurityAccessDenied:             "security access denied",
	NRCInvalidKey:                       "invalid key",
	NRCExceedNumberOfAttempts:           "exceeded number of attempts",
	NRCRequiredTimeDelayNotExpired:      "required time delay not expired",
	NRCDownloadNotAccepted:              "download not accepted",
	NRCImproperDownloadType:             "improper download type",
	NRCCantDownloadToAddress:            "cannot download to specified address",
	NRCCantDownloadNumberOfBytes:        "cannot download number of bytes requested",
	NRCUploadNotAccepted:                "upload not accepted",
	NRCImproperUploadType:               "improper upload type",
	NRCCantUploadFromAddress:            "cannot upload from specified address",
	NRCCantUploadNumberOfBytes:          "cannot upload number of bytes requested",
	NRCTransferSuspended:                "transfer suspended",
	NRCTransferAborted:                  "transfer aborted",
	NRCIllegalAddressInBlockTransfer:    "illegal address in block transfer",
	NRCIllegalByteCountInTransfer:       "illegal byte count in block transfer",
	NRCIllegalBlockTransferType:         "illegal block transfer type",
	NRCBlockTransferChecksumError:       "block transfer data checksum error",
	NRCResponsePending:                  "request correctly received, response pending",
	NRCIncorrectByteCountDuringTransfer: "incorrect byte count during block transfer",
	NRCServiceNotSupportedInSession:     "service not supported in active diagnostic session",
}

// DescribeNRC 获取 NRC 描述，0x90-0xF9 为厂商自定义
func DescribeNRC(code byte) string {
	if desc, ok := nrcDescriptions[code]; ok {
		return desc
	}
	if code >= 0x90 && code <= 0xF9 {
		return fmt.Sprintf("manufacturer specific (0x%02X)", code)
	}
	return "unknown error"
}

// ECUError 设备明确返回的负响应，说明设备在线，不应触发重连。
type ECUError struct {
	ServiceID byte
	Code      byte
}

func (e *ECUError) Error() string {
	return fmt.Sprintf("ECU negative response: SID=0x%02X, NRC=0x%02X (%s)", e.ServiceID, e.Code, DescribeNRC(e.Code))
}

// IsRetryable 只有 busy 可以由客户端直接重发
func (e *ECUError) IsRetryable() bool {
	return e.Code == NRCBusyRepeatRequest
}
