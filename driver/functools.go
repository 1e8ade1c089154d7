package driver

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// SplitBlock 按 blockSize 把数据切分成若干块，最后一块可能不足 blockSize。
func SplitBlock(data []byte, blockSize int) [][]byte {
	if blockSize <= 0 {
		return nil
	}
	blocks := make([][]byte, 0, (len(data)+blockSize-1)/blockSize)
	for i := 0; i < len(data); i += blockSize {
		end := i + blockSize
		if end > len(data) {
			end = len(data)
		}
		blocks = append(blocks, data[i:end])
	}
	return blocks
}

// PutUint24 以大端写入 3 字节地址/长度
func PutUint24(buf []byte, v uint32) {
	buf[0] = byte(v >> 16)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v)
}

// Uint24 以大端读取 3 字节
func Uint24(buf []byte) uint32 {
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
}

// splitHexFrame 解析 "IIIIDDDD..." 格式：4 位十六进制 ID 后跟十六进制负载
func splitHexFrame(s string) (uint32, []byte, error) {
	if len(s) < 4 || len(s)%2 != 0 {
		return 0, nil, fmt.Errorf("invalid hex frame length %d", len(s))
	}
	id, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid frame id %q: %w", s[:4], err)
	}
	payload, err := hex.DecodeString(s[4:])
	if err != nil {
		return 0, nil, fmt.Errorf("invalid frame payload: %w", err)
	}
	return uint32(id), payload, nil
}
