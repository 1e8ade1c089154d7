package driver

import (
	"fmt"
	"strconv"
	"strings"
)

// LogLevel TCU 固件 (ESP-IDF) 日志级别
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "D"
	case LogInfo:
		return "I"
	case LogWarn:
		return "W"
	case LogError:
		return "E"
	}
	return "?"
}

// LogMessage 一行 TCU 日志: "I (1234) tag: message"
type LogMessage struct {
	Level     LogLevel
	Timestamp uint32 // 设备启动后的毫秒数
	Tag       string
	Msg       string
}

func (m LogMessage) String() string {
	return fmt.Sprintf("%s (%d) %s: %s", m.Level, m.Timestamp, m.Tag, m.Msg)
}

type diagFrame struct {
	id      uint32
	payload []byte
}

const (
	diagMarker     = "#"
	diagRespPrefix = "07E9"
	canMarker      = "CF->0x"
	maxCANLineLen  = 20
)

// parseDiagLine "#07E9AABB.." 或 "07E9AABB.."
func parseDiagLine(line string) (diagFrame, error) {
	line = strings.TrimPrefix(line, diagMarker)
	id, payload, err := splitHexFrame(line)
	if err != nil {
		return diagFrame{}, err
	}
	return diagFrame{id: id, payload: payload}, nil
}

// parseCANLine "CF->0x07E8AABB.."，总线监听帧
func parseCANLine(line string) (UnifiedCANMessage, error) {
	line = strings.Replace(line, canMarker, "", 1)
	if len(line) > maxCANLineLen {
		return UnifiedCANMessage{}, fmt.Errorf("can line too long (%d)", len(line))
	}
	id, payload, err := splitHexFrame(line)
	if err != nil {
		return UnifiedCANMessage{}, err
	}
	msg := UnifiedCANMessage{ID: id, DLC: byte(len(payload))}
	copy(msg.Data[:], payload)
	return msg, nil
}

// between 返回 start 与其后第一个 end 之间的内容
func between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return "", false
	}
	return s[:j], true
}

func parseLogLine(line string) (LogMessage, error) {
	if line == "" {
		return LogMessage{}, fmt.Errorf("empty log line")
	}
	var lvl LogLevel
	switch line[0] {
	case 'I':
		lvl = LogInfo
	case 'W':
		lvl = LogWarn
	case 'E':
		lvl = LogError
	case 'D':
		lvl = LogDebug
	default:
		return LogMessage{}, fmt.Errorf("unknown log level %q", line[0])
	}
	ts, ok := between(line, "(", ")")
	if !ok {
		return LogMessage{}, fmt.Errorf("missing timestamp")
	}
	timestamp, err := strconv.ParseUint(ts, 10, 32)
	if err != nil {
		return LogMessage{}, fmt.Errorf("invalid timestamp %q", ts)
	}
	tag, ok := between(line, ") ", ": ")
	if !ok {
		return LogMessage{}, fmt.Errorf("missing tag")
	}
	idx := strings.Index(line, tag+": ")
	return LogMessage{
		Level:     lvl,
		Timestamp: uint32(timestamp),
		Tag:       tag,
		Msg:       line[idx+len(tag)+2:],
	}, nil
}

// classifyLine 把串口上的一行分为诊断负载、CAN 监听帧或日志
func classifyLine(line string) (any, error) {
	switch {
	case strings.HasPrefix(line, diagMarker), strings.HasPrefix(line, diagRespPrefix):
		return parseDiagLine(line)
	case strings.HasPrefix(line, canMarker):
		return parseCANLine(line)
	default:
		return parseLogLine(line)
	}
}
