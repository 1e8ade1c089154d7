package kwp

import (
	"context"
	"fmt"
)

// SessionType StartDiagnosticSession 的会话类型
type SessionType byte

const (
	SessionNormal              SessionType = 0x81
	SessionReprogramming       SessionType = 0x85
	SessionStandby             SessionType = 0x89
	SessionPassive             SessionType = 0x90
	SessionExtendedDiagnostics SessionType = 0x92
	SessionCustom              SessionType = 0x93
)

func (t SessionType) String() string {
	switch t {
	case SessionNormal:
		return "normal"
	case SessionReprogramming:
		return "reprogramming"
	case SessionStandby:
		return "standby"
	case SessionPassive:
		return "passive"
	case SessionExtendedDiagnostics:
		return "extended"
	case SessionCustom:
		return "custom"
	}
	return fmt.Sprintf("session(0x%02X)", byte(t))
}

// ResetType ECUReset 的复位方式
type ResetType byte

const (
	ResetPowerOn           ResetType = 0x01
	ResetNonVolatileMemory ResetType = 0x82
)

// SetSession 切换诊断会话
func (s *Server) SetSession(ctx context.Context, t SessionType) error {
	if _, err := s.Send(ctx, []byte{SIDStartDiagnosticSession, byte(t)}); err != nil {
		return err
	}
	s.session.Store(uint32(t))
	s.stale.Store(false)
	return nil
}

// ECUReset 复位后设备回到默认会话
func (s *Server) ECUReset(ctx context.Context, t ResetType) error {
	if _, err := s.Send(ctx, []byte{SIDECUReset, byte(t)}); err != nil {
		return err
	}
	s.session.Store(uint32(SessionNormal))
	return nil
}

// ReadLocalIdentifier 返回 [0x61, id] 之后的数据
func (s *Server) ReadLocalIdentifier(ctx context.Context, id byte) ([]byte, error) {
	resp, err := s.Send(ctx, []byte{SIDReadDataByLocalID, id})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, ErrInvalidResponseLength
	}
	return resp[2:], nil
}

// WriteLocalIdentifier 3B id data...
func (s *Server) WriteLocalIdentifier(ctx context.Context, id byte, data []byte) error {
	req := make([]byte, 0, 2+len(data))
	req = append(req, SIDWriteDataByLocalID, id)
	req = append(req, data...)
	_, err := s.Send(ctx, req)
	return err
}

// StartRoutine 31 id args...，返回完整响应
func (s *Server) StartRoutine(ctx context.Context, id byte, args ...byte) ([]byte, error) {
	req := append([]byte{SIDStartRoutineByLocalID, id}, args...)
	return s.Send(ctx, req)
}
