package tp

import (
	"errors"
	"fmt"
)

var (
	ErrTimeoutFC     = errors.New("isotp: timed out waiting for flow control")
	ErrTimeoutCF     = errors.New("isotp: timed out waiting for consecutive frame")
	ErrOverflow      = errors.New("isotp: receiver reported buffer overflow")
	ErrWaitFrames    = errors.New("isotp: too many wait frames")
	ErrPayloadSize   = errors.New("isotp: payload size out of range")
	ErrInterrupted   = errors.New("isotp: multi-frame reception interrupted by a new message")
	ErrRxBufferFull  = errors.New("isotp: receive buffer full, message dropped")
	ErrTxChannelFull = errors.New("isotp: tx channel full, frame dropped")
	ErrClosed        = errors.New("isotp: transport stopped")
)

// SequenceError is raised when a consecutive frame arrives out of order.
type SequenceError struct {
	Want int
	Got  int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("isotp: wrong sequence number, expected %d got %d", e.Want, e.Got)
}

// FrameError wraps a CAN frame that could not be decoded as an ISO-TP PDU.
type FrameError struct {
	Msg    CanMessage
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("isotp: invalid frame %s: %s", e.Msg.String(), e.Reason)
}
