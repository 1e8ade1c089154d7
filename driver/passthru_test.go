//go:build windows || (linux && cgo && (amd64 || arm64))

package driver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/roffe/gocan/adapter/passthru"
)

// fakePassThru 按顺序返回预设的读取结果
type fakePassThru struct {
	reads   []fakeRead
	written []*passthru.PassThruMsg
	filters int
	closed  bool
}

type fakeRead struct {
	msg *passthru.PassThruMsg
	err error
}

func (f *fakePassThru) PassThruOpen(string, *uint32) error { return nil }
func (f *fakePassThru) PassThruClose(uint32) error         { return nil }
func (f *fakePassThru) PassThruConnect(_, _, _, _ uint32, ch *uint32) error {
	*ch = 7
	return nil
}
func (f *fakePassThru) PassThruDisconnect(uint32) error { return nil }
func (f *fakePassThru) PassThruReadMsg(_ uint32, msg *passthru.PassThruMsg, _ uint32) (uint32, error) {
	if len(f.reads) == 0 {
		return 0, fmt.Errorf("no data: %w", passthru.ErrBufferEmpty)
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	if r.err != nil {
		return 0, r.err
	}
	*msg = *r.msg
	return 1, nil
}
func (f *fakePassThru) PassThruWriteMsgs(_ uint32, msg *passthru.PassThruMsg, _ *uint32, _ uint32) error {
	f.written = append(f.written, msg)
	return nil
}
func (f *fakePassThru) PassThruStartMsgFilter(uint32, uint32, *passthru.PassThruMsg, *passthru.PassThruMsg, *passthru.PassThruMsg, *uint32) error {
	f.filters++
	return nil
}
func (f *fakePassThru) Close() error { f.closed = true; return nil }

func rxMsg(id uint32, status uint32, data ...byte) *passthru.PassThruMsg {
	m := &passthru.PassThruMsg{ProtocolID: passthru.ISO15765, RxStatus: status, DataSize: uint32(4 + len(data))}
	binary.BigEndian.PutUint32(m.Data[:4], id)
	copy(m.Data[4:], data)
	return m
}

func openFakeChannel(t *testing.T, pt *fakePassThru) Channel {
	t.Helper()
	a, err := openPassthru(pt, HardwareInfo{Name: "fake J2534"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	ch, err := a.CreateIsoTPChannel()
	if err != nil {
		t.Fatal(err)
	}
	ch.SetIDs(0x7E1, 0x7E9)
	if err := ch.Open(); err != nil {
		t.Fatal(err)
	}
	return ch
}

func TestPassthruReadSkipsEchoes(t *testing.T) {
	pt := &fakePassThru{reads: []fakeRead{
		{msg: rxMsg(0x7E1, passthru.TX_MSG_TYPE, 0x21, 0x28)},
		{msg: rxMsg(0x7E9, passthru.START_OF_MESSAGE)},
		{msg: rxMsg(0x7E9, 0, 0x61, 0x28, 0x01)},
	}}
	ch := openFakeChannel(t, pt)
	if pt.filters != 1 {
		t.Errorf("filters = %d", pt.filters)
	}
	got, err := ch.Read(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 0x61 {
		t.Errorf("got % X", got)
	}
}

func TestPassthruReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		read  fakeRead
		check func(error) bool
	}{
		{"buffer empty", fakeRead{err: fmt.Errorf("no msg: %w", passthru.ErrBufferEmpty)}, func(err error) bool {
			return errors.Is(err, ErrBufferEmpty)
		}},
		{"timeout", fakeRead{err: passthru.ErrTimeout}, func(err error) bool {
			return errors.Is(err, ErrBufferEmpty)
		}},
		{"device lost", fakeRead{err: passthru.ErrDeviceNotConnected}, func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Code == 8 && errors.Is(err, passthru.ErrDeviceNotConnected)
		}},
		{"foreign id", fakeRead{msg: rxMsg(0x7E8, 0, 0x50, 0x81)}, func(err error) bool {
			var addrErr *UnexpectedAddressError
			return errors.As(err, &addrErr) && addrErr.Got == 0x7E8
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ch := openFakeChannel(t, &fakePassThru{reads: []fakeRead{tc.read}})
			_, err := ch.Read(time.Second)
			if !tc.check(err) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestPassthruWritePadsFrames(t *testing.T) {
	pt := &fakePassThru{}
	ch := openFakeChannel(t, pt)
	ch.SetIsoTPConfig(IsoTPSettings{PadFrame: true})
	if err := ch.Write([]byte{0x3E, 0x01}, time.Second); err != nil {
		t.Fatal(err)
	}
	m := pt.written[0]
	if m.TxFlags != passthru.ISO15765_FRAME_PAD || m.DataSize != 6 || binary.BigEndian.Uint32(m.Data[:4]) != 0x7E1 {
		t.Errorf("msg %s", m)
	}
}

func TestPassthruCloseReleasesLibrary(t *testing.T) {
	pt := &fakePassThru{}
	a, err := openPassthru(pt, HardwareInfo{Name: "fake J2534"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if !pt.closed || a.IsConnected() {
		t.Error("library not released")
	}
}
