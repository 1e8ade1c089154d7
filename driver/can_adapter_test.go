package driver

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LoveWonYoung/egsdiag/tp"
)

// startECU 在虚拟总线的另一端运行一个 ISO-TP 协议栈，把收到的请求交给 handler
func startECU(t *testing.T, bus *VirtualCAN, handler func([]byte) []byte) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus.Start()
	stack := tp.NewTransport(tp.NewAddress(0x7E9, 0x7E1), tp.DefaultConfig())
	rx := make(chan tp.CanMessage, 64)
	tx := make(chan tp.CanMessage, 64)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-bus.RxChan():
				if !ok {
					return
				}
				rx <- tp.CanMessage{ArbitrationID: m.ID, Data: append([]byte(nil), m.Payload()...)}
			}
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-tx:
				bus.Write(m.ArbitrationID, m.Data)
			}
		}
	}()
	go stack.Run(ctx, rx, tx)
	go func() {
		for {
			req, err := stack.RecvTimeout(ctx, time.Hour)
			if err != nil {
				return
			}
			if resp := handler(req); resp != nil {
				stack.Send(resp)
			}
		}
	}()
}

func newVirtualPair(t *testing.T, handler func([]byte) []byte) *CANAdapter {
	t.Helper()
	host, ecu := NewVirtualCAN(), NewVirtualCAN()
	ConnectVirtual(host, ecu)
	startECU(t, ecu, handler)

	a, err := NewCANAdapter(host, HardwareInfo{Name: "virtual", Capabilities: Capabilities{IsoTP: true, CAN: true}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestCANAdapterRoundTrip(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = byte(i)
	}
	a := newVirtualPair(t, func(req []byte) []byte {
		return append([]byte{req[0] + 0x40}, long...)
	})

	ch, err := a.CreateIsoTPChannel()
	if err != nil {
		t.Fatal(err)
	}
	ch.SetIDs(0x7E1, 0x7E9)
	ch.SetIsoTPConfig(IsoTPSettings{PadFrame: true, CANSpeed: 500000})
	if err := ch.Open(); err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	if err := ch.Write([]byte{0x21, 0x28}, time.Second); err != nil {
		t.Fatal(err)
	}
	resp, err := ch.Read(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if resp[0] != 0x61 || !bytes.Equal(resp[1:], long) {
		t.Errorf("resp = % X", resp)
	}
}

func TestCANChannelNotOpen(t *testing.T) {
	a := newVirtualPair(t, func([]byte) []byte { return nil })
	ch, _ := a.CreateIsoTPChannel()
	if err := ch.Write([]byte{1}, time.Second); !errors.Is(err, ErrInterfaceNotOpen) {
		t.Errorf("Write err = %v", err)
	}
	if _, err := ch.Read(time.Millisecond); !errors.Is(err, ErrInterfaceNotOpen) {
		t.Errorf("Read err = %v", err)
	}
	ch.SetIDs(0x7E1, 0x7E9)
	ch.Open()
	if _, err := ch.Read(10 * time.Millisecond); !errors.Is(err, ErrBufferEmpty) {
		t.Errorf("Read err = %v", err)
	}

	a.Close()
	if a.IsConnected() {
		t.Error("adapter connected after Close")
	}
	if _, err := a.CreateIsoTPChannel(); !errors.Is(err, ErrInterfaceNotOpen) {
		t.Errorf("CreateIsoTPChannel err = %v", err)
	}
}
