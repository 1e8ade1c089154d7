package tp

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// link 把两个协议栈首尾相连，模拟同一条 CAN 总线
type link struct {
	aRx, bRx chan CanMessage
	aTx, bTx chan CanMessage
}

func newLink(ctx context.Context) link {
	l := link{
		aRx: make(chan CanMessage, 64),
		bRx: make(chan CanMessage, 64),
		aTx: make(chan CanMessage, 64),
		bTx: make(chan CanMessage, 64),
	}
	pump := func(from <-chan CanMessage, to chan<- CanMessage) {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-from:
				to <- m
			}
		}
	}
	go pump(l.aTx, l.bRx)
	go pump(l.bTx, l.aRx)
	return l
}

func newPair(t *testing.T, cfgA, cfgB Config) (*Transport, *Transport) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := newLink(ctx)
	a := NewTransport(NewAddress(0x7E1, 0x7E9), cfgA)
	b := NewTransport(NewAddress(0x7E9, 0x7E1), cfgB)
	go a.Run(ctx, l.aRx, l.aTx)
	go b.Run(ctx, l.bRx, l.bTx)
	return a, b
}

func TestTransportSingleFrame(t *testing.T) {
	a, b := newPair(t, DefaultConfig(), DefaultConfig())

	if err := a.Send([]byte{0x30, 0x10, 0x01}); err != nil {
		t.Fatal(err)
	}
	got, err := b.RecvTimeout(context.Background(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x30, 0x10, 0x01}) {
		t.Errorf("got % X", got)
	}
}

func TestTransportMultiFrame(t *testing.T) {
	sizes := []int{8, 62, 255, 1185, MaxPayloadSize}
	cfgB := DefaultConfig()
	cfgB.BlockSize = 4
	a, b := newPair(t, DefaultConfig(), cfgB)

	for _, size := range sizes {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		if err := a.Send(payload); err != nil {
			t.Fatal(err)
		}
		got, err := b.RecvTimeout(context.Background(), 3*time.Second)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("size %d: payload mismatch", size)
		}
	}
}

func TestTransportPadding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PaddingByte = Padding(0xAA)
	tr := NewTransport(NewAddress(0x7E1, 0x7E9), cfg)

	msg := tr.makeTxMsg([]byte{0x02, 0x3E, 0x01})
	want := []byte{0x02, 0x3E, 0x01, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	if !bytes.Equal(msg.Data, want) {
		t.Errorf("padded = % X, want % X", msg.Data, want)
	}
	if msg.ArbitrationID != 0x7E1 {
		t.Errorf("id = 0x%X", msg.ArbitrationID)
	}
}

func TestTransportSendRejectsOversize(t *testing.T) {
	tr := NewTransport(NewAddress(1, 2), DefaultConfig())
	if err := tr.Send(make([]byte, MaxPayloadSize+1)); !errors.Is(err, ErrPayloadSize) {
		t.Errorf("err = %v", err)
	}
	if err := tr.Send(nil); !errors.Is(err, ErrPayloadSize) {
		t.Errorf("err = %v", err)
	}
}

func TestTransportSequenceError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rx := make(chan CanMessage, 8)
	tx := make(chan CanMessage, 8)
	tr := NewTransport(NewAddress(0x7E1, 0x7E9), DefaultConfig())
	go tr.Run(ctx, rx, tx)

	rx <- CanMessage{ArbitrationID: 0x7E9, Data: []byte{0x10, 0x10, 1, 2, 3, 4, 5, 6}}
	select {
	case fc := <-tx:
		if fc.Data[0] != 0x30 {
			t.Fatalf("expected FC, got % X", fc.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no flow control sent")
	}

	rx <- CanMessage{ArbitrationID: 0x7E9, Data: []byte{0x22, 7, 8, 9, 10, 11, 12, 13}}
	select {
	case err := <-tr.Errors():
		var seqErr *SequenceError
		if !errors.As(err, &seqErr) || seqErr.Want != 1 || seqErr.Got != 2 {
			t.Errorf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no sequence error reported")
	}
}

func TestTransportIgnoresForeignIDs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rx := make(chan CanMessage, 8)
	tx := make(chan CanMessage, 8)
	tr := NewTransport(NewAddress(0x7E1, 0x7E9), DefaultConfig())
	go tr.Run(ctx, rx, tx)

	rx <- CanMessage{ArbitrationID: 0x7E8, Data: []byte{0x01, 0x55}}
	rx <- CanMessage{ArbitrationID: 0x7E9, Data: []byte{0x01, 0x66}, IsExtendedID: true}
	rx <- CanMessage{ArbitrationID: 0x7E9, Data: []byte{0x01, 0x77}}

	got, err := tr.RecvTimeout(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x77}) {
		t.Errorf("got % X", got)
	}
}

func TestTransportFlowControlTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := DefaultConfig()
	cfg.TimeoutN_Bs = 20 * time.Millisecond
	rx := make(chan CanMessage, 8)
	tx := make(chan CanMessage, 8)
	tr := NewTransport(NewAddress(0x7E1, 0x7E9), cfg)
	go tr.Run(ctx, rx, tx)

	if err := tr.Send(make([]byte, 20)); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-tr.Errors():
		if !errors.Is(err, ErrTimeoutFC) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no timeout reported")
	}
}
