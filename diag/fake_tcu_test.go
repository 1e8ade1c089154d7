package diag

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/driver"
)

// fakeTCU 在内存中模拟 TCU 的 KWP 服务
type fakeTCU struct {
	mu       sync.Mutex
	requests [][]byte

	mode     codec.DeviceMode
	memory   map[uint32]byte
	flash    []byte
	parts    map[byte]codec.PartitionInfo
	lids     map[byte][]byte
	settings map[byte][]byte
	maps     map[byte]map[codec.MapCmd][]byte
	ident    map[byte][]byte
	nrc      map[byte]byte

	blockSize   int
	uploadChunk int
	checkStatus byte
	resets      int

	dlAddr, dlSize, dlPos uint32
	downloading           bool
	blockIDs              []byte
	upAddr, upSize, upPos uint32
	uploading             bool

	override func(req []byte) ([]byte, bool)
}

func newFakeTCU() *fakeTCU {
	return &fakeTCU{
		memory:   map[uint32]byte{},
		flash:    make([]byte, 0x40000),
		parts:    map[byte]codec.PartitionInfo{LIDRunningPart: {Address: 0x10000, Size: 0x10000}, LIDNextOTAPart: {Address: 0x20000, Size: 0x20000}, LIDCoredumpPart: {Address: 0xD000, Size: 0x1000}},
		lids:     map[byte][]byte{},
		settings: map[byte][]byte{},
		maps:     map[byte]map[codec.MapCmd][]byte{},
		ident:    map[byte][]byte{},
		nrc:      map[byte]byte{},

		blockSize:   0x80,
		uploadChunk: 0xFD,
	}
}

func (f *fakeTCU) Requests() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.requests...)
}

func (f *fakeTCU) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func u24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func (f *fakeTCU) handle(req []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, append([]byte(nil), req...))
	if f.override != nil {
		if resp, ok := f.override(req); ok {
			return resp
		}
	}
	sid := req[0]
	if code, ok := f.nrc[sid]; ok {
		return []byte{0x7F, sid, code}
	}
	pos := func(data ...byte) []byte { return append([]byte{sid + 0x40}, data...) }

	switch sid {
	case 0x10, 0x11:
		if sid == 0x11 {
			f.resets++
		}
		return pos(req[1])
	case 0x30:
		switch req[2] {
		case ioReadCurrent:
			b := f.mode.Bytes()
			return pos(req[1], req[2], b[0], b[1])
		case ioShortTermAdjust, ioLongTermAdjust:
			f.mode, _ = codec.DeviceModeFromBytes(req[3:5])
		}
		return pos(req[1], req[2])
	case 0x21:
		lid := req[1]
		if p, ok := f.parts[lid]; ok {
			b, _ := codec.Pack(&p)
			return pos(append([]byte{lid}, b...)...)
		}
		switch lid {
		case LIDSettings:
			return pos(append([]byte{lid, req[2]}, f.settings[req[2]]...)...)
		case codec.MapEditorID:
			return pos(f.maps[req[2]][codec.MapCmd(req[3])]...)
		}
		if b, ok := f.lids[lid]; ok {
			return pos(append([]byte{lid}, b...)...)
		}
		return []byte{0x7F, sid, 0x31}
	case 0x3B:
		switch req[1] {
		case LIDSettings:
			f.settings[req[2]] = append([]byte(nil), req[3:]...)
		case codec.MapEditorID:
			if f.maps[req[2]] == nil {
				f.maps[req[2]] = map[codec.MapCmd][]byte{}
			}
			f.maps[req[2]][codec.MapCmd(req[3])] = append([]byte(nil), req[4:]...)
		default:
			f.lids[req[1]] = append([]byte(nil), req[2:]...)
		}
		return pos(req[1])
	case 0x23:
		addr, n := u24(req[1:4]), int(req[4])
		out := make([]byte, n)
		for i := range out {
			out[i] = f.memory[addr+uint32(i)]
		}
		return pos(out...)
	case 0x3D:
		addr, n := u24(req[1:4]), int(req[4])
		for i, b := range req[5 : 5+n] {
			f.memory[addr+uint32(i)] = b
		}
		return pos()
	case 0x34:
		f.dlAddr, f.dlSize, f.dlPos = u24(req[1:4]), u24(req[5:8]), 0
		f.downloading, f.blockIDs = true, nil
		return pos(byte(f.blockSize>>8), byte(f.blockSize))
	case 0x35:
		f.upAddr, f.upSize, f.upPos = u24(req[1:4]), u24(req[5:8]), 0
		f.uploading = true
		return pos(0x00, byte(f.uploadChunk))
	case 0x36:
		if f.downloading {
			f.blockIDs = append(f.blockIDs, req[1])
			copy(f.flash[f.dlAddr+f.dlPos:], req[2:])
			f.dlPos += uint32(len(req) - 2)
			return pos(req[1])
		}
		if f.uploading {
			n := min(uint32(f.uploadChunk), f.upSize-f.upPos)
			start := f.upAddr + f.upPos
			f.upPos += n
			return pos(append([]byte{req[1]}, f.flash[start:start+n]...)...)
		}
		return []byte{0x7F, sid, 0x22}
	case 0x37:
		f.downloading, f.uploading = false, false
		return pos()
	case 0x31:
		return pos(req[1], f.checkStatus)
	case 0x1A:
		if b, ok := f.ident[req[1]]; ok {
			return pos(append([]byte{req[1]}, b...)...)
		}
	}
	return []byte{0x7F, sid, 0x11}
}

type fakeChannel struct {
	tcu   *fakeTCU
	mu    sync.Mutex
	queue [][]byte
}

func (c *fakeChannel) SetIDs(send, recv uint32) error            { return nil }
func (c *fakeChannel) SetIsoTPConfig(driver.IsoTPSettings) error { return nil }
func (c *fakeChannel) Open() error                               { return nil }
func (c *fakeChannel) Close() error                              { return nil }

func (c *fakeChannel) Write(payload []byte, _ time.Duration) error {
	resp := c.tcu.handle(payload)
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp != nil {
		c.queue = append(c.queue, resp)
	}
	return nil
}

func (c *fakeChannel) Read(time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, driver.ErrBufferEmpty
	}
	resp := c.queue[0]
	c.queue = c.queue[1:]
	return resp, nil
}

func (c *fakeChannel) ClearRx() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
	return nil
}

type fakeAdapter struct {
	tcu       *fakeTCU
	name      string
	closed    bool
	connected bool
}

func (a *fakeAdapter) Info() driver.HardwareInfo {
	return driver.HardwareInfo{Name: a.name, Capabilities: driver.Capabilities{IsoTP: true}}
}

func (a *fakeAdapter) CreateIsoTPChannel() (driver.Channel, error) {
	if a.closed {
		return nil, driver.ErrInterfaceNotOpen
	}
	return &fakeChannel{tcu: a.tcu}, nil
}

func (a *fakeAdapter) IsConnected() bool { return a.connected && !a.closed }
func (a *fakeAdapter) Close() error      { a.closed = true; return nil }

func testConfig() Config {
	cfg := DefaultConfig(driver.AdapterUSB)
	cfg.KWP.TesterPresentInterval = 0
	cfg.KWP.BusyRetryDelay = time.Millisecond
	cfg.ReconnectDelay = time.Millisecond
	return cfg
}

func newTestDiag(t *testing.T) (*Nag52Diag, *fakeTCU, *fakeAdapter) {
	t.Helper()
	tcu := newFakeTCU()
	a := &fakeAdapter{tcu: tcu, name: "EGS52 USB", connected: true}
	d, err := New(a, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d, tcu, a
}

func le16(v int) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(v))
}
