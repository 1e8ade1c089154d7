// Package nvs decodes a raw dump of the ESP32 NVS partition holding the TCU
// EEPROM emulation. It is read only and never panics on malformed pages.
package nvs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	PageSize       = 4096
	EntrySize      = 32
	EntriesPerPage = 126
	pageHeaderSize = 32
	bitmapSize     = 32
	entriesOffset  = pageHeaderSize + bitmapSize
)

// NVS partition on the TCU.
const (
	PartitionAddress = 0x9000
	PartitionSize    = 0x4000
)

// Entry state in the page bitmap.
const (
	StateErased  = 0
	StateWritten = 2
	StateEmpty   = 3
)

var (
	ErrSpanOverflow = errors.New("nvs: entry span runs past the end of the page")
	ErrZeroSpan     = errors.New("nvs: entry span is zero")
	ErrShortPage    = errors.New("nvs: page shorter than 4096 bytes")
)

// PageError marks a page that could not be decoded.
type PageError struct {
	Page int
	Slot int
	Span int
	Err  error
}

func (e *PageError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("nvs: page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("nvs: page %d slot %d span %d: %v", e.Page, e.Slot, e.Span, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// PageState is the first word of a page.
type PageState uint32

const (
	PageEmpty   PageState = 0xFFFFFFFF
	PageActive  PageState = 0xFFFFFFFE
	PageFull    PageState = 0xFFFFFFFC
	PageFreeing PageState = 0xFFFFFFF8
	PageCorrupt PageState = 0xFFFFFFF0
)

func (s PageState) String() string {
	switch s {
	case PageEmpty:
		return "EMPTY"
	case PageActive:
		return "ACTIVE"
	case PageFull:
		return "FULL"
	case PageFreeing:
		return "FREEING"
	case PageCorrupt:
		return "CORRUPT"
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}

// Entry is one 32 byte slot.
type Entry struct {
	NS         uint8
	Type       uint8
	Span       uint8
	ChunkIndex uint8
	CRC        uint32
	Key        [16]byte
	Data       uint64
}

func (e *Entry) KeyString() string {
	return strings.TrimRight(string(bytes.ToValidUTF8(e.Key[:], []byte("?"))), "\x00")
}

func (e *Entry) Value() any {
	return DecodeValue(e.Type, e.Data)
}

// Item is a written entry with its decoded value and, for variable length
// data, the reassembled bytes.
type Item struct {
	Page  int
	Slot  int
	Entry Entry
	Value any
	Data  []byte
}

func (it *Item) Key() string { return it.Entry.KeyString() }

type Page struct {
	Index int
	State PageState
	Seq   uint32
	CRC   uint32
	Items []Item
	Err   error
}

type Partition struct {
	Pages []Page
	// bytes after the last whole page
	Trailing int
}

func decodeEntry(b []byte) Entry {
	var e Entry
	e.NS, e.Type, e.Span, e.ChunkIndex = b[0], b[1], b[2], b[3]
	e.CRC = binary.LittleEndian.Uint32(b[4:])
	copy(e.Key[:], b[8:24])
	e.Data = binary.LittleEndian.Uint64(b[24:])
	return e
}

func bitmapState(bitmap []byte, i int) byte {
	return (bitmap[i/4] >> ((i % 4) * 2)) & 0x03
}

// ParsePage decodes one page. An entry's span counts its own slot, so a
// variable length item with span n carries n-1 data slots. A span that is
// zero or runs past the last slot fails the whole page; items decoded before
// that point are still returned. Input shorter than PageSize decodes nothing.
func ParsePage(index int, raw []byte) Page {
	if len(raw) < PageSize {
		return Page{Index: index, Err: &PageError{Page: index, Slot: -1, Err: fmt.Errorf("%w: got %d", ErrShortPage, len(raw))}}
	}
	p := Page{
		Index: index,
		State: PageState(binary.LittleEndian.Uint32(raw[0:])),
		Seq:   binary.LittleEndian.Uint32(raw[4:]),
		CRC:   binary.LittleEndian.Uint32(raw[28:]),
	}
	bitmap := raw[pageHeaderSize:entriesOffset]
	slot := func(i int) []byte {
		off := entriesOffset + i*EntrySize
		return raw[off : off+EntrySize]
	}
	for i := 0; i < EntriesPerPage; {
		if bitmapState(bitmap, i) != StateWritten {
			i++
			continue
		}
		e := decodeEntry(slot(i))
		span := int(e.Span)
		if span == 0 {
			p.Err = &PageError{Page: index, Slot: i, Span: span, Err: ErrZeroSpan}
			return p
		}
		if i+span > EntriesPerPage {
			p.Err = &PageError{Page: index, Slot: i, Span: span, Err: ErrSpanOverflow}
			return p
		}
		it := Item{Page: index, Slot: i, Entry: e, Value: e.Value()}
		if vd, ok := it.Value.(VariableData); ok {
			blob := make([]byte, 0, (span-1)*EntrySize)
			for c := 1; c < span; c++ {
				blob = append(blob, slot(i+c)...)
			}
			it.Data = resize(blob, int(vd.Size))
		}
		p.Items = append(p.Items, it)
		i += span
	}
	return p
}

func resize(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	return append(b, make([]byte, n-len(b))...)
}

// Parse splits a dump into pages. A trailing partial page is counted in
// Trailing and otherwise ignored.
func Parse(data []byte) *Partition {
	part := &Partition{}
	for off, n := 0, 0; off < len(data); off, n = off+PageSize, n+1 {
		if len(data)-off < PageSize {
			part.Trailing = len(data) - off
			break
		}
		part.Pages = append(part.Pages, ParsePage(n, data[off:off+PageSize]))
	}
	return part
}

// Err joins the errors of all pages.
func (p *Partition) Err() error {
	var errs []error
	for _, pg := range p.Pages {
		if pg.Err != nil {
			errs = append(errs, pg.Err)
		}
	}
	return errors.Join(errs...)
}

// Items lists written entries in page and slot order.
func (p *Partition) Items() []Item {
	var out []Item
	for _, pg := range p.Pages {
		out = append(out, pg.Items...)
	}
	return out
}

// Namespaces maps namespace index to name. Namespace names are stored as
// U8 entries in namespace 0 whose value is the index.
func (p *Partition) Namespaces() map[uint8]string {
	ns := make(map[uint8]string)
	for _, it := range p.Items() {
		if it.Entry.NS == 0 && it.Entry.Type == TypeU8 {
			ns[uint8(it.Entry.Data)] = it.Key()
		}
	}
	return ns
}

// Lookup finds the newest item with key in namespace.
func (p *Partition) Lookup(namespace, key string) (*Item, bool) {
	return p.lookup(namespace, key, func(*Item) bool { return true })
}

func (p *Partition) namespaceIndex(namespace string) (uint8, bool) {
	for i, name := range p.Namespaces() {
		if name == namespace {
			return i, true
		}
	}
	return 0, false
}

func (p *Partition) lookup(namespace, key string, match func(*Item) bool) (*Item, bool) {
	idx, ok := p.namespaceIndex(namespace)
	if !ok {
		return nil, false
	}
	var best *Item
	var bestSeq uint32
	for _, pg := range p.Pages {
		for i := range pg.Items {
			it := &pg.Items[i]
			if it.Entry.NS != idx || it.Key() != key || !match(it) {
				continue
			}
			if best == nil || pg.Seq >= bestSeq {
				best, bestSeq = it, pg.Seq
			}
		}
	}
	return best, best != nil
}

// Blob reassembles a multi chunk blob described by a blob index entry.
func (p *Partition) Blob(namespace, key string) ([]byte, error) {
	idxItem, ok := p.lookup(namespace, key, func(it *Item) bool { return it.Entry.Type == TypeBlobIndex })
	if !ok {
		idxItem, ok = p.Lookup(namespace, key)
	}
	if !ok {
		return nil, fmt.Errorf("nvs: %s/%s not found", namespace, key)
	}
	bi, ok := idxItem.Value.(BlobIndex)
	if !ok {
		if vd, isVar := idxItem.Value.(VariableData); isVar {
			return resize(append([]byte(nil), idxItem.Data...), int(vd.Size)), nil
		}
		return nil, fmt.Errorf("nvs: %s/%s is not a blob", namespace, key)
	}
	chunks := make(map[uint8][]byte)
	for _, it := range p.Items() {
		if it.Entry.NS == idxItem.Entry.NS && it.Key() == key && it.Entry.Type == TypeBlobData {
			chunks[it.Entry.ChunkIndex] = it.Data
		}
	}
	var out []byte
	for c := 0; c < int(bi.ChunkCount); c++ {
		data, ok := chunks[bi.ChunkStart+uint8(c)]
		if !ok {
			return nil, fmt.Errorf("nvs: %s/%s missing chunk %d", namespace, key, int(bi.ChunkStart)+c)
		}
		out = append(out, data...)
	}
	return resize(out, int(bi.Size)), nil
}
