// Package parcel implements the flat payload buffer carried by binder
// transactions.
//
// A Parcel is an append-only byte buffer with a read cursor. Every value is
// stored little-endian and padded to a 4-byte boundary. Strings use the
// UTF-16 layout binder services expect: an int32 length in code units
// (-1 for a null string), the code units, and a zero terminator.
package parcel

import (
	"encoding/binary"

	"github.com/wippyai/binder/errors"
)

const align = 4

// Parcel is a transaction payload. The zero value is an empty parcel ready
// for writing. A Parcel is not safe for concurrent use.
type Parcel struct {
	data []byte
	pos  int
}

// New creates an empty parcel.
func New() *Parcel {
	return &Parcel{data: make([]byte, 0, 64)}
}

// FromBytes wraps b for reading. The parcel takes ownership of b.
func FromBytes(b []byte) *Parcel {
	return &Parcel{data: b}
}

// Bytes returns the encoded payload.
func (p *Parcel) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.data
}

// Len returns the payload size in bytes.
func (p *Parcel) Len() int {
	if p == nil {
		return 0
	}
	return len(p.data)
}

// Position returns the read cursor.
func (p *Parcel) Position() int {
	return p.pos
}

// SetPosition moves the read cursor. Out of range positions are clamped.
func (p *Parcel) SetPosition(pos int) {
	switch {
	case pos < 0:
		p.pos = 0
	case pos > len(p.data):
		p.pos = len(p.data)
	default:
		p.pos = pos
	}
}

// Remaining returns the number of unread bytes.
func (p *Parcel) Remaining() int {
	return len(p.data) - p.pos
}

func pad(n int) int {
	return (n + align - 1) &^ (align - 1)
}

func (p *Parcel) grow(n int) []byte {
	start := len(p.data)
	size := pad(n)
	p.data = append(p.data, make([]byte, size)...)
	return p.data[start : start+n]
}

func (p *Parcel) next(n int) ([]byte, error) {
	size := pad(n)
	if p == nil {
		return nil, errors.OutOfBounds(errors.PhaseParcel, 0, size, 0)
	}
	if n < 0 || p.pos+size > len(p.data) {
		return nil, errors.OutOfBounds(errors.PhaseParcel, p.pos, size, len(p.data))
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += size
	return b, nil
}

// WriteInt32 appends a signed 32-bit value.
func (p *Parcel) WriteInt32(v int32) {
	binary.LittleEndian.PutUint32(p.grow(4), uint32(v))
}

// WriteUint32 appends an unsigned 32-bit value.
func (p *Parcel) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(p.grow(4), v)
}

// WriteInt64 appends a signed 64-bit value.
func (p *Parcel) WriteInt64(v int64) {
	binary.LittleEndian.PutUint64(p.grow(8), uint64(v))
}

// WriteUint64 appends an unsigned 64-bit value.
func (p *Parcel) WriteUint64(v uint64) {
	binary.LittleEndian.PutUint64(p.grow(8), v)
}

// WriteBool appends a bool as an int32.
func (p *Parcel) WriteBool(v bool) {
	if v {
		p.WriteInt32(1)
		return
	}
	p.WriteInt32(0)
}

// WriteByteArray appends a length-prefixed byte array. A nil slice is
// written as length -1 and reads back as nil.
func (p *Parcel) WriteByteArray(b []byte) {
	if b == nil {
		p.WriteInt32(-1)
		return
	}
	p.WriteInt32(int32(len(b)))
	copy(p.grow(len(b)), b)
}

// Write appends b verbatim, without a length prefix or padding. It
// implements io.Writer and never fails.
func (p *Parcel) Write(b []byte) (int, error) {
	p.data = append(p.data, b...)
	return len(b), nil
}

// ReadInt32 reads a signed 32-bit value.
func (p *Parcel) ReadInt32() (int32, error) {
	b, err := p.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// ReadUint32 reads an unsigned 32-bit value.
func (p *Parcel) ReadUint32() (uint32, error) {
	b, err := p.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt64 reads a signed 64-bit value.
func (p *Parcel) ReadInt64() (int64, error) {
	b, err := p.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// ReadUint64 reads an unsigned 64-bit value.
func (p *Parcel) ReadUint64() (uint64, error) {
	b, err := p.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadBool reads a bool written by WriteBool.
func (p *Parcel) ReadBool() (bool, error) {
	v, err := p.ReadInt32()
	return v != 0, err
}

// ReadByteArray reads a byte array written by WriteByteArray. The returned
// slice is a copy.
func (p *Parcel) ReadByteArray() ([]byte, error) {
	n, err := p.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	b, err := p.next(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
