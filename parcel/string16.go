package parcel

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/binder/errors"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// strictModePolicy is the header word preceding an interface token.
const strictModePolicy int32 = 0

// WriteString16 appends s as a UTF-16 string.
func (p *Parcel) WriteString16(s string) error {
	units, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return errors.Wrap(errors.PhaseParcel, errors.KindInvalidData, err, "encode utf-16 string")
	}
	p.WriteInt32(int32(len(units) / 2))
	// trailing two bytes stay zero as the terminator
	copy(p.grow(len(units)+2), units)
	return nil
}

// WriteNullString16 appends a null string.
func (p *Parcel) WriteNullString16() {
	p.WriteInt32(-1)
}

// ReadString16 reads a string written by WriteString16. A null string reads
// back as "" with ok false.
func (p *Parcel) ReadString16() (s string, ok bool, err error) {
	n, err := p.ReadInt32()
	if err != nil {
		return "", false, err
	}
	if n < 0 {
		return "", false, nil
	}
	b, err := p.next(int(n)*2 + 2)
	if err != nil {
		return "", false, err
	}
	out, err := utf16le.NewDecoder().Bytes(b[:n*2])
	if err != nil {
		return "", false, errors.InvalidUTF16(errors.PhaseParcel, err)
	}
	return string(out), true, nil
}

// WriteInterfaceToken writes the header a service checks with
// EnforceInterface before decoding the rest of a request.
func (p *Parcel) WriteInterfaceToken(descriptor string) error {
	p.WriteInt32(strictModePolicy)
	return p.WriteString16(descriptor)
}

// EnforceInterface reads an interface token and verifies it names
// descriptor.
func (p *Parcel) EnforceInterface(descriptor string) error {
	if _, err := p.ReadInt32(); err != nil {
		return err
	}
	got, _, err := p.ReadString16()
	if err != nil {
		return err
	}
	if got != descriptor {
		return errors.BadInterface(descriptor, got)
	}
	return nil
}
