package dissector

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

// Buffer is a bounds-checked view of an engine byte buffer.
type Buffer struct {
	engine host.Buffers
	handle host.Buffer
}

// NewBuffer wraps an engine buffer handle.
func NewBuffer(engine host.Buffers, handle host.Buffer) *Buffer {
	return &Buffer{engine: engine, handle: handle}
}

func (b *Buffer) Handle() host.Buffer { return b.handle }

// ReportedLength is the total length of the buffer as reported by the engine.
func (b *Buffer) ReportedLength() int {
	return b.engine.ReportedLength(b.handle)
}

// Remaining returns the bytes available after offset, or -1 when offset is
// past the end.
func (b *Buffer) Remaining(offset int) int {
	if offset < 0 {
		return -1
	}
	return b.engine.ReportedLengthRemaining(b.handle, offset)
}

// span validates [offset, offset+length) and resolves ToEnd.
func (b *Buffer) span(offset, length int) (int, error) {
	if offset < 0 || length < ToEnd {
		return 0, fmt.Errorf("offset %d length %d: %w", offset, length, core.ErrInsufficientData)
	}
	remaining := b.Remaining(offset)
	if remaining < 0 {
		return 0, fmt.Errorf("offset %d beyond %d bytes: %w", offset, b.ReportedLength(), core.ErrInsufficientData)
	}
	if length == ToEnd {
		return remaining, nil
	}
	if length > remaining {
		return 0, fmt.Errorf("need %d bytes at offset %d, have %d: %w", length, offset, remaining, core.ErrInsufficientData)
	}
	return length, nil
}

// Bytes copies length bytes starting at offset.
func (b *Buffer) Bytes(offset, length int) ([]byte, error) {
	n, err := b.span(offset, length)
	if err != nil {
		return nil, err
	}
	return b.engine.Bytes(b.handle, offset, n)
}

func (b *Buffer) Uint8(offset int) (uint8, error) {
	p, err := b.Bytes(offset, 1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *Buffer) Uint16(offset int, enc host.Encoding) (uint16, error) {
	p, err := b.Bytes(offset, 2)
	if err != nil {
		return 0, err
	}
	return byteOrder(enc).Uint16(p), nil
}

func (b *Buffer) Uint32(offset int, enc host.Encoding) (uint32, error) {
	p, err := b.Bytes(offset, 4)
	if err != nil {
		return 0, err
	}
	return byteOrder(enc).Uint32(p), nil
}

func (b *Buffer) Uint64(offset int, enc host.Encoding) (uint64, error) {
	p, err := b.Bytes(offset, 8)
	if err != nil {
		return 0, err
	}
	return byteOrder(enc).Uint64(p), nil
}

// Subset returns a new buffer covering [offset, offset+length).
func (b *Buffer) Subset(offset, length int) (*Buffer, error) {
	n, err := b.span(offset, length)
	if err != nil {
		return nil, err
	}
	h, err := b.engine.Subset(b.handle, offset, n)
	if err != nil {
		return nil, err
	}
	return &Buffer{engine: b.engine, handle: h}, nil
}

func byteOrder(enc host.Encoding) binary.ByteOrder {
	if enc.LittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
