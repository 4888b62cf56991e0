package engine

import (
	"fmt"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

type bufRec struct {
	data []byte
	base int // offset of data[0] within the frame
}

func (b *bufRec) slice(offset, length int) ([]byte, error) {
	if offset < 0 || offset > len(b.data) {
		return nil, fmt.Errorf("offset %d of %d bytes: %w", offset, len(b.data), core.ErrInsufficientData)
	}
	if length == -1 {
		length = len(b.data) - offset
	}
	if length < 0 || offset+length > len(b.data) {
		return nil, fmt.Errorf("%d bytes at offset %d of %d: %w", length, offset, len(b.data), core.ErrInsufficientData)
	}
	return b.data[offset : offset+length], nil
}

func (e *Engine) buffer(buf host.Buffer) (*bufRec, error) {
	if e.pass == nil {
		return nil, fmt.Errorf("buffer access outside dissection: %w", core.ErrPhase)
	}
	idx, ok := e.pass.index(uint64(buf))
	if !ok || idx >= len(e.pass.bufs) {
		return nil, fmt.Errorf("buffer handle %#x: %w", uint64(buf), core.ErrHostContract)
	}
	return e.pass.bufs[idx], nil
}

func (e *Engine) ReportedLength(buf host.Buffer) int {
	b, err := e.buffer(buf)
	if err != nil {
		return 0
	}
	return len(b.data)
}

func (e *Engine) ReportedLengthRemaining(buf host.Buffer, offset int) int {
	b, err := e.buffer(buf)
	if err != nil || offset < 0 || offset > len(b.data) {
		return -1
	}
	return len(b.data) - offset
}

func (e *Engine) Bytes(buf host.Buffer, offset, length int) ([]byte, error) {
	b, err := e.buffer(buf)
	if err != nil {
		return nil, err
	}
	p, err := b.slice(offset, length)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), p...), nil
}

func (e *Engine) Subset(buf host.Buffer, offset, length int) (host.Buffer, error) {
	b, err := e.buffer(buf)
	if err != nil {
		return 0, err
	}
	p, err := b.slice(offset, length)
	if err != nil {
		return 0, err
	}
	return e.pass.addBuffer(p, b.base+offset), nil
}
