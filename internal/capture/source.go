// Package capture replays capture files into engine frames.
package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/dissect/internal/core"
)

const ngMagic = 0x0A0D0D0A

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads packets from a pcap or pcapng file.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
	ng     bool
}

// Open detects the file format from its magic number.
func Open(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("capture file is required: %w", core.ErrConfigInvalid)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}
	s, err := newSource(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.file = f
	return s, nil
}

func newSource(path string, r io.Reader) (*Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header %s: %w", path, err)
	}

	s := &Source{path: path}
	if binary.BigEndian.Uint32(magic) == ngMagic {
		s.ng = true
		s.reader, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		s.reader, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse capture file %s: %w", path, err)
	}
	return s, nil
}

// ReadPacket returns io.EOF once the file is exhausted.
func (s *Source) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("failed to read packet: %w", err)
	}
	return data, ci, nil
}

func (s *Source) LinkType() layers.LinkType {
	return s.reader.LinkType()
}

// IsNg reports whether the file is pcapng.
func (s *Source) IsNg() bool { return s.ng }

func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
