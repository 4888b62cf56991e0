package capture

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"

	"firestige.xyz/dissect/internal/core"
)

// MaxFilterPorts bounds the port list so every jump offset fits a BPF
// instruction.
const MaxFilterPorts = 64

const acceptLen = 0x40000

// PortFilter keeps IPv4 UDP and TCP packets whose source or destination
// port is in a list. It runs a classic BPF program over Ethernet frames.
type PortFilter struct {
	ports   []uint16
	program []bpf.Instruction
	vm      *bpf.VM
}

// NewPortFilter compiles a filter for ports. An empty list yields a nil
// filter which accepts everything.
func NewPortFilter(link layers.LinkType, ports []uint16) (*PortFilter, error) {
	if len(ports) == 0 {
		return nil, nil
	}
	if len(ports) > MaxFilterPorts {
		return nil, fmt.Errorf("%d filter ports, limit %d: %w", len(ports), MaxFilterPorts, core.ErrConfigInvalid)
	}
	if link != layers.LinkTypeEthernet {
		return nil, fmt.Errorf("port filter on link type %s: %w", link, core.ErrConfigInvalid)
	}

	program := portProgram(ports)
	vm, err := bpf.NewVM(program)
	if err != nil {
		return nil, fmt.Errorf("failed to load port filter: %w", err)
	}
	return &PortFilter{ports: append([]uint16(nil), ports...), program: program, vm: vm}, nil
}

// portProgram is the equivalent of
// "ip and (udp or tcp) and not ip[6:2] & 0x1fff != 0 and port in ports".
func portProgram(ports []uint16) []bpf.Instruction {
	n := len(ports)
	drop := 10 + 2*n
	accept := drop + 1
	skip := func(from, to int) uint8 { return uint8(to - from - 1) }

	prog := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: skip(1, drop)},
		bpf.LoadAbsolute{Off: 23, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipTrue: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 6, SkipFalse: skip(4, drop)},
		bpf.LoadAbsolute{Off: 20, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: skip(6, drop)},
		bpf.LoadMemShift{Off: 14},
		bpf.LoadIndirect{Off: 14, Size: 2},
	}
	for _, p := range ports {
		prog = append(prog, bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(p), SkipTrue: skip(len(prog), accept)})
	}
	prog = append(prog, bpf.LoadIndirect{Off: 16, Size: 2})
	for _, p := range ports {
		prog = append(prog, bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(p), SkipTrue: skip(len(prog), accept)})
	}
	return append(prog,
		bpf.RetConstant{Val: 0},
		bpf.RetConstant{Val: acceptLen},
	)
}

// Match reports whether the frame passes the filter. A nil filter
// matches everything.
func (f *PortFilter) Match(data []byte) bool {
	if f == nil {
		return true
	}
	n, err := f.vm.Run(data)
	return err == nil && n > 0
}

func (f *PortFilter) Ports() []uint16 {
	if f == nil {
		return nil
	}
	return append([]uint16(nil), f.ports...)
}

// Assemble returns the raw program, e.g. for attaching to a socket.
func (f *PortFilter) Assemble() ([]bpf.RawInstruction, error) {
	if f == nil {
		return nil, nil
	}
	return bpf.Assemble(f.program)
}
