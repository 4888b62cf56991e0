package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/dissect/internal/engine"
)

// Decoder turns link-layer frames into engine frames: lower layers are
// decoded here and the transport payload is offered to dispatch.
type Decoder struct {
	parser *gopacket.DecodingLayerParser

	eth     layers.Ethernet
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	udp     layers.UDP
	payload gopacket.Payload

	decoded []gopacket.LayerType
}

func NewDecoder(link layers.LinkType) *Decoder {
	d := &Decoder{}
	first := gopacket.LayerType(layers.LayerTypeEthernet)
	switch link {
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		first = layers.LayerTypeIPv4
	case layers.LinkTypeIPv6:
		first = layers.LayerTypeIPv6
	}
	d.parser = gopacket.NewDecodingLayerParser(
		first,
		&d.eth,
		&d.ip4,
		&d.ip6,
		&d.tcp,
		&d.udp,
		&d.payload,
	)
	d.parser.IgnoreUnsupported = true
	return d
}

// Decode builds the frame for one packet. Layers that fail to decode end
// the walk; whatever follows the last good layer is offered as payload.
func (d *Decoder) Decode(number int, data []byte) engine.Frame {
	d.decoded = d.decoded[:0]
	_ = d.parser.DecodeLayers(data, &d.decoded)

	f := engine.Frame{Number: number, Data: data}
	offset := 0
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeEthernet:
			f.Layers = append(f.Layers, "eth")
			offset += len(d.eth.Contents)
		case layers.LayerTypeIPv4:
			f.Layers = append(f.Layers, "ip")
			offset += len(d.ip4.Contents)
			if !d.hasTransport() {
				f.Keys = append(f.Keys, engine.Key{Table: "ip.proto", Values: []uint32{uint32(d.ip4.Protocol)}})
			}
		case layers.LayerTypeIPv6:
			f.Layers = append(f.Layers, "ipv6")
			offset += len(d.ip6.Contents)
			if !d.hasTransport() {
				f.Keys = append(f.Keys, engine.Key{Table: "ip.proto", Values: []uint32{uint32(d.ip6.NextHeader)}})
			}
		case layers.LayerTypeUDP:
			f.Layers = append(f.Layers, "udp")
			offset += len(d.udp.Contents)
			f.Keys = append(f.Keys, portKey("udp.port", uint16(d.udp.SrcPort), uint16(d.udp.DstPort)))
			f.Heuristics = append(f.Heuristics, "udp")
		case layers.LayerTypeTCP:
			f.Layers = append(f.Layers, "tcp")
			offset += len(d.tcp.Contents)
			f.Keys = append(f.Keys, portKey("tcp.port", uint16(d.tcp.SrcPort), uint16(d.tcp.DstPort)))
			f.Heuristics = append(f.Heuristics, "tcp")
		}
	}
	if offset > len(data) {
		offset = len(data)
	}
	f.PayloadOffset = offset
	return f
}

func (d *Decoder) hasTransport() bool {
	for _, lt := range d.decoded {
		if lt == layers.LayerTypeUDP || lt == layers.LayerTypeTCP {
			return true
		}
	}
	return false
}

// portKey orders the lower port first.
func portKey(table string, src, dst uint16) engine.Key {
	lo, hi := src, dst
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo == hi {
		return engine.Key{Table: table, Values: []uint32{uint32(lo)}}
	}
	return engine.Key{Table: table, Values: []uint32{uint32(lo), uint32(hi)}}
}
