// Package rtp dissects RTP and RTCP datagrams.
//
// RTP has no well-known port, so the dissector mainly runs as a heuristic
// on the "udp" table. Fixed ports can be added through options and the
// protocol is offered for decode-as on "udp.port".
//
// RTCP is told apart from RTP by a full second byte of 200 to 209 (SR, RR,
// SDES, BYE, APP and the feedback types).
package rtp

import (
	"firestige.xyz/dissect/pkg/dissector"
	"firestige.xyz/dissect/pkg/host"
)

const (
	rtcpPayloadTypeMin = 200
	rtcpPayloadTypeMax = 209

	rtpMinLength  = 12 // fixed RTP header, RFC 3550 5.1
	rtcpMinLength = 8  // RTCP common header plus sender SSRC
)

const (
	treeRTP dissector.TreeID = iota
	treeCSRC
	treeRTCP
	treeCount
)

var payloadTypes = host.ValueStrings{
	{Value: 0, Label: "ITU-T G.711 PCMU"},
	{Value: 3, Label: "GSM 06.10"},
	{Value: 4, Label: "ITU-T G.723"},
	{Value: 8, Label: "ITU-T G.711 PCMA"},
	{Value: 9, Label: "ITU-T G.722"},
	{Value: 13, Label: "Comfort noise (CN)"},
	{Value: 18, Label: "ITU-T G.729"},
	{Value: 26, Label: "JPEG-compressed video"},
	{Value: 31, Label: "ITU-T H.261"},
	{Value: 34, Label: "ITU-T H.263"},
	{Value: 101, Label: "DynamicRTP-Type-101"},
}

var rtcpTypes = host.ValueStrings{
	{Value: 200, Label: "Sender Report"},
	{Value: 201, Label: "Receiver Report"},
	{Value: 202, Label: "Source description"},
	{Value: 203, Label: "Goodbye"},
	{Value: 204, Label: "Application specific"},
	{Value: 205, Label: "Generic RTP Feedback"},
	{Value: 206, Label: "Payload-specific Feedback"},
	{Value: 207, Label: "Extended report"},
	{Value: 208, Label: "AVB RTCP packet"},
	{Value: 209, Label: "Receiver Summary Information"},
}

var (
	hfRTP       = dissector.NewField("Real-Time Transport Protocol", "rtp", host.KindProtocol, host.BaseNone)
	hfVersion   = dissector.Field{Name: "Version", Abbrev: "rtp.version", Kind: host.KindUint8, Display: host.BaseDec, Bitmask: 0xC0}
	hfPadding   = dissector.Field{Name: "Padding", Abbrev: "rtp.padding", Kind: host.KindBoolean, Bitmask: 0x20}
	hfExtension = dissector.Field{Name: "Extension", Abbrev: "rtp.ext", Kind: host.KindBoolean, Bitmask: 0x10}
	hfCC        = dissector.Field{Name: "Contributing source identifiers count", Abbrev: "rtp.cc", Kind: host.KindUint8, Display: host.BaseDec, Bitmask: 0x0F}
	hfMarker    = dissector.Field{Name: "Marker", Abbrev: "rtp.marker", Kind: host.KindBoolean, Bitmask: 0x80}
	hfPT        = dissector.Field{Name: "Payload type", Abbrev: "rtp.p_type", Kind: host.KindUint8, Display: host.BaseDec, Bitmask: 0x7F, Strings: payloadTypes}
	hfSeq       = dissector.NewField("Sequence number", "rtp.seq", host.KindUint16, host.BaseDec)
	hfTimestamp = dissector.NewField("Timestamp", "rtp.timestamp", host.KindUint32, host.BaseDec)
	hfSSRC      = dissector.NewField("Synchronization Source identifier", "rtp.ssrc", host.KindUint32, host.BaseHexDec)
	hfCSRCs     = dissector.NewField("Contributing Source identifiers", "rtp.csrc.items", host.KindNone, host.BaseNone)
	hfCSRC      = dissector.NewField("CSRC item", "rtp.csrc.item", host.KindUint32, host.BaseHexDec)
	hfPayload   = dissector.NewField("Payload", "rtp.payload", host.KindBytes, host.BaseNone)

	hfRTCP        = dissector.NewField("Real-time Transport Control Protocol", "rtp.rtcp", host.KindNone, host.BaseNone)
	hfRTCPVersion = dissector.Field{Name: "Version", Abbrev: "rtp.rtcp.version", Kind: host.KindUint8, Display: host.BaseDec, Bitmask: 0xC0}
	hfRTCPPadding = dissector.Field{Name: "Padding", Abbrev: "rtp.rtcp.padding", Kind: host.KindBoolean, Bitmask: 0x20}
	hfRTCPCount   = dissector.Field{Name: "Reception report count", Abbrev: "rtp.rtcp.rc", Kind: host.KindUint8, Display: host.BaseDec, Bitmask: 0x1F}
	hfRTCPType    = dissector.Field{Name: "Packet type", Abbrev: "rtp.rtcp.pt", Kind: host.KindUint8, Display: host.BaseDec, Strings: rtcpTypes}
	hfRTCPLength  = dissector.Field{Name: "Length", Abbrev: "rtp.rtcp.length", Kind: host.KindUint16, Display: host.BaseDec, Blurb: "32-bit words minus one"}
	hfRTCPSSRC    = dissector.NewField("Sender SSRC", "rtp.rtcp.senderssrc", host.KindUint32, host.BaseHexDec)
)

// Options configure the RTP dissector.
type Options struct {
	Ports     []uint32 `mapstructure:"ports"`     // fixed udp.port registrations
	Heuristic bool     `mapstructure:"heuristic"` // probe unclaimed UDP payloads
}

type Dissector struct {
	dissector.Base
	opts Options
}

func New() dissector.Dissector {
	return &Dissector{opts: Options{Heuristic: true}}
}

func (d *Dissector) ProtocolName() dissector.ProtocolName {
	return dissector.ProtocolName{Full: "Real-Time Transport Protocol", Short: "RTP", Filter: "rtp"}
}

func (d *Dissector) Init(cfg map[string]any) error {
	return dissector.DecodeOptions(cfg, &d.opts)
}

func (d *Dissector) Fields() []dissector.Field {
	return []dissector.Field{
		hfRTP, hfVersion, hfPadding, hfExtension, hfCC, hfMarker, hfPT,
		hfSeq, hfTimestamp, hfSSRC, hfCSRCs, hfCSRC, hfPayload,
		hfRTCP, hfRTCPVersion, hfRTCPPadding, hfRTCPCount, hfRTCPType, hfRTCPLength, hfRTCPSSRC,
	}
}

func (d *Dissector) TreeCount() int { return int(treeCount) }

func (d *Dissector) Registrations() []dissector.Registration {
	regs := []dissector.Registration{
		dissector.Heuristic{Table: "udp", DisplayName: "RTP over UDP", InternalName: "rtp_udp", EnabledByDefault: d.opts.Heuristic},
		dissector.ManualSelection{Table: "udp.port"},
	}
	for _, port := range d.opts.Ports {
		regs = append(regs, dissector.ExactMatch{Table: "udp.port", Pattern: port})
	}
	return regs
}

// Probe accepts data whose header looks like RTP or RTCP and dissects it.
// Nothing is added to the tree before the decision.
func (d *Dissector) Probe(tree *dissector.ProtoTree, buf *dissector.Buffer) bool {
	data, err := buf.Bytes(0, dissector.ToEnd)
	if err != nil || !looksLikeRTPorRTCP(data) {
		return false
	}
	n, err := d.Dissect(tree, buf)
	return err == nil && n > 0
}

func (d *Dissector) Dissect(tree *dissector.ProtoTree, buf *dissector.Buffer) (int, error) {
	second, err := buf.Uint8(1)
	if err != nil {
		return 0, err
	}
	if second >= rtcpPayloadTypeMin && second <= rtcpPayloadTypeMax {
		return d.dissectRTCP(tree, buf)
	}
	return d.dissectRTP(tree, buf)
}

func (d *Dissector) dissectRTP(tree *dissector.ProtoTree, buf *dissector.Buffer) (int, error) {
	t := d.Table()
	if buf.Remaining(0) < rtpMinLength {
		return 0, dissector.ErrInsufficientData
	}

	ti, err := tree.AddItem(t.Field(hfRTP), buf, 0, dissector.ToEnd, dissector.BigEndian)
	if err != nil {
		return 0, err
	}
	rtp := ti.AddSubtree(t.Tree(treeRTP))

	for _, f := range []dissector.Field{hfVersion, hfPadding, hfExtension} {
		if _, err := rtp.AddItem(t.Field(f), buf, 0, 1, dissector.BigEndian); err != nil {
			return 0, err
		}
	}
	_, cc, err := rtp.AddItemUint(t.Field(hfCC), buf, 0, 1, dissector.BigEndian)
	if err != nil {
		return 0, err
	}
	if _, err := rtp.AddItem(t.Field(hfMarker), buf, 1, 1, dissector.BigEndian); err != nil {
		return 0, err
	}
	_, pt, err := rtp.AddItemUint(t.Field(hfPT), buf, 1, 1, dissector.BigEndian)
	if err != nil {
		return 0, err
	}

	c := dissector.NewCursor(buf, 2)
	_, seq, err := c.AddUint(rtp, t.Field(hfSeq), 2, dissector.BigEndian)
	if err != nil {
		return 0, err
	}
	_, ts, err := c.AddUint(rtp, t.Field(hfTimestamp), 4, dissector.BigEndian)
	if err != nil {
		return 0, err
	}
	_, ssrc, err := c.AddUint(rtp, t.Field(hfSSRC), 4, dissector.BigEndian)
	if err != nil {
		return 0, err
	}

	if cc > 0 {
		list, err := rtp.AddItem(t.Field(hfCSRCs), buf, c.Offset(), int(cc)*4, dissector.BigEndian)
		if err != nil {
			return 0, err
		}
		csrc := list.AddSubtree(t.Tree(treeCSRC))
		for i := 0; i < int(cc); i++ {
			if _, err := c.Add(csrc, t.Field(hfCSRC), 4, dissector.BigEndian); err != nil {
				return 0, err
			}
		}
	}
	if c.Remaining() > 0 {
		if _, err := c.Add(rtp, t.Field(hfPayload), dissector.ToEnd, dissector.BigEndian); err != nil {
			return 0, err
		}
	}

	name := "Unknown"
	if l, ok := payloadTypes.Label(pt); ok {
		name = l
	}
	ti.AppendText(", PT=%s, SSRC=0x%08X, Seq=%d, Time=%d", name, ssrc, seq, ts)
	return buf.ReportedLength(), nil
}

func (d *Dissector) dissectRTCP(tree *dissector.ProtoTree, buf *dissector.Buffer) (int, error) {
	t := d.Table()
	if buf.Remaining(0) < rtcpMinLength {
		return 0, dissector.ErrInsufficientData
	}

	ti, err := tree.AddItem(t.Field(hfRTCP), buf, 0, dissector.ToEnd, dissector.BigEndian)
	if err != nil {
		return 0, err
	}
	rtcp := ti.AddSubtree(t.Tree(treeRTCP))

	for _, f := range []dissector.Field{hfRTCPVersion, hfRTCPPadding, hfRTCPCount} {
		if _, err := rtcp.AddItem(t.Field(f), buf, 0, 1, dissector.BigEndian); err != nil {
			return 0, err
		}
	}
	c := dissector.NewCursor(buf, 1)
	_, pt, err := c.AddUint(rtcp, t.Field(hfRTCPType), 1, dissector.BigEndian)
	if err != nil {
		return 0, err
	}
	if _, err := c.Add(rtcp, t.Field(hfRTCPLength), 2, dissector.BigEndian); err != nil {
		return 0, err
	}
	_, ssrc, err := c.AddUint(rtcp, t.Field(hfRTCPSSRC), 4, dissector.BigEndian)
	if err != nil {
		return 0, err
	}

	name, _ := rtcpTypes.Label(pt)
	ti.AppendText(": %s, SSRC=0x%08X", name, ssrc)
	return buf.ReportedLength(), nil
}

// looksLikeRTPorRTCP applies the cheap header checks shared by RTP and
// RTCP: version 2, and either an RTCP packet type or an RTP header that
// is long enough.
func looksLikeRTPorRTCP(payload []byte) bool {
	if len(payload) < rtcpMinLength {
		return false
	}
	if v := (payload[0] >> 6) & 0x3; v != 2 {
		return false
	}
	if pt := payload[1]; pt >= rtcpPayloadTypeMin && pt <= rtcpPayloadTypeMax {
		return true
	}
	if pt := payload[1] & 0x7F; pt >= 72 && pt <= 76 {
		// reserved so RTP with the marker bit set never reads as RTCP
		return false
	}
	return len(payload) >= rtpMinLength
}
