// Package sip dissects SIP requests and responses, and the SDP bodies they
// carry.
//
// Messages are claimed on the configured ports of "udp.port" and "tcp.port",
// and by heuristics on "udp" and "tcp" for SIP on other ports. Messages of
// one dialog are correlated by Call-ID, so the tree shows how far a call has
// progressed and which media the offer and answer agreed on.
package sip

import (
	"bytes"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	gosip "github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/log"
	"firestige.xyz/dissect/pkg/dissector"
	"firestige.xyz/dissect/pkg/host"
)

const defaultPort = 5060

const (
	treeSIP dissector.TreeID = iota
	treeStartLine
	treeHeaders
	treeBody
	treeCount
)

var (
	hfSIP         = dissector.NewField("Session Initiation Protocol", "sip", host.KindProtocol, host.BaseNone)
	hfRequestLine = dissector.NewField("Request-Line", "sip.Request-Line", host.KindString, host.BaseNone)
	hfMethod      = dissector.NewField("Method", "sip.Method", host.KindString, host.BaseNone)
	hfRequestURI  = dissector.NewField("Request-URI", "sip.r-uri", host.KindString, host.BaseNone)
	hfStatusLine  = dissector.NewField("Status-Line", "sip.Status-Line", host.KindString, host.BaseNone)
	hfStatusCode  = dissector.NewField("Status-Code", "sip.Status-Code", host.KindString, host.BaseNone)
	hfMsgHdr      = dissector.NewField("Message Header", "sip.msg_hdr", host.KindNone, host.BaseNone)
	hfMsgBody     = dissector.NewField("Message Body", "sip.msg_body", host.KindNone, host.BaseNone)

	hfCallID        = dissector.NewField("Call-ID", "sip.Call-ID", host.KindString, host.BaseNone)
	hfFrom          = dissector.NewField("From", "sip.From", host.KindString, host.BaseNone)
	hfTo            = dissector.NewField("To", "sip.To", host.KindString, host.BaseNone)
	hfVia           = dissector.NewField("Via", "sip.Via", host.KindString, host.BaseNone)
	hfCSeq          = dissector.NewField("CSeq", "sip.CSeq", host.KindString, host.BaseNone)
	hfContact       = dissector.NewField("Contact", "sip.Contact", host.KindString, host.BaseNone)
	hfMaxForwards   = dissector.NewField("Max-Forwards", "sip.Max-Forwards", host.KindString, host.BaseNone)
	hfUserAgent     = dissector.NewField("User-Agent", "sip.User-Agent", host.KindString, host.BaseNone)
	hfContentType   = dissector.NewField("Content-Type", "sip.Content-Type", host.KindString, host.BaseNone)
	hfContentLength = dissector.NewField("Content-Length", "sip.Content-Length", host.KindString, host.BaseNone)

	hfSDPVersion     = dissector.NewField("Session Description Protocol Version (v)", "sdp.version", host.KindString, host.BaseNone)
	hfSDPOwner       = dissector.NewField("Owner/Creator, Session Id (o)", "sdp.owner", host.KindString, host.BaseNone)
	hfSDPSessionName = dissector.NewField("Session Name (s)", "sdp.session_name", host.KindString, host.BaseNone)
	hfSDPConnection  = dissector.NewField("Connection Information (c)", "sdp.connection_info", host.KindString, host.BaseNone)
	hfSDPTime        = dissector.NewField("Time Description, active time (t)", "sdp.time", host.KindString, host.BaseNone)
	hfSDPMedia       = dissector.NewField("Media Description, name and address (m)", "sdp.media", host.KindString, host.BaseNone)
	hfSDPAttribute   = dissector.NewField("Media Attribute (a)", "sdp.media_attr", host.KindString, host.BaseNone)
)

// headerFields maps lower-case long header names to their fields. Other
// headers are shown as text.
var headerFields = map[string]dissector.Field{
	"call-id":        hfCallID,
	"from":           hfFrom,
	"to":             hfTo,
	"via":            hfVia,
	"cseq":           hfCSeq,
	"contact":        hfContact,
	"max-forwards":   hfMaxForwards,
	"user-agent":     hfUserAgent,
	"content-type":   hfContentType,
	"content-length": hfContentLength,
}

// Options configure the SIP dissector.
type Options struct {
	Ports      []uint32      `mapstructure:"ports"`       // udp.port and tcp.port registrations
	Heuristic  bool          `mapstructure:"heuristic"`   // probe unclaimed UDP and TCP payloads
	SessionTTL time.Duration `mapstructure:"session_ttl"` // idle time before a call is forgotten
}

type Dissector struct {
	dissector.Base
	opts   Options
	parser *messageParser
	calls  *calls
}

func New() dissector.Dissector {
	return &Dissector{
		opts: Options{
			Ports:      []uint32{defaultPort},
			Heuristic:  true,
			SessionTTL: defaultSessionTTL,
		},
		parser: newMessageParser(),
		calls:  newCalls(defaultSessionTTL),
	}
}

func (d *Dissector) ProtocolName() dissector.ProtocolName {
	return dissector.ProtocolName{Full: "Session Initiation Protocol", Short: "SIP", Filter: "sip"}
}

func (d *Dissector) Init(cfg map[string]any) error {
	if err := dissector.DecodeOptions(cfg, &d.opts); err != nil {
		return err
	}
	if d.opts.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl %v: %w", d.opts.SessionTTL, core.ErrConfigInvalid)
	}
	d.calls = newCalls(d.opts.SessionTTL)
	return nil
}

func (d *Dissector) Fields() []dissector.Field {
	return []dissector.Field{
		hfSIP, hfRequestLine, hfMethod, hfRequestURI, hfStatusLine, hfStatusCode, hfMsgHdr, hfMsgBody,
		hfCallID, hfFrom, hfTo, hfVia, hfCSeq, hfContact, hfMaxForwards, hfUserAgent, hfContentType, hfContentLength,
		hfSDPVersion, hfSDPOwner, hfSDPSessionName, hfSDPConnection, hfSDPTime, hfSDPMedia, hfSDPAttribute,
	}
}

func (d *Dissector) TreeCount() int { return int(treeCount) }

func (d *Dissector) Registrations() []dissector.Registration {
	regs := []dissector.Registration{
		dissector.Heuristic{Table: "udp", DisplayName: "SIP over UDP", InternalName: "sip_udp", EnabledByDefault: d.opts.Heuristic},
		dissector.Heuristic{Table: "tcp", DisplayName: "SIP over TCP", InternalName: "sip_tcp", EnabledByDefault: d.opts.Heuristic},
		dissector.ManualSelection{Table: "udp.port"},
		dissector.ManualSelection{Table: "tcp.port"},
	}
	for _, port := range d.opts.Ports {
		regs = append(regs,
			dissector.ExactMatch{Table: "udp.port", Pattern: port},
			dissector.ExactMatch{Table: "tcp.port", Pattern: port},
		)
	}
	return regs
}

// Probe accepts data that starts with a SIP request or status line and
// dissects it.
func (d *Dissector) Probe(tree *dissector.ProtoTree, buf *dissector.Buffer) bool {
	data, err := buf.Bytes(0, dissector.ToEnd)
	if err != nil || !detect(data) {
		return false
	}
	n, err := d.Dissect(tree, buf)
	return err == nil && n > 0
}

// Dissect decodes one SIP message and returns its length. Trailing bytes
// past Content-Length are left to the caller.
func (d *Dissector) Dissect(tree *dissector.ProtoTree, buf *dissector.Buffer) (int, error) {
	t := d.Table()
	data, err := buf.Bytes(0, dissector.ToEnd)
	if err != nil {
		return 0, err
	}
	l, ok := locate(data)
	if !ok {
		return 0, fmt.Errorf("sip: no end of header section: %w", dissector.ErrInsufficientData)
	}

	ti, err := tree.AddItem(t.Field(hfSIP), buf, 0, l.length, dissector.ASCII)
	if err != nil {
		return 0, err
	}
	sipTree := ti.AddSubtree(t.Tree(treeSIP))

	m, err := d.parser.parse(data[:l.length])
	if err != nil {
		return 0, err
	}
	if err := d.dissectStartLine(sipTree, buf, data, l, m); err != nil {
		return 0, err
	}
	if err := d.dissectHeaders(sipTree, buf, data, l, m); err != nil {
		return 0, err
	}
	if l.length > l.bodyStart {
		body, err := sipTree.AddItem(t.Field(hfMsgBody), buf, l.bodyStart, l.length-l.bodyStart, dissector.ASCII)
		if err != nil {
			return 0, err
		}
		if m.contentType == "application/sdp" {
			body.AppendText(": SDP")
			m.sdp, err = d.dissectSDP(body.AddSubtree(t.Tree(treeBody)), buf, data, l.bodyStart, l.length)
			if err != nil {
				return 0, err
			}
		}
	}
	if m.callID != "" {
		if err := describeCall(sipTree, buf, m.callID, d.calls.observe(m.callID, m)); err != nil {
			return 0, err
		}
	}

	ti.AppendText(" (%s)", m.summary())
	return l.length, nil
}

func (d *Dissector) dissectStartLine(tree *dissector.ProtoTree, buf *dissector.Buffer, data []byte, l layout, m *message) error {
	t := d.Table()
	line := data[:l.lineEnd]

	if m.method == "" {
		// SIP/2.0 200 OK
		item, err := tree.AddItem(t.Field(hfStatusLine), buf, 0, l.lineEnd, dissector.ASCII)
		if err != nil {
			return err
		}
		sp := bytes.IndexByte(line, ' ')
		if sp < 0 || len(line) < sp+4 {
			return nil
		}
		_, err = item.AddSubtree(t.Tree(treeStartLine)).AddItem(t.Field(hfStatusCode), buf, sp+1, 3, dissector.ASCII)
		return err
	}

	// INVITE sip:bob@example.com SIP/2.0
	item, err := tree.AddItem(t.Field(hfRequestLine), buf, 0, l.lineEnd, dissector.ASCII)
	if err != nil {
		return err
	}
	sub := item.AddSubtree(t.Tree(treeStartLine))
	first, last := bytes.IndexByte(line, ' '), bytes.LastIndexByte(line, ' ')
	if first < 0 {
		return nil
	}
	if _, err := sub.AddItem(t.Field(hfMethod), buf, 0, first, dissector.ASCII); err != nil {
		return err
	}
	if last > first {
		_, err = sub.AddItem(t.Field(hfRequestURI), buf, first+1, last-first-1, dissector.ASCII)
	}
	return err
}

func (d *Dissector) dissectHeaders(tree *dissector.ProtoTree, buf *dissector.Buffer, data []byte, l layout, m *message) error {
	t := d.Table()
	item, err := tree.AddItem(t.Field(hfMsgHdr), buf, l.hdrStart, l.hdrEnd-l.hdrStart, dissector.ASCII)
	if err != nil {
		return err
	}
	hdrs := item.AddSubtree(t.Tree(treeHeaders))

	for _, h := range l.headers {
		key := h.key()
		if key == "content-type" {
			m.contentType = mediaType(string(data[h.valueStart:h.valueEnd]))
		}
		if f, ok := headerFields[key]; ok && h.name != "" {
			_, err = hdrs.AddItem(t.Field(f), buf, h.valueStart, h.valueEnd-h.valueStart, dissector.ASCII)
		} else {
			_, err = hdrs.AddText(buf, h.start, h.end-h.start, "%s", data[h.start:h.end])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// describeCall adds the generated items that tie the message to its call.
func describeCall(tree *dissector.ProtoTree, buf *dissector.Buffer, callID string, v callView) error {
	if _, err := tree.AddText(buf, 0, 0, "[Call %s: message %d]", callID, v.messages); err != nil {
		return err
	}
	if v.offer != nil && v.answer != nil {
		for i, ans := range v.answer.streams {
			if i >= len(v.offer.streams) {
				break
			}
			off := v.offer.streams[i]
			if _, err := tree.AddText(buf, 0, 0, "[Media: %s <-> %s, %s]",
				endpoint(v.offer.connection, off.rtpPort), endpoint(v.answer.connection, ans.rtpPort), ans); err != nil {
				return err
			}
		}
	}
	if v.ended {
		if _, err := tree.AddText(buf, 0, 0, "[Call ended]"); err != nil {
			return err
		}
	}
	return nil
}

func endpoint(addr netip.Addr, port uint16) string {
	if !addr.IsValid() {
		return fmt.Sprintf("port %d", port)
	}
	return netip.AddrPortFrom(addr, port).String()
}

// mediaType strips parameters from a Content-Type value.
func mediaType(value string) string {
	if semi := strings.IndexByte(value, ';'); semi >= 0 {
		value = value[:semi]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// message is the parsed view of one SIP message.
type message struct {
	method      string // empty for responses
	status      int
	cseqMethod  string
	callID      string
	contentType string
	sdp         *sdpInfo
}

func (m *message) summary() string {
	if m.method != "" {
		return m.method
	}
	return fmt.Sprintf("%d", m.status)
}

// messageParser wraps the gosip packet parser, which is not safe for
// concurrent use.
type messageParser struct {
	mu       sync.Mutex
	delegate *parser.PacketParser
}

func newMessageParser() *messageParser {
	entry := log.Entry(log.GetLogger()).WithField("dissector", "sip")
	return &messageParser{delegate: parser.NewPacketParser(newLoggerAdapter(entry))}
}

func (p *messageParser) parse(data []byte) (*message, error) {
	p.mu.Lock()
	msg, err := p.delegate.ParseMessage(data)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("sip: %w", err)
	}

	m := &message{}
	switch v := msg.(type) {
	case gosip.Request:
		m.method = string(v.Method())
	case gosip.Response:
		m.status = int(v.StatusCode())
	}
	if id, ok := msg.CallID(); ok {
		m.callID = id.Value()
	}
	if cseq, ok := msg.CSeq(); ok {
		// "1 INVITE"
		if parts := strings.Fields(cseq.Value()); len(parts) == 2 {
			m.cseqMethod = parts[1]
		}
	}
	return m, nil
}
