package sip

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"firestige.xyz/dissect/pkg/dissector"
)

// sdpInfo is what the call table keeps of an offer or answer.
type sdpInfo struct {
	connection netip.Addr
	streams    []mediaStream
}

// mediaStream is one m= line with its a= attributes.
type mediaStream struct {
	mediaType string
	rtpPort   uint16
	rtcpPort  uint16
	rtcpMux   bool
	codec     string // first a=rtpmap
	direction string
}

func (m mediaStream) String() string {
	s := fmt.Sprintf("%s %d", m.mediaType, m.rtpPort)
	if m.codec != "" {
		s += " " + m.codec
	}
	return s + " " + m.direction
}

var sdpFields = map[byte]dissector.Field{
	'v': hfSDPVersion,
	'o': hfSDPOwner,
	's': hfSDPSessionName,
	'c': hfSDPConnection,
	't': hfSDPTime,
	'm': hfSDPMedia,
	'a': hfSDPAttribute,
}

// dissectSDP adds one item per line of the body in data[start:end] and
// collects the media streams it describes.
func (d *Dissector) dissectSDP(tree *dissector.ProtoTree, buf *dissector.Buffer, data []byte, start, end int) (*sdpInfo, error) {
	t := d.Table()
	sdp := &sdpInfo{}
	var sessionIP netip.Addr
	var current *mediaStream

	for off := start; off < end; {
		lineEnd, next := lineBounds(data, off, end)
		line := data[off:lineEnd]
		lineStart := off
		off = next
		if len(line) == 0 {
			continue
		}
		f, known := sdpFields[line[0]]
		if len(line) < 2 || line[1] != '=' || !known {
			if _, err := tree.AddText(buf, lineStart, len(line), "%s", line); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := tree.AddItem(t.Field(f), buf, lineStart+2, len(line)-2, dissector.ASCII); err != nil {
			return nil, err
		}

		value := strings.TrimSpace(string(line[2:]))
		switch line[0] {
		case 'c':
			ip := parseConnectionLine(value)
			if !ip.IsValid() {
				continue
			}
			if current != nil {
				sdp.connection = ip
			} else {
				sessionIP = ip
			}
		case 'm':
			if current != nil {
				sdp.streams = append(sdp.streams, *current)
				current = nil
			}
			// m=audio 49170 RTP/AVP 0 8
			parts := strings.Fields(value)
			if len(parts) < 3 {
				continue
			}
			port, err := strconv.ParseUint(parts[1], 10, 16)
			if err != nil {
				continue
			}
			current = &mediaStream{
				mediaType: parts[0],
				rtpPort:   uint16(port),
				rtcpPort:  uint16(port) + 1,
				direction: "sendrecv",
			}
		case 'a':
			if current != nil {
				current.attribute(value)
			}
		}
	}
	if current != nil {
		sdp.streams = append(sdp.streams, *current)
	}
	if !sdp.connection.IsValid() {
		sdp.connection = sessionIP
	}
	return sdp, nil
}

func (m *mediaStream) attribute(value string) {
	switch {
	case value == "rtcp-mux":
		m.rtcpMux = true
		m.rtcpPort = m.rtpPort
	case strings.HasPrefix(value, "rtcp:"):
		// a=rtcp:53020 IN IP4 126.16.64.4
		parts := strings.Fields(value[5:])
		if len(parts) == 0 {
			return
		}
		if port, err := strconv.ParseUint(parts[0], 10, 16); err == nil {
			m.rtcpPort = uint16(port)
		}
	case strings.HasPrefix(value, "rtpmap:"):
		if m.codec == "" {
			if parts := strings.SplitN(value[7:], " ", 2); len(parts) == 2 {
				m.codec = parts[1]
			}
		}
	case value == "sendrecv", value == "sendonly", value == "recvonly", value == "inactive":
		m.direction = value
	}
}

// parseConnectionLine returns the address of "IN IP4 192.168.1.100".
func parseConnectionLine(value string) netip.Addr {
	parts := strings.Fields(value)
	if len(parts) < 3 {
		return netip.Addr{}
	}
	ip, err := netip.ParseAddr(parts[2])
	if err != nil {
		return netip.Addr{}
	}
	return ip
}
