package sip

import (
	"bytes"
	"strconv"
	"strings"
)

// SIP methods a request line may start with.
var sipMethods = [][]byte{
	[]byte("INVITE"),
	[]byte("ACK"),
	[]byte("BYE"),
	[]byte("CANCEL"),
	[]byte("REGISTER"),
	[]byte("OPTIONS"),
	[]byte("PRACK"),
	[]byte("SUBSCRIBE"),
	[]byte("NOTIFY"),
	[]byte("PUBLISH"),
	[]byte("INFO"),
	[]byte("REFER"),
	[]byte("MESSAGE"),
	[]byte("UPDATE"),
}

var sipVersion = []byte("SIP/2.0")

// compactForms maps single-letter header names to their long form.
var compactForms = map[string]string{
	"i": "call-id",
	"f": "from",
	"t": "to",
	"v": "via",
	"m": "contact",
	"c": "content-type",
	"l": "content-length",
}

// detect reports whether data starts like a SIP request or response.
func detect(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.HasPrefix(data, sipVersion) {
		return true
	}
	for _, method := range sipMethods {
		if bytes.HasPrefix(data, method) && len(data) > len(method) && data[len(method)] == ' ' {
			return true
		}
	}
	return false
}

// header is one header line, possibly folded over several physical lines.
// Offsets are relative to the start of the message.
type header struct {
	name       string
	start, end int
	valueStart int
	valueEnd   int
}

// key is the lower-case long form of the header name.
func (h header) key() string {
	k := strings.ToLower(h.name)
	if long, ok := compactForms[k]; ok {
		return long
	}
	return k
}

// layout locates the parts of one SIP message inside data.
type layout struct {
	lineEnd   int // end of the start line, without CRLF
	hdrStart  int
	hdrEnd    int
	bodyStart int
	length    int // bytes of data that belong to this message
	headers   []header
}

// locate finds the message boundaries. It reports false when the empty
// line ending the header section is missing.
func locate(data []byte) (layout, bool) {
	var l layout
	idx, sep := bytes.Index(data, []byte("\r\n\r\n")), 4
	if idx == -1 {
		idx, sep = bytes.Index(data, []byte("\n\n")), 2
	}
	if idx == -1 {
		return l, false
	}

	l.lineEnd, l.hdrStart = lineBounds(data, 0, idx)
	l.hdrEnd = idx
	l.bodyStart = idx + sep
	l.headers = scanHeaders(data, l.hdrStart, l.hdrEnd)
	l.length = len(data)
	for _, h := range l.headers {
		if h.key() != "content-length" {
			continue
		}
		n, err := strconv.Atoi(string(data[h.valueStart:h.valueEnd]))
		if err == nil && n >= 0 && l.bodyStart+n < len(data) {
			l.length = l.bodyStart + n
		}
	}
	return l, true
}

// lineBounds returns the end of the line starting at off, without its
// terminator, and the offset of the next line.
func lineBounds(data []byte, off, limit int) (end, next int) {
	i := bytes.IndexByte(data[off:limit], '\n')
	if i == -1 {
		end, next = limit, limit
	} else {
		end, next = off+i, off+i+1
	}
	if end > off && data[end-1] == '\r' {
		end--
	}
	return end, next
}

func scanHeaders(data []byte, from, to int) []header {
	var hs []header
	for off := from; off < to; {
		end, next := lineBounds(data, off, to)
		switch {
		case end == off:
		case (data[off] == ' ' || data[off] == '\t') && len(hs) > 0:
			hs[len(hs)-1].end = end
			hs[len(hs)-1].valueEnd = end
		default:
			h := header{start: off, end: end, valueStart: end, valueEnd: end}
			if colon := bytes.IndexByte(data[off:end], ':'); colon >= 0 {
				h.name = string(bytes.TrimSpace(data[off : off+colon]))
				vs := off + colon + 1
				for vs < end && (data[vs] == ' ' || data[vs] == '\t') {
					vs++
				}
				h.valueStart = vs
			}
			hs = append(hs, h)
		}
		off = next
	}
	return hs
}
