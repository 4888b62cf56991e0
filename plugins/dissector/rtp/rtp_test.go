package rtp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/dissecttest"
	"firestige.xyz/dissect/internal/engine"
	"firestige.xyz/dissect/pkg/dissector"
)

// makeRTPPayload builds an RTP packet.
//
//	byte 0: V=2  P=0  X=ext  CC=len(csrc)
//	byte 1: M=marker  PT=pt
func makeRTPPayload(pt uint8, seq uint16, ts uint32, ssrc uint32, marker bool, csrc []uint32, body []byte) []byte {
	b := make([]byte, 12+4*len(csrc))
	b[0] = 0x80 | byte(len(csrc))
	b[1] = pt & 0x7F
	if marker {
		b[1] |= 0x80
	}
	binary.BigEndian.PutUint16(b[2:4], seq)
	binary.BigEndian.PutUint32(b[4:8], ts)
	binary.BigEndian.PutUint32(b[8:12], ssrc)
	for i, c := range csrc {
		binary.BigEndian.PutUint32(b[12+4*i:], c)
	}
	return append(b, body...)
}

func makeRTCPPayload(pt uint8, ssrc uint32) []byte {
	b := make([]byte, 8)
	b[0] = 0x81
	b[1] = pt
	binary.BigEndian.PutUint16(b[2:4], 1)
	binary.BigEndian.PutUint32(b[4:8], ssrc)
	return b
}

func TestLooksLikeRTPorRTCP(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"rtp", makeRTPPayload(0, 1, 2, 3, false, nil, nil), true},
		{"rtp marker", makeRTPPayload(8, 1, 2, 3, true, nil, nil), true},
		{"rtcp sender report", makeRTCPPayload(200, 1), true},
		{"too short", []byte{0x80, 0x00, 0x00}, false},
		{"version 1", append([]byte{0x40, 0x00}, make([]byte, 10)...), false},
		{"rtp header cut", append([]byte{0x80, 0x00}, make([]byte, 8)...), false},
		{"sip text", []byte("INVITE sip:bob@example.com SIP/2.0\r\n"), false},
		{"reserved payload type", append([]byte{0x80, 72}, make([]byte, 10)...), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeRTPorRTCP(tt.data))
		})
	}
}

func load(t *testing.T, opts map[string]any) *engine.Engine {
	return dissecttest.Load(t, map[string]map[string]any{"rtp": opts}, New())
}

func TestDissect_RTPByHeuristic(t *testing.T) {
	e := load(t, nil)
	payload := makeRTPPayload(0, 4660, 160, 0xDEADBEEF, true, []uint32{0x01020304}, []byte{0xAA, 0xBB})

	res, err := e.DissectFrame(dissecttest.UDP(40000, payload))
	require.NoError(t, err)
	assert.Equal(t, []string{"udp", "rtp"}, res.Protocols)
	assert.Empty(t, res.Malformed)

	root := dissecttest.Find(res.Tree, "rtp")
	require.NotNil(t, root)
	assert.Equal(t, "Real-Time Transport Protocol, PT=ITU-T G.711 PCMU, SSRC=0xDEADBEEF, Seq=4660, Time=160", root.Text)
	assert.Equal(t, "rtp_udp", root.Probe)
	assert.False(t, root.Rejected)

	assert.Equal(t, uint64(2), dissecttest.Find(res.Tree, "rtp.version").Value)
	assert.Equal(t, true, dissecttest.Find(res.Tree, "rtp.marker").Value)
	assert.Equal(t, uint64(1), dissecttest.Find(res.Tree, "rtp.cc").Value)
	assert.Equal(t, uint64(4660), dissecttest.Find(res.Tree, "rtp.seq").Value)
	assert.Equal(t, uint64(0x01020304), dissecttest.Find(res.Tree, "rtp.csrc.item").Value)
	assert.Equal(t, "aabb", dissecttest.Find(res.Tree, "rtp.payload").Value)
	assert.Equal(t, "1... .... = Marker: True", dissecttest.Find(res.Tree, "rtp.marker").Text)
	assert.Equal(t, 8+12, dissecttest.Find(res.Tree, "rtp.csrc.item").Start)
}

func TestDissect_RTCP(t *testing.T) {
	e := load(t, nil)

	res, err := e.DissectFrame(dissecttest.UDP(40001, makeRTCPPayload(200, 0x11223344)))
	require.NoError(t, err)
	assert.Contains(t, res.Protocols, "rtp")

	root := dissecttest.Find(res.Tree, "rtp.rtcp")
	require.NotNil(t, root)
	assert.Equal(t, "Real-time Transport Control Protocol: Sender Report, SSRC=0x11223344", root.Text)
	assert.Equal(t, uint64(1), dissecttest.Find(res.Tree, "rtp.rtcp.rc").Value)
	assert.Equal(t, uint64(1), dissecttest.Find(res.Tree, "rtp.rtcp.length").Value)
}

func TestHeuristic_DisabledByOption(t *testing.T) {
	e := load(t, map[string]any{"heuristic": false})

	res, err := e.DissectFrame(dissecttest.UDP(40000, makeRTPPayload(0, 1, 2, 3, false, nil, nil)))
	require.NoError(t, err)
	assert.Equal(t, []string{"udp", "data"}, res.Protocols)
}

func TestPorts_ExactMatch(t *testing.T) {
	e := load(t, map[string]any{"ports": []any{30000}, "heuristic": false})

	res, err := e.DissectFrame(dissecttest.UDP(30000, makeRTPPayload(8, 1, 2, 3, false, nil, nil)))
	require.NoError(t, err)
	assert.Contains(t, res.Protocols, "rtp")
	assert.Empty(t, dissecttest.Find(res.Tree, "rtp").Probe)

	res, err = e.DissectFrame(dissecttest.UDP(30000, []byte{0x80, 0x00, 0x01}))
	require.NoError(t, err)
	require.Len(t, res.Malformed, 1)
	assert.Contains(t, res.Malformed[0], "rtp")
}

func TestDecodeAs(t *testing.T) {
	e := load(t, map[string]any{"heuristic": false})
	require.NoError(t, e.SetDecodeAs("udp.port", 16384, "rtp"))

	res, err := e.DissectFrame(dissecttest.UDP(16384, makeRTPPayload(18, 1, 2, 3, false, nil, nil)))
	require.NoError(t, err)
	assert.Contains(t, dissecttest.Find(res.Tree, "rtp").Text, "PT=ITU-T G.729")
}

func TestInit_BadOption(t *testing.T) {
	d := New()
	err := d.(dissector.Configurable).Init(map[string]any{"port": 1})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
