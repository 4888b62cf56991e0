package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/dissecttest"
	"firestige.xyz/dissect/internal/plugin"
	"firestige.xyz/dissect/plugins/dissector/rtp"
	"firestige.xyz/dissect/plugins/dissector/sip"
)

const bye = "BYE sip:alice@10.0.0.1 SIP/2.0\r\n" +
	"Via: SIP/2.0/UDP 10.0.0.2:5060;branch=z9hG4bKnashds7\r\n" +
	"From: <sip:bob@example.com>;tag=a6c85cf\r\n" +
	"To: <sip:alice@example.com>;tag=1928301774\r\n" +
	"Call-ID: session-test@10.0.0.2\r\n" +
	"CSeq: 231 BYE\r\n" +
	"Content-Length: 0\r\n\r\n"

func rtpPayload() []byte {
	b := make([]byte, 12, 14)
	b[0] = 0x80
	binary.BigEndian.PutUint16(b[2:4], 7)
	binary.BigEndian.PutUint32(b[4:8], 160)
	binary.BigEndian.PutUint32(b[8:12], 0x01020304)
	return append(b, 0xAA, 0xBB)
}

func registry(t *testing.T) *plugin.Registry {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(plugin.Metadata{Name: "rtp"}, rtp.New))
	require.NoError(t, reg.Register(plugin.Metadata{Name: "sip"}, sip.New))
	return reg
}

func udpPacket(t *testing.T, src, dst uint16, payload []byte) []byte {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(src), DstPort: layers.UDPPort(dst)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: layers.EthernetTypeIPv4,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
	return append([]byte(nil), buf.Bytes()...)
}

func writePcap(t *testing.T, packets ...[]byte) string {
	path := filepath.Join(t.TempDir(), "calls.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i, p := range packets {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(p), Length: len(p)}
		require.NoError(t, w.WritePacket(ci, p))
	}
	return path
}

func TestNew_LoadsEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Dissectors.Enabled = []string{"sip"}

	s, err := New(cfg, registry(t))
	require.NoError(t, err)
	require.Len(t, s.Plugins(), 1)
	assert.Equal(t, "sip", s.Plugins()[0].Name())
	_, err = uuid.Parse(s.ID())
	assert.NoError(t, err)
}

func TestNew_AllByDefault(t *testing.T) {
	s, err := New(config.Default(), registry(t))
	require.NoError(t, err)

	var names []string
	for _, p := range s.Plugins() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"rtp", "sip"}, names)
}

func TestNew_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Dissectors.Enabled = []string{"h323"}
	_, err := New(cfg, registry(t))
	assert.ErrorIs(t, err, core.ErrPluginNotFound)

	cfg = config.Default()
	cfg.Dissectors.Options["rtp"] = map[string]any{"bogus": true}
	_, err = New(cfg, registry(t))
	assert.ErrorIs(t, err, core.ErrPluginInitFailed)

	cfg = config.Default()
	cfg.Engine.Heuristics["h323_udp"] = true
	_, err = New(cfg, registry(t))
	assert.Error(t, err)
}

func TestNew_AppliesSelections(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.DecodeAs = []config.DecodeAsConfig{{Table: "udp.port", Value: 7000, Dissector: "sip"}}
	cfg.Engine.Heuristics["rtp_udp"] = false

	s, err := New(cfg, registry(t))
	require.NoError(t, err)

	res, err := s.Engine().DissectFrame(dissecttest.UDP(7000, []byte(bye)))
	require.NoError(t, err)
	assert.Equal(t, []string{"udp", "sip"}, res.Protocols)

	res, err = s.Engine().DissectFrame(dissecttest.UDP(40000, rtpPayload()))
	require.NoError(t, err)
	assert.Equal(t, []string{"udp", "data"}, res.Protocols)
}

func TestRun(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.File = writePcap(t,
		udpPacket(t, 5060, 5060, []byte(bye)),
		udpPacket(t, 40000, 40002, rtpPayload()),
	)
	cfg.Output.Metrics.File = filepath.Join(t.TempDir(), "dissect.prom")

	s, err := New(cfg, registry(t))
	require.NoError(t, err)

	var out bytes.Buffer
	stats, err := s.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Delivered)
	assert.Equal(t, 2.0, testutil.ToFloat64(s.Metrics().FramesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().ProtocolFramesTotal.WithLabelValues("sip")))

	prom, err := os.ReadFile(cfg.Output.Metrics.File)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `dissect_frames_total{session="`+s.ID()+`"} 2`)

	text := out.String()
	assert.Contains(t, text, "Session Initiation Protocol (BYE)")
	assert.Contains(t, text, "[Protocols in frame: eth:ip:udp:sip]")
	assert.Contains(t, text, "Real-Time Transport Protocol, PT=ITU-T G.711 PCMU, SSRC=0x01020304, Seq=7, Time=160")
	assert.Contains(t, text, "[Protocols in frame: eth:ip:udp:rtp]")
}

func TestRun_YAMLAndPortFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Format = "yaml"
	cfg.Capture.Ports = []uint16{5060}
	cfg.Capture.File = writePcap(t,
		udpPacket(t, 5060, 5060, []byte(bye)),
		udpPacket(t, 40000, 40002, rtpPayload()),
	)

	s, err := New(cfg, registry(t))
	require.NoError(t, err)

	var out bytes.Buffer
	stats, err := s.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Read)
	assert.Equal(t, int64(1), stats.Delivered)
	assert.Contains(t, out.String(), "session: "+s.ID())
	assert.NotContains(t, out.String(), "Real-Time Transport Protocol")
}

func TestRun_MissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.File = filepath.Join(t.TempDir(), "missing.pcap")

	s, err := New(cfg, registry(t))
	require.NoError(t, err)
	_, err = s.Run(context.Background(), &bytes.Buffer{})
	assert.Error(t, err)
}
