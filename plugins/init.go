// Package plugins registers all built-in dissectors.
package plugins

import (
	"firestige.xyz/dissect/internal/plugin"
	"firestige.xyz/dissect/plugins/dissector/rtp"
	"firestige.xyz/dissect/plugins/dissector/sip"
	"firestige.xyz/dissect/plugins/dissector/testproto"
)

func init() {
	plugin.RegisterDissector(plugin.Metadata{
		Name:        "testproto",
		Description: "Example protocol exercising every field kind",
	}, testproto.New)

	plugin.RegisterDissector(plugin.Metadata{
		Name:        "rtp",
		Description: "RTP and RTCP, found by heuristic or fixed UDP ports",
	}, rtp.New)

	plugin.RegisterDissector(plugin.Metadata{
		Name:        "sip",
		Description: "SIP signalling with SDP bodies and Call-ID correlation",
	}, sip.New)
}
