package transport

import (
	"fmt"

	"github.com/opd-ai/zrtpfilter"
)

// MediaPorts is the RTP and RTCP socket pair of one stream.
type MediaPorts struct {
	RTP  *UDPPort
	RTCP *UDPPort
}

// ListenMedia opens RTP and RTCP ports.
func ListenMedia(rtpAddr, rtcpAddr string) (*MediaPorts, error) {
	rtpPort, err := ListenUDP(rtpAddr)
	if err != nil {
		return nil, err
	}
	rtcpPort, err := ListenUDP(rtcpAddr)
	if err != nil {
		rtpPort.Close()
		return nil, err
	}
	return &MediaPorts{RTP: rtpPort, RTCP: rtcpPort}, nil
}

// Bind links the filter's network-side pads to the ports and feeds
// received datagrams into the filter's upstream chains. The session-side
// pads must be linked by the caller.
func (m *MediaPorts) Bind(f *zrtpfilter.Filter, learnRemote bool) error {
	f.LinkSendRTP(m.RTP)
	f.LinkSendRTCP(m.RTCP)

	if err := m.RTP.Serve(f.ChainRTPUp, learnRemote); err != nil {
		return fmt.Errorf("serve rtp: %w", err)
	}
	if err := m.RTCP.Serve(f.ChainRTCPUp, learnRemote); err != nil {
		return fmt.Errorf("serve rtcp: %w", err)
	}
	return nil
}

// Close closes both ports.
func (m *MediaPorts) Close() error {
	errRTP := m.RTP.Close()
	errRTCP := m.RTCP.Close()
	if errRTP != nil {
		return errRTP
	}
	return errRTCP
}
