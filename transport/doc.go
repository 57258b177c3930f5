// Package transport carries filter traffic over UDP.
//
// A UDPPort is both an output pad for the filter (Push writes a datagram
// to the remote address) and a source driving one of the filter's
// upstream chain functions. MediaPorts groups the RTP and RTCP ports of a
// stream and binds them to a filter:
//
//	ports, err := transport.ListenMedia("0.0.0.0:5004", "0.0.0.0:5005")
//	if err != nil {
//	    return err
//	}
//	f.LinkRecvRTP(session.RTP)
//	f.LinkRecvRTCP(session.RTCP)
//	if err := ports.Bind(f, true); err != nil {
//	    return err
//	}
//
// With learnRemote set the peer address is taken from the first datagram,
// which suits a receiver waiting for the caller.
package transport
