// Package zrtpfilter adds ZRTP key agreement and SRTP/SRTCP protection to
// an RTP media stream.
//
// A Filter sits between the network and an RTP session. Media and ZRTP
// arrive on the network side, ZRTP packets are routed to a ZRTP engine,
// and once the engine has negotiated keys every RTP and RTCP packet is
// protected on the way out and authenticated and decrypted on the way in.
// Before that, and after the engine leaves the secure state, packets pass
// through unchanged.
//
// # Getting Started
//
// Create a filter around an engine, link its four output pads and
// initialize it:
//
//	opts := zrtpfilter.NewOptions()
//	opts.Name = "audio"
//
//	f, err := zrtpfilter.New(engine, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	f.LinkRecvRTP(session.RTP)    // plain RTP to the session
//	f.LinkRecvRTCP(session.RTCP)  // plain RTCP to the session
//	f.LinkSendRTP(network.RTP)    // SRTP and ZRTP to the network
//	f.LinkSendRTCP(network.RTCP)  // SRTCP to the network
//
//	if err := f.Initialize(true); err != nil {
//	    log.Fatal(err)
//	}
//
// Then feed buffers into the four chain functions:
//
//	f.ChainRTPUp(buf)    // from the network RTP port
//	f.ChainRTCPUp(buf)   // from the network RTCP port
//	f.ChainRTPDown(buf)  // from the session, bound for the network
//	f.ChainRTCPDown(buf) // from the session, bound for the network
//
// The engine starts on the first RTP packet in either direction, or on
// the first ZRTP packet from the peer. Call Start to begin immediately.
// The transport subpackage binds a filter to a pair of UDP sockets.
//
// # Core Types
//
//   - [Filter]: routes ZRTP, applies SRTP, reports session events
//   - [Options]: configuration, loadable from TOML with [LoadOptions]
//   - [Pad]: destination of buffers leaving the filter
//   - [Observer]: receiver of status, SAS and security events
//   - [Clock]: timer source for the engine, injectable in tests
//
// # Session Events
//
// Register an Observer to follow the negotiation. Embed BaseObserver to
// implement only the events of interest:
//
//	type sasPrinter struct {
//	    zrtpfilter.BaseObserver
//	}
//
//	func (sasPrinter) OnSAS(sas string, verified bool) {
//	    fmt.Printf("compare SAS %q with the peer (verified: %v)\n", sas, verified)
//	}
//
//	f.AddObserver(sasPrinter{})
//
// OnStatus receives every informational, warning and error code the
// engine reports as well as per-packet warnings from the filter itself,
// such as SRTP authentication or replay failures. zrtp.Describe turns a
// code into text.
//
// # Multi-Stream Sessions
//
// Additional streams of a call can reuse the keys of the first one. Create
// the extra filter with Initialize(false) and link it to the master:
//
//	video.Initialize(false)
//	zrtpfilter.LinkMultiStream(audio, video)
//
// Once the master reaches the secure state the slave receives its
// multi-stream parameters and starts.
//
// # Configuration
//
// Options can be read from a TOML file on top of the defaults:
//
//	name          = "audio"
//	local_ssrc    = 305419896
//	mitm_mode     = false
//	cache_name    = "/var/lib/zrtp/audio.zid"
//	client_id     = "my-phone 1.0"
//	replay_window = 128
//
// Logger, Registerer and Clock can only be set in code. Without a
// Registerer each filter keeps a private Prometheus registry reachable
// through Filter.Gatherer.
//
// # Thread Safety
//
// All Filter methods are safe for concurrent use. The upstream and
// downstream chains may run on different goroutines. Observer methods run
// synchronously on the goroutine that produced the event and must not
// block.
package zrtpfilter
