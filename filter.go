package zrtpfilter

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/zrtpfilter/srtp"
	"github.com/opd-ai/zrtpfilter/zrtp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Pad receives buffers leaving the filter.
type Pad interface {
	Push(buf []byte) error
}

// PadFunc adapts a function to the Pad interface.
type PadFunc func(buf []byte) error

// Push calls f(buf).
func (f PadFunc) Push(buf []byte) error { return f(buf) }

// Stats is a snapshot of the transform counters.
type Stats struct {
	Protected   uint64
	Unprotected uint64
	// LastUnprotectError is 0 after a successful unprotect, otherwise the
	// result code of the last failure (-1 authentication, -2 replay).
	LastUnprotectError int
}

// Filter sits between a packet transport and an RTP session. It routes
// ZRTP packets to the engine and applies SRTP/SRTCP once the engine has
// delivered keys.
type Filter struct {
	name     string
	engine   zrtp.Engine
	opts     Options
	logger   *logrus.Logger
	clock    Clock
	metrics  *metrics
	registry *prometheus.Registry

	padMu    sync.RWMutex
	recvRTP  Pad
	recvRTCP Pad
	sendRTP  Pad
	sendRTCP Pad

	// lifecycleMu serializes Start and Stop including the engine calls.
	lifecycleMu sync.Mutex

	stateMu     sync.Mutex
	initialized bool
	closed      bool
	started     atomic.Bool
	enabled     atomic.Bool

	gotMultiParam atomic.Bool

	localSSRC atomic.Uint32
	peerSSRC  atomic.Uint32
	zrtpSeq   atomic.Uint32

	// engineMu is held between SynchEnter and SynchLeave.
	engineMu sync.Mutex

	ctxMu     sync.RWMutex
	srtpSend  *srtp.CryptoContext
	srtpRecv  *srtp.CryptoContext
	srtcpSend *srtp.CryptoContextCtrl
	srtcpRecv *srtp.CryptoContextCtrl

	timerMu  sync.Mutex
	timer    Timer
	timerGen uint64

	obsMu     sync.RWMutex
	observers []Observer

	protectCount      atomic.Uint64
	unprotectCount    atomic.Uint64
	lastUnprotectCode atomic.Int32

	callbacks *engineCallbacks
}

// New creates a filter driving engine. A nil options value selects
// NewOptions().
func New(engine zrtp.Engine, options *Options) (*Filter, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if options == nil {
		options = NewOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	f := &Filter{
		name:   options.Name,
		engine: engine,
		opts:   *options,
		logger: options.Logger,
		clock:  options.Clock,
	}
	if f.logger == nil {
		f.logger = logrus.StandardLogger()
	}
	if f.clock == nil {
		f.clock = RealClock{}
	}

	reg := options.Registerer
	if reg == nil {
		f.registry = prometheus.NewRegistry()
		reg = f.registry
	}
	f.metrics = newMetrics(reg, f.name)
	f.callbacks = &engineCallbacks{f: f}

	if options.LocalSSRC != 0 {
		f.localSSRC.Store(options.LocalSSRC)
	}

	// Random initial ZRTP sequence number.
	var seq [2]byte
	if _, err := rand.Read(seq[:]); err != nil {
		return nil, fmt.Errorf("generate ZRTP sequence number: %w", err)
	}
	f.zrtpSeq.Store(uint32(binary.BigEndian.Uint16(seq[:])))

	f.log("New").WithFields(logrus.Fields{
		"local_ssrc": options.LocalSSRC,
		"mitm_mode":  options.MitmMode,
	}).Debug("Filter created")

	return f, nil
}

func (f *Filter) log(function string) *logrus.Entry {
	return f.logger.WithFields(logrus.Fields{
		"function": function,
		"stream":   f.name,
	})
}

// LinkRecvRTP sets the pad receiving plain RTP for the session.
func (f *Filter) LinkRecvRTP(p Pad) { f.link(&f.recvRTP, p) }

// LinkRecvRTCP sets the pad receiving plain RTCP for the session.
func (f *Filter) LinkRecvRTCP(p Pad) { f.link(&f.recvRTCP, p) }

// LinkSendRTP sets the pad receiving SRTP and ZRTP for the network.
func (f *Filter) LinkSendRTP(p Pad) { f.link(&f.sendRTP, p) }

// LinkSendRTCP sets the pad receiving SRTCP for the network.
func (f *Filter) LinkSendRTCP(p Pad) { f.link(&f.sendRTCP, p) }

func (f *Filter) link(slot *Pad, p Pad) {
	f.padMu.Lock()
	defer f.padMu.Unlock()
	*slot = p
}

func (f *Filter) pad(slot *Pad) Pad {
	f.padMu.RLock()
	defer f.padMu.RUnlock()
	return *slot
}

// Initialize hands the callbacks, client id, cache name and MitM mode to
// the engine. It may be called once, after all pads are linked. With
// autoEnable false the filter stays passive until SetEnabled(true), which
// is how a multi-stream slave is set up.
func (f *Filter) Initialize(autoEnable bool) error {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.initialized {
		return ErrAlreadyInitialized
	}
	for name, slot := range map[string]*Pad{
		"recv_rtp":  &f.recvRTP,
		"recv_rtcp": &f.recvRTCP,
		"send_rtp":  &f.sendRTP,
		"send_rtcp": &f.sendRTCP,
	} {
		if f.pad(slot) == nil {
			return fmt.Errorf("%w: %s", ErrPadNotLinked, name)
		}
	}

	cfg := zrtp.Config{
		ClientID:  f.opts.paddedClientID(),
		CacheName: f.opts.CacheName,
		MitmMode:  f.opts.MitmMode,
	}
	if err := f.engine.Initialize(f.callbacks, cfg); err != nil {
		f.log("Initialize").WithError(err).Error("ZRTP engine initialization failed")
		return fmt.Errorf("initialize ZRTP engine: %w", err)
	}

	f.initialized = true
	f.enabled.Store(autoEnable)

	f.log("Initialize").WithFields(logrus.Fields{
		"cache_name":  cfg.CacheName,
		"auto_enable": autoEnable,
	}).Info("ZRTP engine initialized")
	return nil
}

// Start starts the engine. Starting a started filter is a no-op. Start and
// Stop must not be called on the same filter from inside an engine
// callback or observer that runs during Start or Stop.
func (f *Filter) Start() error {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	f.stateMu.Lock()
	if f.closed {
		f.stateMu.Unlock()
		return ErrClosed
	}
	if !f.initialized {
		f.stateMu.Unlock()
		return ErrNotInitialized
	}
	if f.started.Load() {
		f.stateMu.Unlock()
		return nil
	}
	f.started.Store(true)
	f.stateMu.Unlock()

	f.log("Start").Info("Starting ZRTP engine")
	f.engine.Start()
	return nil
}

// Stop cancels the engine timer and stops the engine. The filter is
// disabled so media does not restart it; call SetEnabled and Start to
// resume.
func (f *Filter) Stop() error {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	f.stateMu.Lock()
	if !f.started.Load() {
		f.stateMu.Unlock()
		return nil
	}
	f.started.Store(false)
	f.enabled.Store(false)
	f.stateMu.Unlock()

	f.cancelTimer()
	f.engine.Stop()
	f.log("Stop").Info("ZRTP engine stopped")
	return nil
}

// Close stops the filter and destroys all crypto contexts. Afterwards
// every buffer is passed through unchanged and the filter cannot be
// started again.
func (f *Filter) Close() error {
	if err := f.Stop(); err != nil {
		return err
	}

	f.stateMu.Lock()
	f.closed = true
	f.stateMu.Unlock()

	f.removeContexts(zrtp.ForSender | zrtp.ForReceiver)
	return nil
}

// lazyStart starts the engine on first traffic when enabled.
func (f *Filter) lazyStart() {
	if f.started.Load() || !f.enabled.Load() {
		return
	}
	if err := f.Start(); err != nil {
		f.log("lazyStart").WithError(err).Debug("Engine not started")
	}
}

// Name returns the stream label.
func (f *Filter) Name() string { return f.name }

// Started reports whether the engine is running.
func (f *Filter) Started() bool { return f.started.Load() }

// Enabled reports whether ZRTP processing is enabled.
func (f *Filter) Enabled() bool { return f.enabled.Load() }

// SetEnabled switches ZRTP processing on or off. A disabled filter drops
// ZRTP packets and does not start the engine on traffic; installed crypto
// contexts stay active.
func (f *Filter) SetEnabled(enabled bool) {
	f.enabled.Store(enabled)
	f.log("SetEnabled").WithField("enabled", enabled).Debug("ZRTP processing toggled")
}

// LocalSSRC returns the SSRC used for outgoing ZRTP and SRTP.
func (f *Filter) LocalSSRC() uint32 { return f.localSSRC.Load() }

// SetLocalSSRC overrides the local SSRC.
func (f *Filter) SetLocalSSRC(ssrc uint32) error {
	if ssrc == 0 {
		return ErrInvalidSSRC
	}
	f.localSSRC.Store(ssrc)
	return nil
}

// PeerSSRC returns the SSRC of the last ZRTP packet received.
func (f *Filter) PeerSSRC() uint32 { return f.peerSSRC.Load() }

// MitmMode reports whether trusted MitM mode was configured.
func (f *Filter) MitmMode() bool { return f.opts.MitmMode }

// CacheName returns the retained secrets cache name.
func (f *Filter) CacheName() string { return f.opts.CacheName }

// Stats returns the transform counters.
func (f *Filter) Stats() Stats {
	return Stats{
		Protected:          f.protectCount.Load(),
		Unprotected:        f.unprotectCount.Load(),
		LastUnprotectError: int(f.lastUnprotectCode.Load()),
	}
}

// Gatherer returns the private metrics registry, or nil when metrics are
// registered on Options.Registerer.
func (f *Filter) Gatherer() prometheus.Gatherer {
	if f.registry == nil {
		return nil
	}
	return f.registry
}

// Secure reports whether send and receive SRTP contexts are installed.
func (f *Filter) Secure() (sender, receiver bool) {
	f.ctxMu.RLock()
	defer f.ctxMu.RUnlock()
	return f.srtpSend != nil, f.srtpRecv != nil
}

// MultiStreamParams returns the engine's multi-stream parameters. Once a
// non-empty blob was handed out the filter acts as master and refuses
// SetMultiStreamParams.
func (f *Filter) MultiStreamParams() []byte {
	params := f.engine.MultiStreamParams()
	if len(params) > 0 {
		f.gotMultiParam.Store(true)
	}
	return params
}

// SetMultiStreamParams configures this filter as a multi-stream slave
// using parameters read from the master.
func (f *Filter) SetMultiStreamParams(params []byte) error {
	if f.gotMultiParam.Load() {
		f.log("SetMultiStreamParams").Error("Cannot set multi-stream parameters on master stream")
		return ErrMasterStream
	}
	if len(params) == 0 {
		return ErrNoMultiStreamParams
	}

	f.stateMu.Lock()
	initialized := f.initialized
	f.stateMu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}

	f.engine.SetMultiStreamParams(params)
	f.log("SetMultiStreamParams").WithField("length", len(params)).Debug("Multi-stream parameters set")
	return nil
}

// IsMultiStream reports whether the engine runs in multi-stream mode.
func (f *Filter) IsMultiStream() bool { return f.engine.IsMultiStream() }

// IsMultiStreamAvailable reports whether the peer supports multi-stream.
func (f *Filter) IsMultiStreamAvailable() bool { return f.engine.IsMultiStreamAvailable() }
