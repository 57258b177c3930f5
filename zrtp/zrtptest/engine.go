// Package zrtptest provides a scriptable zrtp.Engine for tests.
//
// The engine performs no key agreement. It records what the filter hands
// it and lets the test drive the callback surface the way a real engine
// would after a successful or failed negotiation.
package zrtptest

import (
	"sync"
	"time"

	"github.com/opd-ai/zrtpfilter/zrtp"
)

// Message is one ZRTP message delivered to the engine.
type Message struct {
	Body     []byte
	PeerSSRC uint32
	Length   int
}

// Engine is a fake zrtp.Engine. The zero value is ready to use.
type Engine struct {
	mu sync.Mutex

	// InitErr is returned from Initialize when set.
	InitErr error
	// StartMessage is sent through SendData when the engine starts.
	StartMessage []byte
	// MultiStreamAvailable is reported by IsMultiStreamAvailable.
	MultiStreamAvailable bool
	// Params is returned by MultiStreamParams.
	Params []byte

	cb          zrtp.Callbacks
	cfg         zrtp.Config
	initCount   int
	started     bool
	startCount  int
	stopCount   int
	timeouts    int
	messages    []Message
	multiStream bool
	slaveParams []byte
}

var _ zrtp.Engine = (*Engine)(nil)

// New returns an engine that offers multi-stream mode and reports params
// as its multi-stream parameter blob.
func New(params []byte) *Engine {
	return &Engine{MultiStreamAvailable: true, Params: params}
}

func (e *Engine) Initialize(cb zrtp.Callbacks, cfg zrtp.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.InitErr != nil {
		return e.InitErr
	}
	e.cb = cb
	e.cfg = cfg
	e.initCount++
	return nil
}

func (e *Engine) Start() {
	e.mu.Lock()
	e.started = true
	e.startCount++
	cb, msg := e.cb, e.StartMessage
	e.mu.Unlock()

	if cb != nil && msg != nil {
		cb.SynchEnter()
		ok := cb.SendData(msg)
		cb.SynchLeave()
		if !ok {
			cb.SendInfo(zrtp.Severe, zrtp.SevereCannotSend)
		}
	}
}

func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = false
	e.stopCount++
}

func (e *Engine) ProcessMessage(msg []byte, peerSSRC uint32, length int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, Message{
		Body:     append([]byte(nil), msg...),
		PeerSSRC: peerSSRC,
		Length:   length,
	})
}

func (e *Engine) ProcessTimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeouts++
}

func (e *Engine) SetMultiStreamParams(params []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multiStream = true
	e.slaveParams = append([]byte(nil), params...)
}

func (e *Engine) MultiStreamParams() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.Params...)
}

func (e *Engine) IsMultiStream() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.multiStream
}

func (e *Engine) IsMultiStreamAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.MultiStreamAvailable
}

// Callbacks returns the callback surface passed to Initialize.
func (e *Engine) Callbacks() zrtp.Callbacks {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cb
}

// Config returns the configuration passed to Initialize.
func (e *Engine) Config() zrtp.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// InitCount returns how often Initialize succeeded.
func (e *Engine) InitCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initCount
}

// Started reports whether Start was called more recently than Stop.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// StartCount returns how often Start was called.
func (e *Engine) StartCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startCount
}

// StopCount returns how often Stop was called.
func (e *Engine) StopCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopCount
}

// Timeouts returns how often ProcessTimeout was called.
func (e *Engine) Timeouts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeouts
}

// Messages returns a copy of the received messages.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.messages...)
}

// SlaveParams returns the parameters given to SetMultiStreamParams.
func (e *Engine) SlaveParams() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.slaveParams...)
}

// Secure drives the callbacks of a completed negotiation: both directions
// receive secrets, then the secure state is announced. It returns false
// if either direction rejected the secrets.
func (e *Engine) Secure(secrets *zrtp.SrtpSecrets, cipher string, verified bool) bool {
	cb := e.Callbacks()
	if cb == nil {
		return false
	}

	cb.SynchEnter()
	okSend := cb.SecretsReady(secrets, zrtp.ForSender)
	okRecv := cb.SecretsReady(secrets, zrtp.ForReceiver)
	cb.SynchLeave()
	if !okSend || !okRecv {
		cb.NegotiationFailed(zrtp.Severe, zrtp.SevereProtocolError)
		return false
	}

	cb.SecretsOn(cipher, secrets.SAS, verified)
	cb.SendInfo(zrtp.Info, zrtp.InfoSecureStateOn)
	return true
}

// GoClear drives the callbacks of leaving the secure state.
func (e *Engine) GoClear() {
	cb := e.Callbacks()
	if cb == nil {
		return
	}
	cb.SynchEnter()
	cb.SecretsOff(zrtp.ForSender | zrtp.ForReceiver)
	cb.SynchLeave()
	cb.SendInfo(zrtp.Info, zrtp.InfoSecureStateOff)
}

// Send transmits msg through the filter as the engine would.
func (e *Engine) Send(msg []byte) bool {
	cb := e.Callbacks()
	if cb == nil {
		return false
	}
	return cb.SendData(msg)
}

// ArmTimer asks the filter for a timeout after d.
func (e *Engine) ArmTimer(d time.Duration) bool {
	cb := e.Callbacks()
	if cb == nil {
		return false
	}
	return cb.ActivateTimer(d)
}
