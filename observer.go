package zrtpfilter

import "github.com/opd-ai/zrtpfilter/zrtp"

// Observer receives session events. Methods are called synchronously on
// the goroutine that produced the event, which may be a packet delivery
// goroutine or the engine timer, so they must not block.
type Observer interface {
	// OnStatus reports engine progress and per-packet warnings. Use
	// zrtp.Describe for a readable text.
	OnStatus(severity zrtp.Severity, subCode int)
	// OnSAS reports the short authentication string to compare with the
	// peer. It is not called when the engine produced no SAS.
	OnSAS(sas string, verified bool)
	// OnAlgorithm reports the negotiated cipher once secure.
	OnAlgorithm(cipher string, verified bool)
	OnSecurityOff()
	OnNegotiationFailed(severity zrtp.Severity, subCode int)
	// OnNotSupported reports that the peer does not speak ZRTP.
	OnNotSupported()
	OnAskEnrollment(info zrtp.InfoEnrollment)
	OnInformEnrollment(info zrtp.InfoEnrollment)
}

// BaseObserver implements Observer with no-ops. Embed it to handle only
// some events.
type BaseObserver struct{}

func (BaseObserver) OnStatus(zrtp.Severity, int)            {}
func (BaseObserver) OnSAS(string, bool)                     {}
func (BaseObserver) OnAlgorithm(string, bool)               {}
func (BaseObserver) OnSecurityOff()                         {}
func (BaseObserver) OnNegotiationFailed(zrtp.Severity, int) {}
func (BaseObserver) OnNotSupported()                        {}
func (BaseObserver) OnAskEnrollment(zrtp.InfoEnrollment)    {}
func (BaseObserver) OnInformEnrollment(zrtp.InfoEnrollment) {}

// AddObserver registers o for all future events.
func (f *Filter) AddObserver(o Observer) {
	if o == nil {
		return
	}
	f.obsMu.Lock()
	defer f.obsMu.Unlock()
	f.observers = append(f.observers, o)
}

func (f *Filter) notify(fn func(Observer)) {
	f.obsMu.RLock()
	observers := append([]Observer(nil), f.observers...)
	f.obsMu.RUnlock()

	for _, o := range observers {
		fn(o)
	}
}

func (f *Filter) emitStatus(severity zrtp.Severity, subCode int) {
	f.notify(func(o Observer) { o.OnStatus(severity, subCode) })
}
