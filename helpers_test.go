package zrtpfilter

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/zrtpfilter/rtptest"
	"github.com/opd-ai/zrtpfilter/zrtp"
	"github.com/opd-ai/zrtpfilter/zrtp/zrtptest"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	testLocalSSRC = 0x11111111
	testPeerSSRC  = 0x22222222
)

// recordingPad stores every buffer pushed to it.
type recordingPad struct {
	mu   sync.Mutex
	bufs [][]byte
	err  error
}

func (p *recordingPad) Push(buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.bufs = append(p.bufs, append([]byte(nil), buf...))
	return nil
}

func (p *recordingPad) Buffers() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.bufs...)
}

func (p *recordingPad) Last() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bufs) == 0 {
		return nil
	}
	return p.bufs[len(p.bufs)-1]
}

// fakeClock hands out timers that fire only when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs the i-th timer's function as the runtime would, even when the
// timer was stopped after its function was already scheduled.
func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.f()
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type statusEvent struct {
	severity zrtp.Severity
	code     int
}

// recordingObserver stores every event.
type recordingObserver struct {
	mu           sync.Mutex
	statuses     []statusEvent
	sas          []string
	algorithms   []string
	securityOff  int
	failures     []statusEvent
	notSupported int
	asked        []zrtp.InfoEnrollment
	informed     []zrtp.InfoEnrollment
}

func (o *recordingObserver) OnStatus(severity zrtp.Severity, code int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, statusEvent{severity, code})
}

func (o *recordingObserver) OnSAS(sas string, verified bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sas = append(o.sas, sas)
}

func (o *recordingObserver) OnAlgorithm(cipher string, verified bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.algorithms = append(o.algorithms, cipher)
}

func (o *recordingObserver) OnSecurityOff() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.securityOff++
}

func (o *recordingObserver) OnNegotiationFailed(severity zrtp.Severity, code int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, statusEvent{severity, code})
}

func (o *recordingObserver) OnNotSupported() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notSupported++
}

func (o *recordingObserver) OnAskEnrollment(info zrtp.InfoEnrollment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.asked = append(o.asked, info)
}

func (o *recordingObserver) OnInformEnrollment(info zrtp.InfoEnrollment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.informed = append(o.informed, info)
}

// countStatus returns how often the given status was reported.
func (o *recordingObserver) countStatus(severity zrtp.Severity, code int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, s := range o.statuses {
		if s.severity == severity && s.code == code {
			n++
		}
	}
	return n
}

// testRig is a filter wired to recording pads, a fake clock and the
// scriptable engine.
type testRig struct {
	f        *Filter
	engine   *zrtptest.Engine
	clock    *fakeClock
	obs      *recordingObserver
	recvRTP  *recordingPad
	recvRTCP *recordingPad
	sendRTP  *recordingPad
	sendRTCP *recordingPad
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testOptions() *Options {
	opts := NewOptions()
	opts.CacheName = "test.zid"
	opts.LocalSSRC = testLocalSSRC
	opts.Logger = quietLogger()
	return opts
}

// newRig builds a linked but uninitialized filter.
func newRig(t *testing.T, opts *Options) *testRig {
	t.Helper()
	if opts == nil {
		opts = testOptions()
	}
	r := &testRig{
		engine:   zrtptest.New([]byte("multi-stream-params")),
		clock:    &fakeClock{now: time.Unix(0, 0)},
		obs:      &recordingObserver{},
		recvRTP:  &recordingPad{},
		recvRTCP: &recordingPad{},
		sendRTP:  &recordingPad{},
		sendRTCP: &recordingPad{},
	}
	opts.Clock = r.clock

	f, err := New(r.engine, opts)
	require.NoError(t, err)
	f.LinkRecvRTP(r.recvRTP)
	f.LinkRecvRTCP(r.recvRTCP)
	f.LinkSendRTP(r.sendRTP)
	f.LinkSendRTCP(r.sendRTCP)
	f.AddObserver(r.obs)
	r.f = f
	t.Cleanup(func() { f.Close() })
	return r
}

// newStartedRig builds an initialized, enabled filter.
func newStartedRig(t *testing.T) *testRig {
	t.Helper()
	r := newRig(t, nil)
	require.NoError(t, r.f.Initialize(true))
	return r
}

// receiveZRTP delivers a ZRTP packet from the peer so the filter learns
// the peer SSRC.
func (r *testRig) receiveZRTP(t *testing.T, ssrc uint32) {
	t.Helper()
	pkt, err := zrtp.Frame(1, ssrc, []byte("Hello   ........"))
	require.NoError(t, err)
	require.NoError(t, r.f.ChainRTPUp(pkt))
}

func newGenerator(t *testing.T, ssrc uint32) *rtptest.Generator {
	t.Helper()
	g, err := rtptest.NewGenerator(ssrc)
	require.NoError(t, err)
	return g
}

func nextRTP(t *testing.T, g *rtptest.Generator) []byte {
	t.Helper()
	pkt, err := g.NextRTP([]byte("1234567890-"))
	require.NoError(t, err)
	return pkt
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
