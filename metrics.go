package zrtpfilter

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	mediaRTP  = "rtp"
	mediaRTCP = "rtcp"
)

type metrics struct {
	protected   *prometheus.CounterVec
	unprotected *prometheus.CounterVec
	failures    *prometheus.CounterVec

	zrtpReceived     *prometheus.CounterVec
	zrtpSent         *prometheus.CounterVec
	checksumFailures *prometheus.CounterVec

	stream string
}

func newMetrics(reg prometheus.Registerer, stream string) *metrics {
	m := &metrics{stream: stream}
	m.protected = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "zrtpfilter_protected_packets_total",
		Help: "Number of packets protected with SRTP or SRTCP.",
	}, "stream", "media")
	m.unprotected = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "zrtpfilter_unprotected_packets_total",
		Help: "Number of SRTP or SRTCP packets successfully unprotected.",
	}, "stream", "media")
	m.failures = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "zrtpfilter_transform_failures_total",
		Help: "Number of packets dropped because a transform failed.",
	}, "stream", "media", "reason")
	m.zrtpReceived = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "zrtpfilter_zrtp_received_total",
		Help: "Number of ZRTP packets handed to the engine.",
	}, "stream")
	m.zrtpSent = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "zrtpfilter_zrtp_sent_total",
		Help: "Number of ZRTP packets sent.",
	}, "stream")
	m.checksumFailures = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "zrtpfilter_zrtp_checksum_failures_total",
		Help: "Number of ZRTP packets dropped because of a checksum mismatch.",
	}, "stream")
	return m
}

// registerCounterVec registers a counter vector, reusing an identical
// collector when several filters share one registerer.
func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		// Unregistered collectors still count; they are just not exported.
	}
	return cv
}

func (m *metrics) incProtected(media string) {
	m.protected.WithLabelValues(m.stream, media).Inc()
}

func (m *metrics) incUnprotected(media string) {
	m.unprotected.WithLabelValues(m.stream, media).Inc()
}

func (m *metrics) incFailure(media, reason string) {
	m.failures.WithLabelValues(m.stream, media, reason).Inc()
}

func (m *metrics) incZRTPReceived() { m.zrtpReceived.WithLabelValues(m.stream).Inc() }

func (m *metrics) incZRTPSent() { m.zrtpSent.WithLabelValues(m.stream).Inc() }

func (m *metrics) incChecksumFailure() { m.checksumFailures.WithLabelValues(m.stream).Inc() }
