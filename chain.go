package zrtpfilter

import (
	"errors"
	"fmt"

	"github.com/opd-ai/zrtpfilter/srtp"
	"github.com/opd-ai/zrtpfilter/zrtp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// ChainRTPUp handles a buffer received from the network on the RTP port.
// ZRTP packets are consumed; RTP and SRTP continue to the session as plain
// RTP. A returned error means the buffer was dropped; the session is
// unaffected.
func (f *Filter) ChainRTPUp(buf []byte) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	if zrtp.IsZRTP(buf) {
		return f.handleZRTP(buf)
	}

	err := f.unprotectRTP(buf)
	f.lazyStart()
	return err
}

func (f *Filter) unprotectRTP(buf []byte) error {
	ctx, _ := f.recvContexts()
	if ctx == nil {
		return f.push(&f.recvRTP, buf)
	}

	plain, err := ctx.Unprotect(buf)
	if errors.Is(err, srtp.ErrNoContext) {
		return f.push(&f.recvRTP, buf)
	}
	if err != nil {
		code := srtp.ResultCode(err)
		f.lastUnprotectCode.Store(int32(code))
		f.metrics.incFailure(mediaRTP, failureReason(err))

		warning := zrtp.WarningSRTPauthError
		if code == srtp.ResultReplay {
			warning = zrtp.WarningSRTPreplayError
		}
		f.log("ChainRTPUp").WithFields(logrus.Fields{
			"result": code,
			"error":  err.Error(),
		}).Warn("Dropping SRTP packet")
		f.emitStatus(zrtp.Warning, warning)
		return fmt.Errorf("unprotect rtp: %w", err)
	}

	f.unprotectCount.Add(1)
	f.lastUnprotectCode.Store(0)
	f.metrics.incUnprotected(mediaRTP)
	return f.push(&f.recvRTP, plain)
}

// handleZRTP validates a ZRTP packet and hands its message to the engine.
// Invalid packets are dropped without an error; ZRTP is never forwarded.
func (f *Filter) handleZRTP(buf []byte) error {
	if !f.enabled.Load() {
		return nil
	}
	f.stateMu.Lock()
	ready := f.initialized && !f.closed
	f.stateMu.Unlock()
	if !ready {
		return nil
	}

	pkt, err := zrtp.Parse(buf)
	switch {
	case errors.Is(err, zrtp.ErrChecksum):
		f.metrics.incChecksumFailure()
		f.log("handleZRTP").WithField("length", len(buf)).Warn("ZRTP checksum mismatch, packet dropped")
		f.emitStatus(zrtp.Warning, zrtp.WarningCRCmismatch)
		return nil
	case err != nil:
		f.log("handleZRTP").WithError(err).Debug("Ignoring non-ZRTP packet")
		return nil
	}

	// The peer may send ZRTP before any media flows.
	f.lazyStart()

	f.peerSSRC.Store(pkt.SSRC)
	f.metrics.incZRTPReceived()
	f.engine.ProcessMessage(pkt.Message, pkt.SSRC, len(buf))
	return nil
}

// ChainRTCPUp handles a buffer received from the network on the RTCP port.
func (f *Filter) ChainRTCPUp(buf []byte) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}

	_, ctx := f.recvContexts()
	if ctx == nil {
		return f.push(&f.recvRTCP, buf)
	}

	plain, err := ctx.Unprotect(buf)
	if errors.Is(err, srtp.ErrNoContext) {
		return f.push(&f.recvRTCP, buf)
	}
	if err != nil {
		f.metrics.incFailure(mediaRTCP, failureReason(err))
		f.log("ChainRTCPUp").WithError(err).Warn("Dropping SRTCP packet")
		return fmt.Errorf("unprotect rtcp: %w", err)
	}

	f.metrics.incUnprotected(mediaRTCP)
	return f.push(&f.recvRTCP, plain)
}

// ChainRTPDown handles an RTP packet from the session bound for the
// network. The first packet teaches the filter its local SSRC unless one
// was configured.
func (f *Filter) ChainRTPDown(buf []byte) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}

	if f.localSSRC.Load() == 0 {
		var h rtp.Header
		if _, err := h.Unmarshal(buf); err == nil && h.SSRC != 0 {
			f.localSSRC.CompareAndSwap(0, h.SSRC)
		}
	}
	f.lazyStart()

	ctx, _ := f.sendContexts()
	if ctx == nil {
		return f.push(&f.sendRTP, buf)
	}

	protected, err := ctx.Protect(buf)
	if errors.Is(err, srtp.ErrNoContext) {
		return f.push(&f.sendRTP, buf)
	}
	if err != nil {
		f.metrics.incFailure(mediaRTP, failureReason(err))
		f.log("ChainRTPDown").WithError(err).Warn("Dropping RTP packet, protect failed")
		return fmt.Errorf("protect rtp: %w", err)
	}

	f.protectCount.Add(1)
	f.metrics.incProtected(mediaRTP)
	return f.push(&f.sendRTP, protected)
}

// ChainRTCPDown handles an RTCP packet from the session bound for the
// network.
func (f *Filter) ChainRTCPDown(buf []byte) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}

	_, ctx := f.sendContexts()
	if ctx == nil {
		return f.push(&f.sendRTCP, buf)
	}

	protected, err := ctx.Protect(buf)
	if errors.Is(err, srtp.ErrNoContext) {
		return f.push(&f.sendRTCP, buf)
	}
	if err != nil {
		f.metrics.incFailure(mediaRTCP, failureReason(err))
		f.log("ChainRTCPDown").WithError(err).Warn("Dropping RTCP packet, protect failed")
		return fmt.Errorf("protect rtcp: %w", err)
	}

	f.metrics.incProtected(mediaRTCP)
	return f.push(&f.sendRTCP, protected)
}

func (f *Filter) push(slot *Pad, buf []byte) error {
	p := f.pad(slot)
	if p == nil {
		return ErrPadNotLinked
	}
	if err := p.Push(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrPushFailed, err)
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, srtp.ErrReplay):
		return "replay"
	case errors.Is(err, srtp.ErrAuthFailed):
		return "auth"
	case errors.Is(err, srtp.ErrMalformed):
		return "malformed"
	default:
		return "other"
	}
}
