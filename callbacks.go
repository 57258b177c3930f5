package zrtpfilter

import (
	"time"

	"github.com/opd-ai/zrtpfilter/zrtp"
	"github.com/sirupsen/logrus"
)

// engineCallbacks is the zrtp.Callbacks surface handed to the engine.
// It is kept apart from Filter so the callback methods do not leak into
// the filter's public API.
type engineCallbacks struct {
	f *Filter
}

var _ zrtp.Callbacks = (*engineCallbacks)(nil)

func (c *engineCallbacks) SendData(msg []byte) bool {
	f := c.f
	seq := uint16(f.zrtpSeq.Add(1) - 1)

	pkt, err := zrtp.Frame(seq, f.localSSRC.Load(), msg)
	if err != nil {
		f.log("SendData").WithError(err).Error("Cannot frame ZRTP message")
		return false
	}
	if err := f.push(&f.sendRTP, pkt); err != nil {
		f.log("SendData").WithError(err).Warn("Cannot send ZRTP packet")
		return false
	}
	f.metrics.incZRTPSent()
	return true
}

func (c *engineCallbacks) ActivateTimer(d time.Duration) bool {
	return c.f.activateTimer(d)
}

func (c *engineCallbacks) CancelTimer() bool {
	c.f.cancelTimer()
	return true
}

func (c *engineCallbacks) SendInfo(severity zrtp.Severity, subCode int) {
	c.f.log("SendInfo").WithFields(logrus.Fields{
		"severity": severity.String(),
		"code":     subCode,
	}).Debug(zrtp.Describe(severity, subCode))
	c.f.emitStatus(severity, subCode)
}

// SecretsReady builds SRTP and SRTCP contexts for each direction in part.
// Send contexts use the local SSRC, receive contexts the peer SSRC.
func (c *engineCallbacks) SecretsReady(secrets *zrtp.SrtpSecrets, part zrtp.EnableSecurity) bool {
	f := c.f
	if secrets == nil {
		return false
	}

	for _, dir := range []zrtp.EnableSecurity{zrtp.ForSender, zrtp.ForReceiver} {
		if part&dir == 0 {
			continue
		}

		ssrc := f.localSSRC.Load()
		direction := "sender"
		if dir == zrtp.ForReceiver {
			ssrc = f.peerSSRC.Load()
			direction = "receiver"
		}

		params, err := contextParams(secrets, keysFor(secrets, dir), ssrc, f.opts.ReplayWindow)
		if err != nil {
			f.log("SecretsReady").WithError(err).Error("Unusable SRTP secrets")
			return false
		}
		rtpCtx, rtcpCtx, err := newContextPair(params)
		if err != nil {
			f.log("SecretsReady").WithError(err).Error("Cannot create crypto contexts")
			return false
		}
		f.installContexts(dir, rtpCtx, rtcpCtx)

		f.log("SecretsReady").WithFields(logrus.Fields{
			"direction": direction,
			"ssrc":      ssrc,
			"role":      secrets.Role.String(),
			"tag_len":   params.TagLength,
		}).Info("SRTP/SRTCP activated")
	}
	return true
}

func (c *engineCallbacks) SecretsOff(part zrtp.EnableSecurity) {
	c.f.removeContexts(part)
	c.f.log("SecretsOff").WithField("part", int(part)).Info("SRTP/SRTCP deactivated")
	c.f.notify(func(o Observer) { o.OnSecurityOff() })
}

func (c *engineCallbacks) SecretsOn(cipher, sas string, verified bool) {
	c.f.log("SecretsOn").WithFields(logrus.Fields{
		"cipher":   cipher,
		"verified": verified,
	}).Info("Secure state entered")

	c.f.notify(func(o Observer) { o.OnAlgorithm(cipher, verified) })
	if sas != "" {
		c.f.notify(func(o Observer) { o.OnSAS(sas, verified) })
	}
}

func (c *engineCallbacks) HandleGoClear() {
	c.f.log("HandleGoClear").Debug("GoClear ignored")
}

func (c *engineCallbacks) NegotiationFailed(severity zrtp.Severity, subCode int) {
	c.f.log("NegotiationFailed").WithFields(logrus.Fields{
		"severity": severity.String(),
		"code":     subCode,
	}).Warn(zrtp.Describe(severity, subCode))
	c.f.notify(func(o Observer) { o.OnNegotiationFailed(severity, subCode) })
}

func (c *engineCallbacks) NotSupportedByOther() {
	c.f.log("NotSupportedByOther").Info("Peer does not support ZRTP")
	c.f.notify(func(o Observer) { o.OnNotSupported() })
}

func (c *engineCallbacks) SynchEnter() { c.f.engineMu.Lock() }

func (c *engineCallbacks) SynchLeave() { c.f.engineMu.Unlock() }

func (c *engineCallbacks) AskEnrollment(info zrtp.InfoEnrollment) {
	c.f.notify(func(o Observer) { o.OnAskEnrollment(info) })
}

func (c *engineCallbacks) InformEnrollment(info zrtp.InfoEnrollment) {
	c.f.notify(func(o Observer) { o.OnInformEnrollment(info) })
}

// SAS signatures are not supported.
func (c *engineCallbacks) SignSAS(sas []byte) {}

func (c *engineCallbacks) CheckSASSignature(sas []byte) bool { return false }
