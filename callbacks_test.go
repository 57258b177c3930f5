package zrtpfilter

import (
	"bytes"
	"testing"
	"time"

	"github.com/opd-ai/zrtpfilter/srtp"
	"github.com/opd-ai/zrtpfilter/zrtp"
	"github.com/opd-ai/zrtpfilter/zrtp/zrtptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peerContexts builds the contexts a peer would use with key and salt:
// AES-CM-128 with HMAC-SHA1-80.
func peerContexts(t *testing.T, ssrc uint32, key, salt []byte) (*srtp.CryptoContext, *srtp.CryptoContextCtrl) {
	t.Helper()
	p := srtp.Params{
		SSRC:          ssrc,
		Cipher:        srtp.CipherAESCM,
		Auth:          srtp.AuthHMACSHA1,
		MasterKey:     key,
		MasterSalt:    salt,
		EncKeyLength:  16,
		AuthKeyLength: srtp.SHA1AuthKeyLength,
		SaltLength:    14,
		TagLength:     10,
	}
	rtpCtx, err := srtp.NewCryptoContext(p)
	require.NoError(t, err)
	rtcpCtx, err := srtp.NewCryptoContextCtrl(p)
	require.NoError(t, err)
	t.Cleanup(func() {
		rtpCtx.Close()
		rtcpCtx.Close()
	})
	return rtpCtx, rtcpCtx
}

// secureRig returns a filter in the secure state as initiator, with the
// peer SSRC learned from a ZRTP packet.
func secureRig(t *testing.T) *testRig {
	t.Helper()
	r := newStartedRig(t)
	r.receiveZRTP(t, testPeerSSRC)
	require.True(t, r.engine.Secure(zrtptest.Secrets(zrtp.Initiator, "abcd"), "AES-CM-128", false))
	return r
}

func TestSecretsReadyProtectsOutgoingRTP(t *testing.T) {
	r := secureRig(t)
	sender, receiver := r.f.Secure()
	assert.True(t, sender)
	assert.True(t, receiver)

	g := newGenerator(t, testLocalSSRC)
	plain := nextRTP(t, g)
	require.NoError(t, r.f.ChainRTPDown(plain))

	protected := r.sendRTP.Last()
	require.Len(t, protected, len(plain)+10)
	assert.Equal(t, plain[:12], protected[:12])
	assert.False(t, bytes.Equal(plain[12:], protected[12:len(plain)]))

	// The peer receives with the initiator keys.
	peerRecv, _ := peerContexts(t, testLocalSSRC, zrtptest.InitiatorKey, zrtptest.InitiatorSalt)
	got, err := peerRecv.Unprotect(protected)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
	assert.Equal(t, uint64(1), r.f.Stats().Protected)
}

func TestSecretsReadyUnprotectsIncomingRTP(t *testing.T) {
	r := secureRig(t)

	peerSend, _ := peerContexts(t, testPeerSSRC, zrtptest.ResponderKey, zrtptest.ResponderSalt)
	g := newGenerator(t, testPeerSSRC)
	plain := nextRTP(t, g)
	protected, err := peerSend.Protect(plain)
	require.NoError(t, err)

	require.NoError(t, r.f.ChainRTPUp(protected))
	assert.Equal(t, plain, r.recvRTP.Last())
	stats := r.f.Stats()
	assert.Equal(t, uint64(1), stats.Unprotected)
	assert.Equal(t, 0, stats.LastUnprotectError)
}

func TestResponderUsesResponderKeysForSending(t *testing.T) {
	r := newStartedRig(t)
	r.receiveZRTP(t, testPeerSSRC)
	require.True(t, r.engine.Secure(zrtptest.Secrets(zrtp.Responder, ""), "AES-CM-128", true))

	g := newGenerator(t, testLocalSSRC)
	plain := nextRTP(t, g)
	require.NoError(t, r.f.ChainRTPDown(plain))

	peerRecv, _ := peerContexts(t, testLocalSSRC, zrtptest.ResponderKey, zrtptest.ResponderSalt)
	got, err := peerRecv.Unprotect(r.sendRTP.Last())
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestSecretsReadyProtectsRTCP(t *testing.T) {
	r := secureRig(t)
	g := newGenerator(t, testLocalSSRC)
	rr, err := g.ReceiverReport()
	require.NoError(t, err)

	require.NoError(t, r.f.ChainRTCPDown(rr))
	protected := r.sendRTCP.Last()
	require.Len(t, protected, len(rr)+4+10)

	_, peerRecv := peerContexts(t, testLocalSSRC, zrtptest.InitiatorKey, zrtptest.InitiatorSalt)
	got, err := peerRecv.Unprotect(protected)
	require.NoError(t, err)
	assert.Equal(t, rr, got)

	// Incoming SRTCP from the peer.
	_, peerSend := peerContexts(t, testPeerSSRC, zrtptest.ResponderKey, zrtptest.ResponderSalt)
	peerGen := newGenerator(t, testPeerSSRC)
	bye, err := peerGen.Goodbye("CCCCCC")
	require.NoError(t, err)
	sealed, err := peerSend.Protect(bye)
	require.NoError(t, err)
	require.NoError(t, r.f.ChainRTCPUp(sealed))
	assert.Equal(t, bye, r.recvRTCP.Last())
}

func TestSecureStateEvents(t *testing.T) {
	r := secureRig(t)

	assert.Equal(t, []string{"AES-CM-128"}, r.obs.algorithms)
	assert.Equal(t, []string{"abcd"}, r.obs.sas)
	assert.Equal(t, 1, r.obs.countStatus(zrtp.Info, zrtp.InfoSecureStateOn))
}

func TestEmptySASIsNotReported(t *testing.T) {
	r := newStartedRig(t)
	require.True(t, r.engine.Secure(zrtptest.Secrets(zrtp.Initiator, ""), "AES-CM-128", true))
	assert.Equal(t, []string{"AES-CM-128"}, r.obs.algorithms)
	assert.Empty(t, r.obs.sas)
}

func TestUnprotectAuthFailure(t *testing.T) {
	r := secureRig(t)

	peerSend, _ := peerContexts(t, testPeerSSRC, zrtptest.ResponderKey, zrtptest.ResponderSalt)
	g := newGenerator(t, testPeerSSRC)
	protected, err := peerSend.Protect(nextRTP(t, g))
	require.NoError(t, err)
	protected[len(protected)-1] ^= 0x01

	err = r.f.ChainRTPUp(protected)
	assert.ErrorIs(t, err, srtp.ErrAuthFailed)
	assert.Empty(t, r.recvRTP.Buffers())
	assert.Equal(t, srtp.ResultAuthFailed, r.f.Stats().LastUnprotectError)
	assert.Equal(t, 1, r.obs.countStatus(zrtp.Warning, zrtp.WarningSRTPauthError))
	assert.Equal(t, 1.0, counterValue(t, r.f.metrics.failures.WithLabelValues(r.f.Name(), mediaRTP, "auth")))
}

func TestUnprotectReplay(t *testing.T) {
	r := secureRig(t)

	peerSend, _ := peerContexts(t, testPeerSSRC, zrtptest.ResponderKey, zrtptest.ResponderSalt)
	g := newGenerator(t, testPeerSSRC)
	protected, err := peerSend.Protect(nextRTP(t, g))
	require.NoError(t, err)

	require.NoError(t, r.f.ChainRTPUp(protected))
	err = r.f.ChainRTPUp(protected)
	assert.ErrorIs(t, err, srtp.ErrReplay)
	assert.Len(t, r.recvRTP.Buffers(), 1)
	assert.Equal(t, srtp.ResultReplay, r.f.Stats().LastUnprotectError)
	assert.Equal(t, 1, r.obs.countStatus(zrtp.Warning, zrtp.WarningSRTPreplayError))

	// A good packet clears the error code.
	protected, err = peerSend.Protect(nextRTP(t, g))
	require.NoError(t, err)
	require.NoError(t, r.f.ChainRTPUp(protected))
	assert.Equal(t, 0, r.f.Stats().LastUnprotectError)
}

func TestSecretsOffRestoresPassThrough(t *testing.T) {
	r := secureRig(t)
	r.engine.GoClear()

	assert.Equal(t, 1, r.obs.securityOff)
	assert.Equal(t, 1, r.obs.countStatus(zrtp.Info, zrtp.InfoSecureStateOff))
	sender, receiver := r.f.Secure()
	assert.False(t, sender)
	assert.False(t, receiver)

	g := newGenerator(t, testLocalSSRC)
	plain := nextRTP(t, g)
	require.NoError(t, r.f.ChainRTPDown(plain))
	assert.Equal(t, plain, r.sendRTP.Last())
}

func TestSecretsOffOneDirection(t *testing.T) {
	r := secureRig(t)
	cb := r.engine.Callbacks()
	cb.SecretsOff(zrtp.ForSender)

	sender, receiver := r.f.Secure()
	assert.False(t, sender)
	assert.True(t, receiver)
	assert.Equal(t, 1, r.obs.securityOff)
}

func TestSecretsOffReceiverRestoresIncomingPassThrough(t *testing.T) {
	r := secureRig(t)
	cb := r.engine.Callbacks()
	cb.SecretsOff(zrtp.ForReceiver)

	sender, receiver := r.f.Secure()
	assert.True(t, sender)
	assert.False(t, receiver)
	assert.Equal(t, 1, r.obs.securityOff)

	// Incoming RTP and RTCP reach the session byte for byte.
	pg := newGenerator(t, testPeerSSRC)
	rtpIn := nextRTP(t, pg)
	require.NoError(t, r.f.ChainRTPUp(rtpIn))
	assert.Equal(t, rtpIn, r.recvRTP.Last())

	rtcpIn, err := pg.ReceiverReport()
	require.NoError(t, err)
	require.NoError(t, r.f.ChainRTCPUp(rtcpIn))
	assert.Equal(t, rtcpIn, r.recvRTCP.Last())
	assert.Zero(t, r.f.Stats().Unprotected)

	// The send direction keeps protecting.
	g := newGenerator(t, testLocalSSRC)
	plain := nextRTP(t, g)
	require.NoError(t, r.f.ChainRTPDown(plain))
	peerRecv, _ := peerContexts(t, testLocalSSRC, zrtptest.InitiatorKey, zrtptest.InitiatorSalt)
	got, err := peerRecv.Unprotect(r.sendRTP.Last())
	require.NoError(t, err)
	assert.Equal(t, plain, got)
	assert.Equal(t, 1, r.obs.securityOff)
}

func TestSecretsReadySkeinRoundTrip(t *testing.T) {
	r := newStartedRig(t)
	r.receiveZRTP(t, testPeerSSRC)
	secrets := zrtptest.Secrets(zrtp.Initiator, "abcd")
	secrets.AuthAlgorithm = zrtp.Skein
	secrets.SrtpAuthTagLen = 32
	require.True(t, r.engine.Secure(secrets, "AES-CM-128/SK32", false))
	assert.Empty(t, r.obs.failures)

	skeinPeer := func(ssrc uint32, key, salt []byte) *srtp.CryptoContext {
		ctx, err := srtp.NewCryptoContext(srtp.Params{
			SSRC:          ssrc,
			Cipher:        srtp.CipherAESCM,
			Auth:          srtp.AuthSkein,
			MasterKey:     key,
			MasterSalt:    salt,
			EncKeyLength:  16,
			AuthKeyLength: srtp.SkeinAuthKeyLength,
			SaltLength:    14,
			TagLength:     4,
		})
		require.NoError(t, err)
		t.Cleanup(func() { ctx.Close() })
		return ctx
	}

	// Outgoing media carries a 32 bit Skein tag the peer can verify.
	g := newGenerator(t, testLocalSSRC)
	plain := nextRTP(t, g)
	require.NoError(t, r.f.ChainRTPDown(plain))
	protected := r.sendRTP.Last()
	require.Len(t, protected, len(plain)+4)
	got, err := skeinPeer(testLocalSSRC, zrtptest.InitiatorKey, zrtptest.InitiatorSalt).Unprotect(protected)
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	// Incoming media protected by the peer is accepted.
	peerSend := skeinPeer(testPeerSSRC, zrtptest.ResponderKey, zrtptest.ResponderSalt)
	pg := newGenerator(t, testPeerSSRC)
	incoming := nextRTP(t, pg)
	sealed, err := peerSend.Protect(incoming)
	require.NoError(t, err)
	require.NoError(t, r.f.ChainRTPUp(sealed))
	assert.Equal(t, incoming, r.recvRTP.Last())
	assert.Equal(t, 0, r.f.Stats().LastUnprotectError)
}

func TestSecretsReadyRejectsShortKeyMaterial(t *testing.T) {
	r := newStartedRig(t)
	secrets := zrtptest.Secrets(zrtp.Initiator, "abcd")
	secrets.InitKeyLen = 256

	cb := r.engine.Callbacks()
	assert.False(t, cb.SecretsReady(secrets, zrtp.ForSender))
	assert.False(t, cb.SecretsReady(nil, zrtp.ForSender))
}

func TestSecretsReadyTwofish(t *testing.T) {
	r := newStartedRig(t)
	secrets := zrtptest.Secrets(zrtp.Initiator, "abcd")
	secrets.SymEncAlgorithm = zrtp.TwoFish
	require.True(t, r.engine.Secure(secrets, "2FS-128", false))

	g := newGenerator(t, testLocalSSRC)
	plain := nextRTP(t, g)
	require.NoError(t, r.f.ChainRTPDown(plain))

	peer, err := srtp.NewCryptoContext(srtp.Params{
		SSRC:          testLocalSSRC,
		Cipher:        srtp.CipherTwofishCM,
		Auth:          srtp.AuthHMACSHA1,
		MasterKey:     zrtptest.InitiatorKey,
		MasterSalt:    zrtptest.InitiatorSalt,
		EncKeyLength:  16,
		AuthKeyLength: srtp.SHA1AuthKeyLength,
		SaltLength:    14,
		TagLength:     10,
	})
	require.NoError(t, err)
	got, err := peer.Unprotect(r.sendRTP.Last())
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestSendDataFramesMessages(t *testing.T) {
	r := newStartedRig(t)
	cb := r.engine.Callbacks()

	require.True(t, cb.SendData([]byte("Hello   ........")))
	require.True(t, cb.SendData([]byte("HelloACK")))

	bufs := r.sendRTP.Buffers()
	require.Len(t, bufs, 2)
	first, err := zrtp.Parse(bufs[0])
	require.NoError(t, err)
	second, err := zrtp.Parse(bufs[1])
	require.NoError(t, err)

	assert.Equal(t, uint32(testLocalSSRC), first.SSRC)
	assert.Equal(t, []byte("HelloACK"), second.Message)
	assert.Equal(t, first.Sequence+1, second.Sequence)
	assert.Equal(t, 2.0, counterValue(t, r.f.metrics.zrtpSent.WithLabelValues(r.f.Name())))
}

func TestSendDataRejectsOversizedMessage(t *testing.T) {
	r := newStartedRig(t)
	cb := r.engine.Callbacks()

	assert.False(t, cb.SendData(make([]byte, zrtp.MaxPacketSize)))
	assert.Empty(t, r.sendRTP.Buffers())
}

func TestEnrollmentAndFailureEvents(t *testing.T) {
	r := newStartedRig(t)
	cb := r.engine.Callbacks()

	cb.AskEnrollment(zrtp.EnrollmentRequest)
	cb.InformEnrollment(zrtp.EnrollmentOk)
	cb.NotSupportedByOther()
	cb.NegotiationFailed(zrtp.ZrtpError, -zrtp.HelloCompMismatch)
	cb.HandleGoClear()
	cb.SignSAS([]byte("abcd"))

	assert.Equal(t, []zrtp.InfoEnrollment{zrtp.EnrollmentRequest}, r.obs.asked)
	assert.Equal(t, []zrtp.InfoEnrollment{zrtp.EnrollmentOk}, r.obs.informed)
	assert.Equal(t, 1, r.obs.notSupported)
	require.Len(t, r.obs.failures, 1)
	assert.False(t, cb.CheckSASSignature([]byte("abcd")))
}

func TestTimerDeliversTimeout(t *testing.T) {
	r := newStartedRig(t)
	require.NoError(t, r.f.Start())

	require.True(t, r.engine.ArmTimer(150*time.Millisecond))
	require.Equal(t, 1, r.clock.count())
	assert.Equal(t, 150*time.Millisecond, r.clock.timers[0].d)

	r.clock.fire(0)
	assert.Equal(t, 1, r.engine.Timeouts())

	// A fired timer does not fire twice.
	r.clock.fire(0)
	assert.Equal(t, 1, r.engine.Timeouts())
}

func TestTimerCancel(t *testing.T) {
	r := newStartedRig(t)
	require.NoError(t, r.f.Start())

	require.True(t, r.engine.ArmTimer(time.Second))
	assert.True(t, r.engine.Callbacks().CancelTimer())
	assert.True(t, r.clock.timers[0].stopped)

	r.clock.fire(0)
	assert.Zero(t, r.engine.Timeouts())
}

func TestTimerReplacedByNewerOne(t *testing.T) {
	r := newStartedRig(t)
	require.NoError(t, r.f.Start())

	require.True(t, r.engine.ArmTimer(time.Second))
	require.True(t, r.engine.ArmTimer(2*time.Second))
	assert.True(t, r.clock.timers[0].stopped)

	r.clock.fire(0)
	assert.Zero(t, r.engine.Timeouts())
	r.clock.fire(1)
	assert.Equal(t, 1, r.engine.Timeouts())
}

func TestTimerIgnoredAfterStop(t *testing.T) {
	r := newStartedRig(t)
	require.NoError(t, r.f.Start())
	require.True(t, r.engine.ArmTimer(time.Second))

	require.NoError(t, r.f.Stop())
	r.clock.fire(0)
	assert.Zero(t, r.engine.Timeouts())
}
