package zrtpfilter

import (
	"fmt"

	"github.com/opd-ai/zrtpfilter/srtp"
	"github.com/opd-ai/zrtpfilter/zrtp"
)

// keyMaterial is one side's master key and salt with lengths in bits.
type keyMaterial struct {
	key      []byte
	keyBits  int
	salt     []byte
	saltBits int
}

// keysFor selects the key set protecting one direction. The initiator
// sends with the initiator keys and receives with the responder keys; the
// responder does the opposite.
func keysFor(s *zrtp.SrtpSecrets, part zrtp.EnableSecurity) keyMaterial {
	initiator := keyMaterial{s.KeyInitiator, s.InitKeyLen, s.SaltInitiator, s.InitSaltLen}
	responder := keyMaterial{s.KeyResponder, s.RespKeyLen, s.SaltResponder, s.RespSaltLen}

	useInitiator := s.Role == zrtp.Initiator
	if part == zrtp.ForReceiver {
		useInitiator = !useInitiator
	}
	if useInitiator {
		return initiator
	}
	return responder
}

// contextParams translates negotiated secrets into crypto context
// parameters for ssrc.
func contextParams(s *zrtp.SrtpSecrets, km keyMaterial, ssrc uint32, replayWindow uint) (srtp.Params, error) {
	p := srtp.Params{
		SSRC:         ssrc,
		TagLength:    s.SrtpAuthTagLen / 8,
		ReplayWindow: replayWindow,
	}

	switch s.SymEncAlgorithm {
	case zrtp.Aes:
		p.Cipher = srtp.CipherAESCM
	case zrtp.TwoFish:
		p.Cipher = srtp.CipherTwofishCM
	default:
		return p, fmt.Errorf("%w: symmetric algorithm %d", srtp.ErrUnsupportedCipher, s.SymEncAlgorithm)
	}

	switch s.AuthAlgorithm {
	case zrtp.Sha1:
		p.Auth = srtp.AuthHMACSHA1
		p.AuthKeyLength = srtp.SHA1AuthKeyLength
	case zrtp.Skein:
		p.Auth = srtp.AuthSkein
		p.AuthKeyLength = srtp.SkeinAuthKeyLength
	default:
		return p, fmt.Errorf("%w: authentication algorithm %d", srtp.ErrUnsupportedAuth, s.AuthAlgorithm)
	}

	keyLen, saltLen := km.keyBits/8, km.saltBits/8
	if keyLen > len(km.key) || saltLen > len(km.salt) {
		return p, fmt.Errorf("%w: key material shorter than announced", srtp.ErrInvalidKeyLength)
	}
	p.MasterKey = km.key[:keyLen]
	p.MasterSalt = km.salt[:saltLen]
	p.EncKeyLength = keyLen
	p.SaltLength = saltLen
	return p, nil
}

// newContextPair builds the SRTP and SRTCP contexts for one direction.
func newContextPair(p srtp.Params) (*srtp.CryptoContext, *srtp.CryptoContextCtrl, error) {
	rtpCtx, err := srtp.NewCryptoContext(p)
	if err != nil {
		return nil, nil, err
	}
	rtcpCtx, err := srtp.NewCryptoContextCtrl(p)
	if err != nil {
		rtpCtx.Close()
		return nil, nil, err
	}
	return rtpCtx, rtcpCtx, nil
}

func (f *Filter) installContexts(part zrtp.EnableSecurity, rtpCtx *srtp.CryptoContext, rtcpCtx *srtp.CryptoContextCtrl) {
	f.ctxMu.Lock()
	var oldRTP *srtp.CryptoContext
	var oldRTCP *srtp.CryptoContextCtrl
	if part == zrtp.ForSender {
		oldRTP, oldRTCP = f.srtpSend, f.srtcpSend
		f.srtpSend, f.srtcpSend = rtpCtx, rtcpCtx
	} else {
		oldRTP, oldRTCP = f.srtpRecv, f.srtcpRecv
		f.srtpRecv, f.srtcpRecv = rtpCtx, rtcpCtx
	}
	f.ctxMu.Unlock()

	oldRTP.Close()
	oldRTCP.Close()
}

// removeContexts uninstalls and wipes the contexts selected by part.
func (f *Filter) removeContexts(part zrtp.EnableSecurity) {
	var rtpCtxs []*srtp.CryptoContext
	var rtcpCtxs []*srtp.CryptoContextCtrl

	f.ctxMu.Lock()
	if part&zrtp.ForSender != 0 {
		rtpCtxs = append(rtpCtxs, f.srtpSend)
		rtcpCtxs = append(rtcpCtxs, f.srtcpSend)
		f.srtpSend, f.srtcpSend = nil, nil
	}
	if part&zrtp.ForReceiver != 0 {
		rtpCtxs = append(rtpCtxs, f.srtpRecv)
		rtcpCtxs = append(rtcpCtxs, f.srtcpRecv)
		f.srtpRecv, f.srtcpRecv = nil, nil
	}
	f.ctxMu.Unlock()

	for _, c := range rtpCtxs {
		c.Close()
	}
	for _, c := range rtcpCtxs {
		c.Close()
	}
}

func (f *Filter) sendContexts() (*srtp.CryptoContext, *srtp.CryptoContextCtrl) {
	f.ctxMu.RLock()
	defer f.ctxMu.RUnlock()
	return f.srtpSend, f.srtcpSend
}

func (f *Filter) recvContexts() (*srtp.CryptoContext, *srtp.CryptoContextCtrl) {
	f.ctxMu.RLock()
	defer f.ctxMu.RUnlock()
	return f.srtpRecv, f.srtcpRecv
}
