// Package srtp implements the SRTP and SRTCP packet transforms of RFC 3711
// for keys negotiated by ZRTP.
//
// A CryptoContext protects or unprotects RTP packets of one SSRC, a
// CryptoContextCtrl does the same for RTCP. Both derive their session keys
// from the master key and salt as soon as they are created. A nil or closed
// context returns ErrNoContext so callers can treat it as absent.
package srtp

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/opd-ai/zrtpfilter/replay"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// CryptoContext is the SRTP state for one SSRC.
type CryptoContext struct {
	mu sync.Mutex

	ssrc uint32
	roc  uint32

	// highest sequence number authenticated on the receive side
	highestSeq uint16
	seqSet     bool

	keys   *sessionKeys
	replay *replay.Window
	closed bool
}

// NewCryptoContext creates an SRTP context and derives its session keys at
// index 0.
func NewCryptoContext(p Params) (*CryptoContext, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	cc := &CryptoContext{
		ssrc:   p.SSRC,
		roc:    p.ROC,
		keys:   newSessionKeys(&p, 0),
		replay: replay.NewSRTPWindow(p.ReplayWindow),
	}
	if err := cc.keys.derive(uint64(p.ROC) << 16); err != nil {
		cc.keys.wipe()
		return nil, fmt.Errorf("derive srtp keys: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewCryptoContext",
		"ssrc":     p.SSRC,
		"cipher":   p.Cipher.String(),
		"auth":     p.Auth.String(),
		"tag_len":  p.TagLength,
	}).Debug("SRTP crypto context created")

	return cc, nil
}

// SSRC returns the SSRC the context was created for.
func (c *CryptoContext) SSRC() uint32 { return c.ssrc }

// ROC returns the current rollover counter.
func (c *CryptoContext) ROC() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roc
}

// TagLength returns the authentication tag length in bytes.
func (c *CryptoContext) TagLength() int { return c.keys.tagLen }

// Protect encrypts and authenticates an RTP packet. The input is left
// untouched; the returned buffer is longer by the tag length.
func (c *CryptoContext) Protect(pkt []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrNoContext
	}

	var h rtp.Header
	headerLen, err := h.Unmarshal(pkt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNoContext
	}

	roc := c.roc
	index := uint64(roc)<<16 | uint64(h.SequenceNumber)
	if err := c.keys.derive(index); err != nil {
		return nil, err
	}

	length := len(pkt)
	out := make([]byte, length+c.keys.tagLen)
	copy(out, pkt)

	// Padding is part of the encrypted payload.
	c.keys.xorKeyStream(out[headerLen:length], h.SSRC, index)
	copy(out[length:], c.keys.tag(out[:length], &roc))

	if h.SequenceNumber == 0xFFFF {
		c.roc++
	}
	return out, nil
}

// Unprotect authenticates and decrypts an SRTP packet, returning the plain
// RTP packet. Replayed packets fail with ErrReplay, forged or corrupted ones
// with ErrAuthFailed. Neither changes the context state.
func (c *CryptoContext) Unprotect(pkt []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrNoContext
	}

	var h rtp.Header
	headerLen, err := h.Unmarshal(pkt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNoContext
	}

	tagLen := c.keys.tagLen
	length := len(pkt) - tagLen
	if length < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(pkt))
	}

	guessedROC := c.guessROC(h.SequenceNumber)
	index := uint64(guessedROC)<<16 | uint64(h.SequenceNumber)

	accept, ok := c.replay.Check(index)
	if !ok {
		return nil, ErrReplay
	}

	if err := c.keys.derive(index); err != nil {
		return nil, err
	}
	if tagLen > 0 {
		mac := c.keys.tag(pkt[:length], &guessedROC)
		if subtle.ConstantTimeCompare(mac, pkt[length:]) != 1 {
			return nil, ErrAuthFailed
		}
	}

	out := make([]byte, length)
	copy(out, pkt[:length])
	c.keys.xorKeyStream(out[headerLen:], h.SSRC, index)

	accept()
	c.update(h.SequenceNumber, guessedROC)
	return out, nil
}

// guessROC picks the rollover counter that puts seq nearest to the highest
// sequence number seen, choosing among ROC-1, ROC and ROC+1.
func (c *CryptoContext) guessROC(seq uint16) uint32 {
	if !c.seqSet {
		return c.roc
	}
	if c.highestSeq < 0x8000 {
		if int(seq)-int(c.highestSeq) > 0x8000 && c.roc > 0 {
			return c.roc - 1
		}
		return c.roc
	}
	if int(c.highestSeq)-0x8000 > int(seq) {
		return c.roc + 1
	}
	return c.roc
}

func (c *CryptoContext) update(seq uint16, guessedROC uint32) {
	switch {
	case !c.seqSet:
		c.highestSeq = seq
		c.seqSet = true
	case guessedROC > c.roc:
		c.roc = guessedROC
		c.highestSeq = seq
	case guessedROC == c.roc && seq > c.highestSeq:
		c.highestSeq = seq
	}
}

// Close wipes all key material. Subsequent transforms return ErrNoContext.
func (c *CryptoContext) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.keys.wipe()
	return nil
}
