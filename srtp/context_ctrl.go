package srtp

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/opd-ai/zrtpfilter/replay"
	"github.com/pion/rtcp"
	"github.com/sirupsen/logrus"
)

const (
	// srtcpHeaderLength is the part of an RTCP compound packet sent in
	// clear: the first header word and the sender SSRC. The remaining RTCP
	// header fields are not inspected.
	srtcpHeaderLength = 8

	srtcpIndexLength = 4
	srtcpEFlag       = 0x80000000
)

// CryptoContextCtrl is the SRTCP state for one SSRC.
type CryptoContextCtrl struct {
	mu sync.Mutex

	ssrc  uint32
	index uint32

	keys   *sessionKeys
	replay *replay.Window
	closed bool
}

// NewCryptoContextCtrl creates an SRTCP context and derives its session keys
// at index 0. A CipherNull context sends authenticated clear text with the E
// flag cleared.
func NewCryptoContextCtrl(p Params) (*CryptoContextCtrl, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	cc := &CryptoContextCtrl{
		ssrc:   p.SSRC,
		keys:   newSessionKeys(&p, srtcpLabelOffset),
		replay: replay.NewSRTCPWindow(p.ReplayWindow),
	}
	if err := cc.keys.derive(0); err != nil {
		cc.keys.wipe()
		return nil, fmt.Errorf("derive srtcp keys: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewCryptoContextCtrl",
		"ssrc":     p.SSRC,
		"cipher":   p.Cipher.String(),
		"auth":     p.Auth.String(),
		"tag_len":  p.TagLength,
	}).Debug("SRTCP crypto context created")

	return cc, nil
}

// SSRC returns the SSRC the context was created for.
func (c *CryptoContextCtrl) SSRC() uint32 { return c.ssrc }

// Index returns the SRTCP index the next protected packet will carry.
func (c *CryptoContextCtrl) Index() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// TagLength returns the authentication tag length in bytes.
func (c *CryptoContextCtrl) TagLength() int { return c.keys.tagLen }

func (c *CryptoContextCtrl) encrypting() bool { return c.keys.cipherType != CipherNull }

// Protect encrypts an RTCP compound packet from byte 8 on, appends the
// index word carrying the E flag and then the authentication tag.
func (c *CryptoContextCtrl) Protect(pkt []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrNoContext
	}
	if err := validateRTCP(pkt); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNoContext
	}

	index := c.index
	if err := c.keys.derive(uint64(index)); err != nil {
		return nil, err
	}

	length := len(pkt)
	ssrc := binary.BigEndian.Uint32(pkt[4:8])
	out := make([]byte, length+srtcpIndexLength+c.keys.tagLen)
	copy(out, pkt)

	word := index
	if c.encrypting() {
		c.keys.xorKeyStream(out[srtcpHeaderLength:length], ssrc, uint64(index))
		word |= srtcpEFlag
	}
	binary.BigEndian.PutUint32(out[length:], word)

	authLen := length + srtcpIndexLength
	copy(out[authLen:], c.keys.tag(out[:authLen], nil))

	c.index = (c.index + 1) &^ srtcpEFlag
	return out, nil
}

// Unprotect verifies and decrypts an SRTCP packet and strips the index
// word and tag.
func (c *CryptoContextCtrl) Unprotect(pkt []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrNoContext
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNoContext
	}

	tagLen := c.keys.tagLen
	length := len(pkt) - tagLen - srtcpIndexLength
	if length < srtcpHeaderLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(pkt))
	}
	if err := validateRTCP(pkt[:length]); err != nil {
		return nil, err
	}

	word := binary.BigEndian.Uint32(pkt[length:])
	index := word &^ srtcpEFlag
	encrypted := word&srtcpEFlag != 0

	accept, ok := c.replay.Check(uint64(index))
	if !ok {
		return nil, ErrReplay
	}

	if err := c.keys.derive(uint64(index)); err != nil {
		return nil, err
	}
	authLen := length + srtcpIndexLength
	if tagLen > 0 {
		mac := c.keys.tag(pkt[:authLen], nil)
		if subtle.ConstantTimeCompare(mac, pkt[authLen:]) != 1 {
			return nil, ErrAuthFailed
		}
	}

	out := make([]byte, length)
	copy(out, pkt[:length])
	if encrypted {
		ssrc := binary.BigEndian.Uint32(out[4:8])
		c.keys.xorKeyStream(out[srtcpHeaderLength:], ssrc, uint64(index))
	}

	accept()
	return out, nil
}

// Close wipes all key material. Subsequent transforms return ErrNoContext.
func (c *CryptoContextCtrl) Close() error {
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

// validateRTCP checks the common header of the first packet in a compound
// packet and that the sender SSRC is present.
func validateRTCP(pkt []byte) error {
	if len(pkt) < srtcpHeaderLength {
		return fmt.Errorf("%w: %d bytes", ErrMalformed, len(pkt))
	}
	var h rtcp.Header
	if err := h.Unmarshal(pkt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
