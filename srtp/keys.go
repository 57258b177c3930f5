package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/twofish"
)

// Key derivation labels from RFC 3711 section 4.3.1. SRTCP labels are the
// SRTP labels plus three.
const (
	labelEncryption     = 0
	labelAuthentication = 1
	labelSalt           = 2

	srtcpLabelOffset = 3
)

// sessionKeys holds the master material of one context and the session
// keys derived from it.
type sessionKeys struct {
	cipherType CipherType
	authType   AuthType

	masterKey  []byte
	masterSalt []byte

	encKey  []byte
	authKey []byte
	salt    []byte

	encLen  int
	authLen int
	saltLen int
	tagLen  int

	labelBase byte
	kdr       uint64
	lastR     uint64
	derived   bool

	block cipher.Block
	mac   hash.Hash
}

func newSessionKeys(p *Params, labelBase byte) *sessionKeys {
	return &sessionKeys{
		cipherType: p.Cipher,
		authType:   p.Auth,
		masterKey:  append([]byte(nil), p.MasterKey...),
		masterSalt: append([]byte(nil), p.MasterSalt...),
		encLen:     p.EncKeyLength,
		authLen:    p.AuthKeyLength,
		saltLen:    p.SaltLength,
		tagLen:     p.TagLength,
		labelBase:  labelBase,
		kdr:        p.KeyDerivationRate,
	}
}

func newBlockCipher(c CipherType, key []byte) (cipher.Block, error) {
	if c == CipherTwofishCM {
		return twofish.NewCipher(key)
	}
	return aes.NewCipher(key)
}

// derive computes the session keys for the packet index. With a key
// derivation rate of zero the keys are derived once and never again.
func (k *sessionKeys) derive(index uint64) error {
	var r uint64
	if k.kdr != 0 {
		r = index / k.kdr
	}
	if k.derived && r == k.lastR {
		return nil
	}

	prf, err := newBlockCipher(k.cipherType, k.masterKey)
	if err != nil {
		return err
	}

	encKey := prfOutput(prf, k.masterSalt, k.labelBase+labelEncryption, r, k.encLen)
	authKey := prfOutput(prf, k.masterSalt, k.labelBase+labelAuthentication, r, k.authLen)
	salt := prfOutput(prf, k.masterSalt, k.labelBase+labelSalt, r, k.saltLen)

	var block cipher.Block
	if k.cipherType != CipherNull {
		if block, err = newBlockCipher(k.cipherType, encKey); err != nil {
			return err
		}
	}

	k.wipeSession()
	k.encKey, k.authKey, k.salt = encKey, authKey, salt
	k.block = block
	switch k.authType {
	case AuthHMACSHA1:
		k.mac = hmac.New(sha1.New, k.authKey)
	case AuthSkein:
		k.mac = newSkeinMAC(k.authKey, k.tagLen)
	}
	k.lastR = r
	k.derived = true
	return nil
}

// prfOutput runs the AES-CM pseudo random function of RFC 3711 section
// 4.3.3, producing n bytes for the given label and key derivation index r.
func prfOutput(prf cipher.Block, masterSalt []byte, label byte, r uint64, n int) []byte {
	if n <= 0 {
		return nil
	}
	var x [16]byte
	copy(x[:14], masterSalt)

	// key_id = label || r, right aligned in the 112 bit salt field.
	x[7] ^= label
	for i := 0; i < 6; i++ {
		x[13-i] ^= byte(r >> (8 * i))
	}

	out := make([]byte, n)
	cipher.NewCTR(prf, x[:]).XORKeyStream(out, out)
	return out
}

// xorKeyStream enciphers or deciphers buf in place using the counter mode
// IV built from the session salt, SSRC and packet index.
func (k *sessionKeys) xorKeyStream(buf []byte, ssrc uint32, index uint64) {
	if k.block == nil || len(buf) == 0 {
		return
	}
	var iv [16]byte
	copy(iv[:14], k.salt)

	var ssrcBytes [4]byte
	binary.BigEndian.PutUint32(ssrcBytes[:], ssrc)
	for i := 0; i < 4; i++ {
		iv[4+i] ^= ssrcBytes[i]
	}
	for i := 0; i < 6; i++ {
		iv[13-i] ^= byte(index >> (8 * i))
	}

	cipher.NewCTR(k.block, iv[:]).XORKeyStream(buf, buf)
}

// tag computes the truncated authentication tag over data. When roc is
// non-nil its big endian value is appended to the MAC input (SRTP only).
func (k *sessionKeys) tag(data []byte, roc *uint32) []byte {
	if k.mac == nil {
		return nil
	}
	k.mac.Reset()
	k.mac.Write(data)
	if roc != nil {
		var rocBytes [4]byte
		binary.BigEndian.PutUint32(rocBytes[:], *roc)
		k.mac.Write(rocBytes[:])
	}
	return k.mac.Sum(nil)[:k.tagLen]
}

func (k *sessionKeys) wipeSession() {
	wipeBytes(k.encKey)
	wipeBytes(k.authKey)
	wipeBytes(k.salt)
	k.encKey, k.authKey, k.salt = nil, nil, nil
	k.block = nil
	k.mac = nil
}

func (k *sessionKeys) wipe() {
	k.wipeSession()
	wipeBytes(k.masterKey)
	wipeBytes(k.masterSalt)
	k.masterKey, k.masterSalt = nil, nil
	k.derived = false
}
