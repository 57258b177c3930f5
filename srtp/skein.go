package srtp

import (
	"encoding/binary"
	"hash"
	"math/bits"
)

// Skein-512 MAC (Skein 1.3, section 4.3) as ZRTP uses it for SRTP: the
// session auth key is the MAC key and the output length is the tag length,
// so the tag is never truncated from a longer digest.

const (
	skeinBlockSize = 64
	skeinWords     = 8

	skeinTypeKey = 0
	skeinTypeCfg = 4
	skeinTypeMsg = 48
	skeinTypeOut = 63

	skeinSchemaID   = 0x33414853 // "SHA3" little endian
	skeinVersion    = 1
	threefishParity = 0x1BD11BDAA9FC1A22
)

var threefishRotations = [8][4]int{
	{46, 36, 19, 37},
	{33, 27, 14, 42},
	{17, 49, 36, 39},
	{44, 9, 54, 56},
	{39, 30, 34, 24},
	{13, 50, 10, 17},
	{25, 29, 39, 43},
	{8, 35, 56, 22},
}

var threefishPermutation = [skeinWords]int{2, 1, 4, 7, 6, 5, 0, 3}

// threefishEncrypt runs Threefish-512 over block with the given key and
// tweak.
func threefishEncrypt(key *[skeinWords]uint64, tweak [2]uint64, block *[skeinWords]uint64) [skeinWords]uint64 {
	var k [skeinWords + 1]uint64
	k[skeinWords] = threefishParity
	for i := 0; i < skeinWords; i++ {
		k[i] = key[i]
		k[skeinWords] ^= key[i]
	}
	t := [3]uint64{tweak[0], tweak[1], tweak[0] ^ tweak[1]}

	addSubkey := func(v *[skeinWords]uint64, s int) {
		for i := 0; i < skeinWords; i++ {
			v[i] += k[(s+i)%(skeinWords+1)]
		}
		v[5] += t[s%3]
		v[6] += t[(s+1)%3]
		v[7] += uint64(s)
	}

	v := *block
	for d := 0; d < 72; d++ {
		if d%4 == 0 {
			addSubkey(&v, d/4)
		}
		var e [skeinWords]uint64
		for j := 0; j < skeinWords/2; j++ {
			y0 := v[2*j] + v[2*j+1]
			e[2*j] = y0
			e[2*j+1] = bits.RotateLeft64(v[2*j+1], threefishRotations[d%8][j]) ^ y0
		}
		for i := 0; i < skeinWords; i++ {
			v[i] = e[threefishPermutation[i]]
		}
	}
	addSubkey(&v, 18)
	return v
}

// ubiBlock chains one 64 byte block into g. pos counts the message bytes
// processed including this block.
func ubiBlock(g *[skeinWords]uint64, block []byte, pos uint64, typ uint64, first, final bool) {
	var w [skeinWords]uint64
	for i := range w {
		w[i] = binary.LittleEndian.Uint64(block[8*i:])
	}
	t1 := typ << 56
	if first {
		t1 |= 1 << 62
	}
	if final {
		t1 |= 1 << 63
	}
	out := threefishEncrypt(g, [2]uint64{pos, t1}, &w)
	for i := range g {
		g[i] = out[i] ^ w[i]
	}
}

// ubi processes a complete message of the given type.
func ubi(g *[skeinWords]uint64, msg []byte, typ uint64) {
	var block [skeinBlockSize]byte
	if len(msg) == 0 {
		ubiBlock(g, block[:], 0, typ, true, true)
		return
	}
	var pos uint64
	for first := true; len(msg) > 0; first = false {
		n := copy(block[:], msg)
		for i := n; i < skeinBlockSize; i++ {
			block[i] = 0
		}
		msg = msg[n:]
		pos += uint64(n)
		ubiBlock(g, block[:], pos, typ, first, len(msg) == 0)
	}
}

type skeinMAC struct {
	start  [skeinWords]uint64
	g      [skeinWords]uint64
	buf    [skeinBlockSize]byte
	n      int
	pos    uint64
	first  bool
	outLen int
}

// newSkeinMAC returns a Skein-512 MAC keyed with key producing outLen bytes.
func newSkeinMAC(key []byte, outLen int) hash.Hash {
	m := &skeinMAC{outLen: outLen}
	if len(key) > 0 {
		ubi(&m.start, key, skeinTypeKey)
	}

	var cfg [32]byte
	binary.LittleEndian.PutUint32(cfg[0:], skeinSchemaID)
	binary.LittleEndian.PutUint16(cfg[4:], skeinVersion)
	binary.LittleEndian.PutUint64(cfg[8:], uint64(outLen)*8)
	ubi(&m.start, cfg[:], skeinTypeCfg)

	m.Reset()
	return m
}

func (m *skeinMAC) Reset() {
	m.g = m.start
	m.n = 0
	m.pos = 0
	m.first = true
}

func (m *skeinMAC) Size() int { return m.outLen }

func (m *skeinMAC) BlockSize() int { return skeinBlockSize }

// Write buffers the last block so it can be flagged final in Sum.
func (m *skeinMAC) Write(p []byte) (int, error) {
	written := len(p)
	for len(p) > 0 {
		if m.n == skeinBlockSize {
			m.pos += skeinBlockSize
			ubiBlock(&m.g, m.buf[:], m.pos, skeinTypeMsg, m.first, false)
			m.first = false
			m.n = 0
		}
		c := copy(m.buf[m.n:], p)
		m.n += c
		p = p[c:]
	}
	return written, nil
}

func (m *skeinMAC) Sum(in []byte) []byte {
	g := m.g
	last := m.buf
	for i := m.n; i < skeinBlockSize; i++ {
		last[i] = 0
	}
	ubiBlock(&g, last[:], m.pos+uint64(m.n), skeinTypeMsg, m.first, true)

	out := make([]byte, 0, m.outLen+skeinBlockSize)
	var counter [skeinBlockSize]byte
	for i := uint64(0); len(out) < m.outLen; i++ {
		o := g
		binary.LittleEndian.PutUint64(counter[:], i)
		ubiBlock(&o, counter[:], 8, skeinTypeOut, true, true)
		for _, word := range o {
			out = binary.LittleEndian.AppendUint64(out, word)
		}
	}
	return append(in, out[:m.outLen]...)
}
