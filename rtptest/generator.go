// Package rtptest generates RTP and RTCP traffic for exercising the
// filter: RTP packets with running sequence numbers and timestamps, and
// RTCP compound packets (receiver report plus SDES, optionally BYE).
package rtptest

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Generator produces packets for one RTP stream.
type Generator struct {
	mu          sync.Mutex
	ssrc        uint32
	seq         uint16
	timestamp   uint32
	payloadType uint8
	clockStep   uint32
	cname       string
}

// NewGenerator creates a generator for ssrc. A zero ssrc selects a random
// one. Packets use payload type 0 (PCMU) and advance the timestamp by 160
// samples, one 20 ms frame at 8 kHz.
func NewGenerator(ssrc uint32) (*Generator, error) {
	if ssrc == 0 {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, fmt.Errorf("failed to generate SSRC: %w", err)
		}
		ssrc = binary.BigEndian.Uint32(b[:]) | 1
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewGenerator",
		"ssrc":     ssrc,
	}).Debug("RTP test generator created")

	return &Generator{
		ssrc:      ssrc,
		clockStep: 160,
		cname:     "AAAAAA",
	}, nil
}

// SSRC returns the stream's SSRC.
func (g *Generator) SSRC() uint32 { return g.ssrc }

// SetSequence sets the sequence number of the next RTP packet.
func (g *Generator) SetSequence(seq uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = seq
}

// Sequence returns the sequence number of the next RTP packet.
func (g *Generator) Sequence() uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// SetPayloadType changes the payload type of subsequent packets.
func (g *Generator) SetPayloadType(pt uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloadType = pt
}

// NextRTP returns the next RTP packet carrying payload.
func (g *Generator) NextRTP(payload []byte) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    g.payloadType,
			SequenceNumber: g.seq,
			Timestamp:      g.timestamp,
			SSRC:           g.ssrc,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RTP packet: %w", err)
	}

	g.seq++
	g.timestamp += g.clockStep
	return raw, nil
}

func (g *Generator) reportPackets() []rtcp.Packet {
	return []rtcp.Packet{
		&rtcp.ReceiverReport{SSRC: g.ssrc},
		&rtcp.SourceDescription{Chunks: []rtcp.SourceDescriptionChunk{{
			Source: g.ssrc,
			Items: []rtcp.SourceDescriptionItem{{
				Type: rtcp.SDESCNAME,
				Text: g.cname,
			}},
		}}},
	}
}

// ReceiverReport returns an RTCP compound packet with an empty receiver
// report and an SDES CNAME item.
func (g *Generator) ReceiverReport() ([]byte, error) {
	raw, err := rtcp.Marshal(g.reportPackets())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RTCP report: %w", err)
	}
	return raw, nil
}

// Goodbye returns a receiver report compound packet ending in a BYE with
// reason.
func (g *Generator) Goodbye(reason string) ([]byte, error) {
	pkts := append(g.reportPackets(), &rtcp.Goodbye{
		Sources: []uint32{g.ssrc},
		Reason:  reason,
	})
	raw, err := rtcp.Marshal(pkts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RTCP goodbye: %w", err)
	}
	return raw, nil
}
