// Package replay tracks which SRTP and SRTCP packet indices have already
// been accepted on a stream.
//
// The sliding window itself comes from pion's replaydetector. This package
// fixes the index widths used by the two protocols and adds the locking the
// crypto contexts need when packets for one SSRC arrive from several
// goroutines.
package replay

import (
	"sync"

	"github.com/pion/transport/v2/replaydetector"
)

const (
	// DefaultWindowSize is the number of indices remembered behind the
	// highest accepted index.
	DefaultWindowSize = 64

	// MaxSRTPIndex is the largest 48-bit SRTP packet index (ROC<<16 | SEQ).
	MaxSRTPIndex = (1 << 48) - 1

	// MaxSRTCPIndex is the largest 31-bit SRTCP index.
	MaxSRTCPIndex = 0x7FFFFFFF
)

// Window is a replay list for a single SSRC.
//
// Check never modifies the window; the returned accept function records the
// index and must only be called once the packet has been authenticated.
//
// The detector is created by the first accept. A wrapping detector fixes its
// head on the first index it is asked about, so creating it earlier would let
// an unauthenticated packet decide where the window starts.
type Window struct {
	mu          sync.Mutex
	newDetector func() replaydetector.ReplayDetector
	detector    replaydetector.ReplayDetector
	size        uint
	maxIndex    uint64
	accepted    uint64
}

// NewSRTPWindow creates a window over the full 48-bit SRTP index space.
// SRTP indices never wrap, so no wrapping support is needed.
func NewSRTPWindow(size uint) *Window {
	if size == 0 {
		size = DefaultWindowSize
	}
	return &Window{
		newDetector: func() replaydetector.ReplayDetector {
			return replaydetector.New(size, MaxSRTPIndex)
		},
		size:     size,
		maxIndex: MaxSRTPIndex,
	}
}

// NewSRTCPWindow creates a window over the 31-bit SRTCP index space,
// allowing the index to wrap back to zero.
func NewSRTCPWindow(size uint) *Window {
	if size == 0 {
		size = DefaultWindowSize
	}
	return &Window{
		newDetector: func() replaydetector.ReplayDetector {
			return replaydetector.WithWrap(size, MaxSRTCPIndex)
		},
		size:     size,
		maxIndex: MaxSRTCPIndex,
	}
}

// Check reports whether index has not been seen and is not too old.
func (w *Window) Check(index uint64) (accept func(), ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if index > w.maxIndex {
		return func() {}, false
	}
	if w.detector == nil {
		return func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.record(index)
		}, true
	}

	mark, ok := w.detector.Check(index)
	if !ok {
		return func() {}, false
	}
	return func() {
		w.mu.Lock()
		mark()
		w.accepted++
		w.mu.Unlock()
	}, true
}

// record marks index on a window that had no detector when it was checked.
// Another accept may have created the detector in between, so the index is
// checked again before it is marked. Callers hold w.mu.
func (w *Window) record(index uint64) {
	if w.detector == nil {
		w.detector = w.newDetector()
	}
	mark, ok := w.detector.Check(index)
	if !ok {
		return
	}
	mark()
	w.accepted++
}

// Size returns the window length in packets.
func (w *Window) Size() uint { return w.size }

// MaxIndex returns the highest index the window will accept.
func (w *Window) MaxIndex() uint64 { return w.maxIndex }

// Accepted returns how many indices have been recorded.
func (w *Window) Accepted() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accepted
}
