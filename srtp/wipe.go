package srtp

import (
	"crypto/subtle"
	"runtime"
)

// wipeBytes overwrites key material with zeros.
func wipeBytes(data []byte) {
	if data == nil {
		return
	}
	zeros := make([]byte, len(data))
	// Reading the buffer before the copy keeps the store from being elided.
	subtle.ConstantTimeCompare(data, zeros)
	copy(data, zeros)
	runtime.KeepAlive(data)
}
