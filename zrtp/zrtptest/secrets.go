package zrtptest

import (
	"bytes"

	"github.com/opd-ai/zrtpfilter/zrtp"
)

// Fixed key material for tests. Initiator and responder keys differ so
// direction mix-ups are detected.
var (
	InitiatorKey  = bytes.Repeat([]byte{0x11}, 16)
	InitiatorSalt = bytes.Repeat([]byte{0x22}, 14)
	ResponderKey  = bytes.Repeat([]byte{0x33}, 16)
	ResponderSalt = bytes.Repeat([]byte{0x44}, 14)
)

// Secrets returns AES-128 / HMAC-SHA1-80 secrets for role with a
// 112 bit salt and the given SAS.
func Secrets(role zrtp.Role, sas string) *zrtp.SrtpSecrets {
	return &zrtp.SrtpSecrets{
		SymEncAlgorithm: zrtp.Aes,
		KeyInitiator:    InitiatorKey,
		InitKeyLen:      128,
		SaltInitiator:   InitiatorSalt,
		InitSaltLen:     112,
		KeyResponder:    ResponderKey,
		RespKeyLen:      128,
		SaltResponder:   ResponderSalt,
		RespSaltLen:     112,
		AuthAlgorithm:   zrtp.Sha1,
		SrtpAuthTagLen:  80,
		SAS:             sas,
		Role:            role,
	}
}
