package srtp

import "fmt"

// CipherType selects the counter-mode block cipher.
type CipherType int

const (
	// CipherNull leaves payloads in clear text (authentication only).
	CipherNull CipherType = iota
	// CipherAESCM is AES in counter mode (RFC 3711 section 4.1.1).
	CipherAESCM
	// CipherTwofishCM is Twofish in counter mode, negotiated by ZRTP as 2FS.
	CipherTwofishCM
)

func (c CipherType) String() string {
	switch c {
	case CipherNull:
		return "NULL"
	case CipherAESCM:
		return "AES-CM"
	case CipherTwofishCM:
		return "TWOFISH-CM"
	default:
		return fmt.Sprintf("CipherType(%d)", int(c))
	}
}

// AuthType selects the message authentication algorithm.
type AuthType int

const (
	// AuthNull disables authentication.
	AuthNull AuthType = iota
	// AuthHMACSHA1 is HMAC-SHA1 (RFC 3711 section 4.2.1).
	AuthHMACSHA1
	// AuthSkein is the Skein-512 MAC ZRTP negotiates as SK32 and SK64.
	AuthSkein
)

func (a AuthType) String() string {
	switch a {
	case AuthNull:
		return "NULL"
	case AuthHMACSHA1:
		return "HMAC-SHA1"
	case AuthSkein:
		return "SKEIN"
	default:
		return fmt.Sprintf("AuthType(%d)", int(a))
	}
}

func (a AuthType) maxTagLength() int {
	if a == AuthSkein {
		return skeinBlockSize
	}
	return 20
}

// Auth key lengths used by ZRTP for each MAC.
const (
	SHA1AuthKeyLength  = 20
	SkeinAuthKeyLength = 32
)

// Params holds the raw key material and lengths needed to build a context.
// All lengths are in bytes.
type Params struct {
	SSRC              uint32
	ROC               uint32
	KeyDerivationRate uint64

	Cipher CipherType
	Auth   AuthType

	MasterKey  []byte
	MasterSalt []byte

	EncKeyLength  int
	AuthKeyLength int
	SaltLength    int
	TagLength     int

	// ReplayWindow is the replay list length; zero selects the default.
	ReplayWindow uint
}

func (p *Params) validate() error {
	switch p.Cipher {
	case CipherNull, CipherAESCM, CipherTwofishCM:
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedCipher, p.Cipher)
	}
	switch p.Auth {
	case AuthNull, AuthHMACSHA1, AuthSkein:
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedAuth, p.Auth)
	}

	switch len(p.MasterKey) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: master key of %d bytes", ErrInvalidKeyLength, len(p.MasterKey))
	}
	if len(p.MasterSalt) == 0 || len(p.MasterSalt) > 14 {
		return fmt.Errorf("%w: master salt of %d bytes", ErrInvalidKeyLength, len(p.MasterSalt))
	}
	if p.Cipher != CipherNull {
		switch p.EncKeyLength {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w: session key of %d bytes", ErrInvalidKeyLength, p.EncKeyLength)
		}
		if p.SaltLength <= 0 || p.SaltLength > 14 {
			return fmt.Errorf("%w: session salt of %d bytes", ErrInvalidKeyLength, p.SaltLength)
		}
	}
	if p.Auth != AuthNull {
		if p.AuthKeyLength <= 0 {
			return fmt.Errorf("%w: auth key of %d bytes", ErrInvalidKeyLength, p.AuthKeyLength)
		}
		if p.TagLength <= 0 || p.TagLength > p.Auth.maxTagLength() {
			return fmt.Errorf("%w: tag of %d bytes", ErrInvalidKeyLength, p.TagLength)
		}
	} else if p.TagLength != 0 {
		return fmt.Errorf("%w: tag without authentication", ErrInvalidKeyLength)
	}
	return nil
}
