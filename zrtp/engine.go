package zrtp

import "time"

// Config is passed to Engine.Initialize.
type Config struct {
	// ClientID identifies this implementation in Hello messages (up to
	// 16 characters).
	ClientID string
	// CacheName is the retained secrets cache file.
	CacheName string
	// MitmMode enables trusted MitM (PBX enrollment) support.
	MitmMode bool
}

// Engine is the ZRTP key agreement state machine. The filter feeds it ZRTP
// messages and timeouts; the engine answers through Callbacks.
//
// Any method may invoke callbacks synchronously. Engines bracket state
// changes with SynchEnter and SynchLeave.
type Engine interface {
	Initialize(cb Callbacks, cfg Config) error
	Start()
	Stop()

	// ProcessMessage handles one received ZRTP message. msg excludes the
	// packet header and checksum; length is the size of the whole packet.
	ProcessMessage(msg []byte, peerSSRC uint32, length int)
	ProcessTimeout()

	SetMultiStreamParams(params []byte)
	MultiStreamParams() []byte
	IsMultiStream() bool
	IsMultiStreamAvailable() bool
}

// Callbacks is the surface an Engine drives. It is implemented by the
// filter's session adapter.
type Callbacks interface {
	// SendData frames msg as a ZRTP packet and sends it.
	SendData(msg []byte) bool

	// ActivateTimer arms the single-shot engine timer.
	ActivateTimer(d time.Duration) bool
	// CancelTimer disarms the timer. Cancelling an unset timer succeeds.
	CancelTimer() bool

	SendInfo(severity Severity, subCode int)

	// SecretsReady installs SRTP contexts for part. Returning false
	// reports the keys could not be used.
	SecretsReady(secrets *SrtpSecrets, part EnableSecurity) bool
	SecretsOff(part EnableSecurity)
	SecretsOn(cipher, sas string, verified bool)

	HandleGoClear()
	NegotiationFailed(severity Severity, subCode int)
	NotSupportedByOther()

	SynchEnter()
	SynchLeave()

	AskEnrollment(info InfoEnrollment)
	InformEnrollment(info InfoEnrollment)

	SignSAS(sas []byte)
	CheckSASSignature(sas []byte) bool
}

// Role is this endpoint's role in the key agreement.
type Role int

const (
	Responder Role = iota + 1
	Initiator
)

func (r Role) String() string {
	switch r {
	case Responder:
		return "Responder"
	case Initiator:
		return "Initiator"
	default:
		return "UnknownRole"
	}
}

// EnableSecurity selects the stream direction in SecretsReady and
// SecretsOff. The two bits are handled independently.
type EnableSecurity int

const (
	ForReceiver EnableSecurity = 1
	ForSender   EnableSecurity = 2
)

// SymCipher is the negotiated symmetric cipher.
type SymCipher int

const (
	Aes SymCipher = iota + 1
	TwoFish
)

// AuthAlgorithm is the negotiated SRTP authentication algorithm.
type AuthAlgorithm int

const (
	Sha1 AuthAlgorithm = iota + 1
	Skein
)

// SrtpSecrets carries the key material produced by a successful
// negotiation. Key and salt lengths and SrtpAuthTagLen are in bits.
type SrtpSecrets struct {
	SymEncAlgorithm SymCipher

	KeyInitiator  []byte
	InitKeyLen    int
	SaltInitiator []byte
	InitSaltLen   int

	KeyResponder  []byte
	RespKeyLen    int
	SaltResponder []byte
	RespSaltLen   int

	AuthAlgorithm  AuthAlgorithm
	SrtpAuthTagLen int

	SAS  string
	Role Role
}
