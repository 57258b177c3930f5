package zrtp

import "fmt"

// Severity classifies status and failure reports.
type Severity int

const (
	Info Severity = iota + 1
	Warning
	Severe
	ZrtpError
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "Info"
	case Warning:
		return "Warning"
	case Severe:
		return "Severe"
	case ZrtpError:
		return "ZrtpError"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Info sub-codes.
const (
	InfoHelloReceived = iota + 1
	InfoCommitDHGenerated
	InfoRespCommitReceived
	InfoDH1DHGenerated
	InfoInitDH1Received
	InfoRespDH2Received
	InfoInitConf1Received
	InfoRespConf2Received
	InfoRSMatchFound
	InfoSecureStateOn
	InfoSecureStateOff
)

// Warning sub-codes.
const (
	WarningDHAESmismatch = iota + 1
	WarningGoClearReceived
	WarningDHShort
	WarningNoRSMatch
	WarningCRCmismatch
	WarningSRTPauthError
	WarningSRTPreplayError
	WarningNoExpectedRSMatch
)

// Severe sub-codes.
const (
	SevereHelloHMACFailed = iota + 1
	SevereCommitHMACFailed
	SevereDH1HMACFailed
	SevereDH2HMACFailed
	SevereCannotSend
	SevereProtocolError
	SevereNoTimer
	SevereTooMuchRetries
)

// ZRTP protocol error codes (RFC 6189 section 5.9). Engines report them
// negated; Describe accepts either sign.
const (
	MalformedPacket   = 0x10
	CriticalSWError   = 0x20
	UnsuppZRTPVersion = 0x30
	HelloCompMismatch = 0x40
	UnsuppHashType    = 0x51
	UnsuppCiphertype  = 0x52
	UnsuppPKExchange  = 0x53
	UnsuppSRTPAuthTag = 0x54
	UnsuppSASScheme   = 0x55
	NoSharedSecret    = 0x56
	DHErrorWrongPV    = 0x61
	DHErrorWrongHVI   = 0x62
	SASuntrustedMiTM  = 0x63
	ConfirmHMACWrong  = 0x70
	NonceReused       = 0x80
	EqualZIDHello     = 0x90
	GoClearNotAllowed = 0x100
)

// InfoEnrollment is passed with PBX enrollment events.
type InfoEnrollment int

const (
	EnrollmentRequest InfoEnrollment = iota
	EnrollmentCanceled
	EnrollmentFailed
	EnrollmentOk
)

func (e InfoEnrollment) String() string {
	switch e {
	case EnrollmentRequest:
		return "EnrollmentRequest"
	case EnrollmentCanceled:
		return "EnrollmentCanceled"
	case EnrollmentFailed:
		return "EnrollmentFailed"
	case EnrollmentOk:
		return "EnrollmentOk"
	default:
		return fmt.Sprintf("InfoEnrollment(%d)", int(e))
	}
}

// Description returns the human readable text for an enrollment value.
func (e InfoEnrollment) Description() string {
	if s, ok := enrollmentText[e]; ok {
		return s
	}
	return unknownCode
}

const unknownCode = "unknown code"

var infoText = []string{
	InfoHelloReceived:      "Hello received, preparing a Commit",
	InfoCommitDHGenerated:  "Commit: Generated a public DH key",
	InfoRespCommitReceived: "Responder: Commit received, preparing DHPart1",
	InfoDH1DHGenerated:     "DH1Part: Generated a public DH key",
	InfoInitDH1Received:    "Initiator: DHPart1 received, preparing DHPart2",
	InfoRespDH2Received:    "Responder: DHPart2 received, preparing Confirm1",
	InfoInitConf1Received:  "Initiator: Confirm1 received, preparing Confirm2",
	InfoRespConf2Received:  "Responder: Confirm2 received, preparing Conf2Ack",
	InfoRSMatchFound:       "At least one retained secrets matches - forward security OK",
	InfoSecureStateOn:      "Entered secure state",
	InfoSecureStateOff:     "No more security for this session",
}

var warningText = []string{
	WarningDHAESmismatch:     "Commit contains an AES256 cipher but does not offer a Diffie-Hellman 4096",
	WarningGoClearReceived:   "Received a GoClear message",
	WarningDHShort:           "Hello offers an AES256 cipher but does not offer a Diffie-Hellman 4096",
	WarningNoRSMatch:         "No retained shared secrets available - must verify SAS",
	WarningCRCmismatch:       "Internal ZRTP packet checksum mismatch - packet dropped",
	WarningSRTPauthError:     "Dropping packet because SRTP authentication failed",
	WarningSRTPreplayError:   "Dropping packet because SRTP replay check failed",
	WarningNoExpectedRSMatch: "Valid retained shared secrets available but no matches found - must verify SAS",
}

var severeText = []string{
	SevereHelloHMACFailed:  "Hash HMAC check of Hello failed",
	SevereCommitHMACFailed: "Hash HMAC check of Commit failed",
	SevereDH1HMACFailed:    "Hash HMAC check of DHPart1 failed",
	SevereDH2HMACFailed:    "Hash HMAC check of DHPart2 failed",
	SevereCannotSend:       "Cannot send data - connection or peer down?",
	SevereProtocolError:    "Internal protocol error occurred",
	SevereNoTimer:          "Cannot start a timer - internal resources exhausted?",
	SevereTooMuchRetries:   "Too many retries during ZRTP negotiation - connection or peer down?",
}

var zrtpErrorText = map[int]string{
	MalformedPacket:   "Malformed packet (CRC OK, but wrong structure)",
	CriticalSWError:   "Critical software error",
	UnsuppZRTPVersion: "Unsupported ZRTP version",
	HelloCompMismatch: "Hello components mismatch",
	UnsuppHashType:    "Hash type not supported",
	UnsuppCiphertype:  "Cipher type not supported",
	UnsuppPKExchange:  "Public key exchange not supported",
	UnsuppSRTPAuthTag: "SRTP auth. tag not supported",
	UnsuppSASScheme:   "SAS scheme not supported",
	NoSharedSecret:    "No shared secret available, DH mode required",
	DHErrorWrongPV:    "DH Error: bad pvi or pvr ( == 1, 0, or p-1)",
	DHErrorWrongHVI:   "DH Error: hvi != hashed data",
	SASuntrustedMiTM:  "Received relayed SAS from untrusted MiTM",
	ConfirmHMACWrong:  "Auth. Error: Bad Confirm pkt HMAC",
	NonceReused:       "Nonce reuse",
	EqualZIDHello:     "Equal ZIDs in Hello",
	GoClearNotAllowed: "GoClear packet received, but not allowed",
}

var enrollmentText = map[InfoEnrollment]string{
	EnrollmentRequest:  "Ask user to confirm or deny an enrollment request",
	EnrollmentCanceled: "User did not confirm the PBX enrollment",
	EnrollmentFailed:   "Enrollment process failed, no PBX secret available",
	EnrollmentOk:       "Enrollment process for this PBX was ok",
}

func lookup(table []string, code int) string {
	if code < 1 || code >= len(table) {
		return unknownCode
	}
	return table[code]
}

// Describe returns the text for a severity and sub-code pair, or
// "unknown code" when the pair is not defined.
func Describe(severity Severity, subCode int) string {
	switch severity {
	case Info:
		return lookup(infoText, subCode)
	case Warning:
		return lookup(warningText, subCode)
	case Severe:
		return lookup(severeText, subCode)
	case ZrtpError:
		if subCode < 0 {
			subCode = -subCode
		}
		if s, ok := zrtpErrorText[subCode]; ok {
			return s
		}
	}
	return unknownCode
}
