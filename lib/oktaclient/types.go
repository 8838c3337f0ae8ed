package oktaclient

import "errors"

var (
	ErrInvalidCredentials = errors.New("Okta credentials are not valid")
	ErrInvalidSession     = errors.New("Okta session is not valid")
	ErrUnexpectedResponse = errors.New("We got an unexpected response")
	ErrNotSupported       = errors.New("MFA factor is not supported")
)

const (
	StatusSuccess         = "SUCCESS"
	StatusMFARequired     = "MFA_REQUIRED"
	StatusMFAChallenge    = "MFA_CHALLENGE"
	StatusPasswordExpired = "PASSWORD_EXPIRED"
	StatusLockedOut       = "LOCKED_OUT"

	FactorResultWaiting  = "WAITING"
	FactorResultRejected = "REJECTED"
	FactorResultTimeout  = "TIMEOUT"

	FactorTypePush        = "push"
	FactorTypeTOTP        = "token:software:totp"
	FactorTypeHardwareOTP = "token:hardware"
	FactorTypeSMS         = "sms"
)

type userAuthn struct {
	StateToken   string            `json:"stateToken"`
	SessionToken string            `json:"sessionToken"`
	ExpiresAt    string            `json:"expiresAt"`
	Status       string            `json:"status"`
	FactorResult string            `json:"factorResult"`
	Embedded     userAuthnEmbedded `json:"_embedded"`
}

type userAuthnEmbedded struct {
	Factors []Factor `json:"factors"`
	Factor  Factor   `json:"factor"`
}

// Factor is an MFA device enrolled in Okta.
type Factor struct {
	ID         string `json:"id"`
	FactorType string `json:"factorType"`
	Provider   string `json:"provider"`
}

type stateToken struct {
	StateToken string `json:"stateToken"`
	PassCode   string `json:"passCode,omitempty"`
}

type sessionRequest struct {
	SessionToken string `json:"sessionToken"`
}

type sessionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorSummary string `json:"errorSummary"`
	ErrorID      string `json:"errorId"`
}
