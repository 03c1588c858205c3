package identity

import "github.com/eas-pay/eas_wallet/internal/apiclient"

// Mode selects which verification endpoint completes a challenge.
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// Session is the authenticated user context passed to money movement code.
type Session struct {
	Email      string
	GridUserID string
	Token      string
	Account    apiclient.AccountInfo
}

// SmartAccountAddress is the source address for outgoing transfers.
func (s Session) SmartAccountAddress() string {
	return s.Account.SmartAccountAddress
}

// State is the typed session state: Unauthenticated, PendingVerification or
// Authenticated.
type State interface {
	state()
}

// Unauthenticated means no challenge or session is stored.
type Unauthenticated struct{}

// PendingVerification means an OTP was sent and awaits a code.
type PendingVerification struct {
	Email string `json:"email"`
	Mode  Mode   `json:"mode"`
	OTPID string `json:"otp_id,omitempty"`
}

// Authenticated carries the active session.
type Authenticated struct {
	Session Session
}

func (Unauthenticated) state()     {}
func (PendingVerification) state() {}
func (Authenticated) state()       {}
