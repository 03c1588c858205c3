package apiclient

import "encoding/json"

// AccountInfo identifies the user's smart account on the Grid service.
type AccountInfo struct {
	MPCPrimaryID                string `json:"mpc_primary_id"`
	WalletID                    string `json:"wallet_id"`
	SmartAccountSignerPublicKey string `json:"smart_account_signer_public_key"`
	SmartAccountAddress         string `json:"smart_account_address"`
	GridUserID                  string `json:"grid_user_id"`
}

// EmailRequest starts an OTP challenge for an email address.
type EmailRequest struct {
	Email string `json:"email"`
}

// ChallengeResponse acknowledges an OTP challenge.
type ChallengeResponse struct {
	Status    string `json:"status,omitempty"`
	OTPID     string `json:"otp_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// VerifyRequest exchanges an OTP code for credentials.
type VerifyRequest struct {
	Email            string `json:"email"`
	OTPCode          string `json:"otp_code"`
	OTPID            string `json:"otp_id,omitempty"`
	SessionPublicKey string `json:"session_public_key"`
}

// VerifyResponse carries the encrypted credentials bundle issued for the
// session public key.
type VerifyResponse struct {
	GridUserID        string       `json:"grid_user_id"`
	CredentialsBundle string       `json:"credentials_bundle"`
	SignerPublicKey   string       `json:"signer_public_key,omitempty"`
	SessionToken      string       `json:"session_token,omitempty"`
	Account           *AccountInfo `json:"account,omitempty"`
}

// CreateSmartAccountRequest asks Grid to provision the user's smart account.
type CreateSmartAccountRequest struct {
	GridUserID string `json:"grid_user_id"`
	Email      string `json:"email,omitempty"`
}

// TokenBalance is one token holding in base units. Decimals is nil when the
// upstream omitted it.
type TokenBalance struct {
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Decimals *int32 `json:"decimals,omitempty"`
}

// BalanceResponse lists balances held by a smart account.
type BalanceResponse struct {
	Address  string         `json:"address"`
	Balances []TokenBalance `json:"balances"`
}

// Rails supported for destinations.
const (
	RailWallet = "wallet"
	RailACH    = "ach"
	RailSEPA   = "sepa"
)

// BankDetails describes a new external bank account.
type BankDetails struct {
	AccountOwnerName string `json:"account_owner_name"`
	BankName         string `json:"bank_name,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
	RoutingNumber    string `json:"routing_number,omitempty"`
	IBAN             string `json:"iban,omitempty"`
	BIC              string `json:"bic,omitempty"`
	Country          string `json:"country,omitempty"`
}

// Source describes where funds are debited from.
type Source struct {
	SmartAccountAddress string `json:"smart_account_address"`
	Currency            string `json:"currency"`
}

// Destination describes where funds are credited to.
type Destination struct {
	Rail              string       `json:"rail"`
	Currency          string       `json:"currency"`
	Address           string       `json:"address,omitempty"`
	ExternalAccountID string       `json:"external_account_id,omitempty"`
	BankAccount       *BankDetails `json:"bank_account,omitempty"`
}

// PrepareRequest asks the backend to prepare a payment intent.
type PrepareRequest struct {
	GridUserID     string      `json:"grid_user_id"`
	Amount         string      `json:"amount"`
	Source         Source      `json:"source"`
	Destination    Destination `json:"destination"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
}

// PaymentIntent is the server-side transfer created by prepare. The client
// never mutates it; it only signs MPCPayload.
type PaymentIntent struct {
	ID                string      `json:"id"`
	Amount            string      `json:"amount"`
	Source            Source      `json:"source"`
	Destination       Destination `json:"destination"`
	Status            string      `json:"status"`
	MPCPayload        string      `json:"mpc_payload"`
	IntentPayload     string      `json:"intent_payload,omitempty"`
	TransactionHash   string      `json:"transaction_hash,omitempty"`
	ExternalAccountID string      `json:"external_account_id,omitempty"`
}

// ConfirmRequest submits the stamped payload for a prepared intent.
type ConfirmRequest struct {
	IntentPayload string `json:"intentPayload"`
	MPCPayload    string `json:"mpcPayload"`
}

// ConfirmResponse reports the terminal state assigned by the server.
type ConfirmResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}

// KYCRequest starts a KYC session with the provider.
type KYCRequest struct {
	GridUserID string `json:"grid_user_id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Type       string `json:"type"`
}

// KYCResponse carries the hosted KYC and terms-of-service links.
type KYCResponse struct {
	CustomerID string `json:"customer_id"`
	KYCLink    string `json:"kyc_link"`
	TOSLink    string `json:"tos_link,omitempty"`
	Status     string `json:"kyc_status,omitempty"`
}

// KYCStatusResponse is the authoritative KYC status from the provider.
type KYCStatusResponse struct {
	CustomerID string `json:"customer_id,omitempty"`
	Status     string `json:"status"`
}

// VirtualAccount is a bank deposit account funding the smart account.
type VirtualAccount struct {
	ID            string `json:"id"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	BIC           string `json:"bic,omitempty"`
}

// OpenVirtualAccountRequest asks for a new deposit account.
type OpenVirtualAccountRequest struct {
	GridUserID          string `json:"grid_user_id"`
	Currency            string `json:"currency"`
	SmartAccountAddress string `json:"smart_account_address"`
}

// Transfer is one entry of the transfer history.
type Transfer struct {
	ID              string `json:"id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	Direction       string `json:"direction,omitempty"`
	Counterparty    string `json:"counterparty,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// TransfersResponse wraps the transfer history list.
type TransfersResponse struct {
	Transfers []Transfer `json:"transfers"`
}

// VirtualAccountsResponse wraps the virtual account list.
type VirtualAccountsResponse struct {
	Accounts []VirtualAccount `json:"accounts"`
}

// ErrorReport is forwarded to the crash reporting endpoint.
type ErrorReport struct {
	Message string            `json:"message"`
	Level   string            `json:"level"`
	Context map[string]string `json:"context,omitempty"`
}

// RawResponse is an undecoded JSON body, used by the proxy when forwarding.
type RawResponse = json.RawMessage
