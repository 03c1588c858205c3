package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// Backend proxy endpoints.
const (
	PathAuth                      = "/auth"
	PathRegister                  = "/register"
	PathVerifyOTPAndCreateAccount = "/verify-otp-and-create-account"
	PathVerifyOTP                 = "/verify-otp"
	PathCreateSmartAccount        = "/create-smart-account"
	PathBalance                   = "/balance"
	PathPreparePaymentIntent      = "/prepare-payment-intent"
	PathKYC                       = "/kyc"
	PathKYCStatus                 = "/kyc-status"
	PathVirtualAccounts           = "/get-virtual-accounts"
	PathOpenVirtualAccount        = "/open-virtual-account"
	PathTransfers                 = "/get-transfers"
	PathConfirm                   = "/confirm"
	PathSentry                    = "/sentry"
	PathLogout                    = "/logout"
)

func (c *Client) post(ctx context.Context, path string, body, out any, idempotencyKey string) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPost, Body: body, IdempotencyKey: idempotencyKey}, out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodGet, Query: query}, out)
}

// Auth starts an OTP challenge for an existing user.
func (c *Client) Auth(ctx context.Context, email string) (ChallengeResponse, error) {
	var out ChallengeResponse
	err := c.post(ctx, PathAuth, EmailRequest{Email: email}, &out, "")
	return out, err
}

// Register starts an OTP challenge for a new user.
func (c *Client) Register(ctx context.Context, email string) (ChallengeResponse, error) {
	var out ChallengeResponse
	err := c.post(ctx, PathRegister, EmailRequest{Email: email}, &out, "")
	return out, err
}

// VerifyOTP completes a login challenge.
func (c *Client) VerifyOTP(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	var out VerifyResponse
	err := c.post(ctx, PathVerifyOTP, req, &out, "")
	return out, err
}

// VerifyOTPAndCreateAccount completes a registration challenge.
func (c *Client) VerifyOTPAndCreateAccount(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	var out VerifyResponse
	err := c.post(ctx, PathVerifyOTPAndCreateAccount, req, &out, "")
	return out, err
}

// CreateSmartAccount provisions the user's smart account.
func (c *Client) CreateSmartAccount(ctx context.Context, req CreateSmartAccountRequest) (AccountInfo, error) {
	var out AccountInfo
	err := c.post(ctx, PathCreateSmartAccount, req, &out, "")
	return out, err
}

// Balance fetches token balances for a smart account address.
func (c *Client) Balance(ctx context.Context, address string) (BalanceResponse, error) {
	var out BalanceResponse
	err := c.get(ctx, PathBalance, url.Values{"address": {address}}, &out)
	return out, err
}

// PreparePaymentIntent creates a server-side payment intent. A non-empty
// idempotencyKey is forwarded so the server can deduplicate.
func (c *Client) PreparePaymentIntent(ctx context.Context, req PrepareRequest, idempotencyKey string) (PaymentIntent, error) {
	var out PaymentIntent
	err := c.post(ctx, PathPreparePaymentIntent, req, &out, idempotencyKey)
	return out, err
}

// Confirm submits a stamped payload for a prepared intent.
func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResponse, error) {
	var out ConfirmResponse
	err := c.post(ctx, PathConfirm, req, &out, "")
	return out, err
}

// StartKYC opens a hosted KYC session.
func (c *Client) StartKYC(ctx context.Context, req KYCRequest) (KYCResponse, error) {
	var out KYCResponse
	err := c.post(ctx, PathKYC, req, &out, "")
	return out, err
}

// KYCStatus fetches the authoritative KYC status.
func (c *Client) KYCStatus(ctx context.Context, gridUserID string) (KYCStatusResponse, error) {
	var out KYCStatusResponse
	err := c.get(ctx, PathKYCStatus, url.Values{"grid_user_id": {gridUserID}}, &out)
	return out, err
}

// VirtualAccounts lists deposit accounts for the user.
func (c *Client) VirtualAccounts(ctx context.Context, gridUserID string) ([]VirtualAccount, error) {
	var out VirtualAccountsResponse
	if err := c.get(ctx, PathVirtualAccounts, url.Values{"grid_user_id": {gridUserID}}, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// OpenVirtualAccount requests a new deposit account.
func (c *Client) OpenVirtualAccount(ctx context.Context, req OpenVirtualAccountRequest, idempotencyKey string) (VirtualAccount, error) {
	var out VirtualAccount
	err := c.post(ctx, PathOpenVirtualAccount, req, &out, idempotencyKey)
	return out, err
}

// Transfers fetches the transfer history for the user.
func (c *Client) Transfers(ctx context.Context, gridUserID string) ([]Transfer, error) {
	var out TransfersResponse
	if err := c.get(ctx, PathTransfers, url.Values{"grid_user_id": {gridUserID}}, &out); err != nil {
		return nil, err
	}
	return out.Transfers, nil
}

// ReportError forwards a client-side failure to crash reporting.
func (c *Client) ReportError(ctx context.Context, report ErrorReport) error {
	return c.post(ctx, PathSentry, report, nil, "")
}

// Logout revokes the current session token on the proxy.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, PathLogout, struct{}{}, nil, "")
}
