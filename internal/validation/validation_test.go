package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
)

func TestEmail(t *testing.T) {
	assert.NoError(t, Email("user@example.com"))
	assert.NoError(t, Email("  user@example.com "))

	err := Email("not-an-email")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "email", vErr.Fields[0].Field)
	assert.Equal(t, "Invalid email format", vErr.Fields[0].Message)

	assert.Error(t, Email(""))
}

func TestOTPCode(t *testing.T) {
	assert.NoError(t, OTPCode("123456"))
	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		assert.Error(t, OTPCode(code), code)
	}
}

func TestWalletAddress(t *testing.T) {
	assert.NoError(t, WalletAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	assert.NoError(t, WalletAddress("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"))
	assert.Error(t, WalletAddress(""))
	assert.Error(t, WalletAddress("0x12"))
	assert.Error(t, WalletAddress("0x5290-8400"))
}

func TestBankDetailsACH(t *testing.T) {
	ok := apiclient.BankDetails{AccountOwnerName: "Ada Lovelace", RoutingNumber: "021000021", AccountNumber: "123456789"}
	assert.NoError(t, BankDetails(apiclient.RailACH, ok))

	bad := ok
	bad.RoutingNumber = "12345"
	err := BankDetails(apiclient.RailACH, bad)
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "routing_number", vErr.Fields[0].Field)
}

func TestBankDetailsSEPA(t *testing.T) {
	ok := apiclient.BankDetails{AccountOwnerName: "Ada Lovelace", IBAN: "DE89 3704 0044 0532 0130 00", BIC: "COBADEFFXXX"}
	assert.NoError(t, BankDetails(apiclient.RailSEPA, ok))

	missing := apiclient.BankDetails{AccountOwnerName: "Ada Lovelace"}
	err := BankDetails(apiclient.RailSEPA, missing)
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Fields, 2)
}

func TestBankDetailsUnknownRail(t *testing.T) {
	assert.True(t, IsValidationError(BankDetails("wire", apiclient.BankDetails{})))
}
