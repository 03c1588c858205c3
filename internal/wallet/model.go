package wallet

import (
	"time"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/payments"
)

// Balance is the smart account holding shown on the home screen.
type Balance struct {
	Address string                   `json:"address"`
	Tokens  []apiclient.TokenBalance `json:"tokens"`
	// USDC is the display amount with two decimals.
	USDC string    `json:"usdc"`
	AsOf time.Time `json:"as_of"`
}

// TransferItem is one row of the transfer history.
type TransferItem struct {
	ID              string
	Amount          string
	Currency        string
	Status          payments.TransferStatus
	Direction       string
	Counterparty    string
	TransactionHash string
	CreatedAt       string
}

// Overview is the result of one load. Balance and transfers succeed or fail
// independently.
type Overview struct {
	Generation   uint64
	Balance      *Balance
	BalanceErr   error
	Transfers    []TransferItem
	TransfersErr error
}
