package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/payments"
)

type sendFlags struct {
	amount    string
	rail      string
	to        string
	accountID string
	saved     bool
	label     string
	yes       bool
	bank      apiclient.BankDetails
}

func newSendCmd(a *app) *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send USDC to a wallet address or a bank account",
		Example: `  wallet send --amount 10 --to <address>
  wallet send --amount 25.00 --rail ach --owner "Jane Doe" --routing-number 021000021 --account-number 123456789 --label Checking
  wallet send --amount 25.00 --rail ach --saved`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, a, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.amount, "amount", "a", "", "Amount in USDC, at most two decimals (required)")
	fl.StringVar(&f.rail, "rail", apiclient.RailWallet, "Destination rail: wallet, ach or sepa")
	fl.StringVar(&f.to, "to", "", "Recipient wallet address (wallet rail)")
	fl.StringVar(&f.accountID, "external-account", "", "Saved external account id")
	fl.BoolVar(&f.saved, "saved", false, "Use the bank account saved for this user")
	fl.StringVar(&f.label, "label", "", "Label for a new bank account")
	fl.BoolVarP(&f.yes, "yes", "y", false, "Do not ask for confirmation")
	fl.StringVar(&f.bank.AccountOwnerName, "owner", "", "Bank account owner name")
	fl.StringVar(&f.bank.BankName, "bank", "", "Bank name")
	fl.StringVar(&f.bank.AccountNumber, "account-number", "", "ACH account number")
	fl.StringVar(&f.bank.RoutingNumber, "routing-number", "", "ACH routing number")
	fl.StringVar(&f.bank.IBAN, "iban", "", "SEPA IBAN")
	fl.StringVar(&f.bank.BIC, "bic", "", "SEPA BIC")
	fl.StringVar(&f.bank.Country, "country", "", "Bank country code")
	_ = cmd.MarkFlagRequired("amount")
	cmd.MarkFlagsMutuallyExclusive("to", "external-account", "saved")
	return cmd
}

func runSend(cmd *cobra.Command, a *app, f sendFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	in := payments.Input{
		Amount:  f.amount,
		Rail:    strings.ToLower(strings.TrimSpace(f.rail)),
		Address: f.to,
		Label:   f.label,
	}
	target := f.to
	if in.Rail != apiclient.RailWallet {
		switch {
		case f.accountID != "":
			in.ExternalAccountID = f.accountID
			target = f.accountID
		case f.saved:
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			m, ok, err := a.recipients.ForUser(ctx, sess.GridUserID)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("no saved bank account, pass the bank details instead")
			}
			in.ExternalAccountID = m.ExternalAccountID
			if in.Label == "" {
				in.Label = m.Label
			}
			target = m.Label
		default:
			bank := f.bank
			in.Bank = &bank
			target = bankSummary(in.Rail, bank)
		}
	}

	if !f.yes {
		fmt.Fprintf(out, "Send %s USDC via %s to %s? [y/N] ", f.amount, in.Rail, target)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if !scanner.Scan() || !strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	res, err := a.flow(cmd).Execute(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Intent %s: %s\n", res.Intent.ID, res.Status)
	if res.Confirmation.TransactionHash != "" {
		fmt.Fprintf(out, "Transaction: %s\n", res.Confirmation.TransactionHash)
	}
	return nil
}

func bankSummary(rail string, b apiclient.BankDetails) string {
	number := b.AccountNumber
	if rail == apiclient.RailSEPA {
		number = b.IBAN
	}
	if len(number) > 4 {
		number = "…" + number[len(number)-4:]
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", b.AccountOwnerName, number))
}
