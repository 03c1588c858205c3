package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eas-pay/eas_wallet/internal/kyc"
)

func newVirtualAccountsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deposit-accounts",
		Aliases: []string{"virtual-accounts"},
		Short:   "Bank accounts that fund your smart account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			accounts, err := a.funding.List(ctx, sess)
			if err != nil {
				return a.reportSessionExpiry(ctx, err)
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No deposit accounts yet. Open one with `wallet deposit-accounts open`.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCURRENCY\tSTATUS\tBANK\tACCOUNT")
			for _, va := range accounts {
				account := va.AccountNumber
				if va.IBAN != "" {
					account = va.IBAN
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", va.ID, va.Currency, va.Status, va.BankName, account)
			}
			return w.Flush()
		},
	}

	var currency string
	open := &cobra.Command{
		Use:   "open",
		Short: "Open a deposit account (requires approved KYC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			va, err := a.funding.Open(ctx, sess, currency)
			if errors.Is(err, kyc.ErrNotApproved) {
				return fmt.Errorf("%w: run `wallet kyc start` first", err)
			}
			if err != nil {
				return a.reportSessionExpiry(ctx, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s account %s (%s)\n", va.Currency, va.ID, va.Status)
			return nil
		},
	}
	open.Flags().StringVarP(&currency, "currency", "c", "usd", "Account currency: usd or eur")

	cmd.AddCommand(open)
	return cmd
}

func newRecipientsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recipients",
		Short: "List saved bank accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := a.recipients.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved bank accounts.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LABEL\tEXTERNAL ACCOUNT\tGRID USER")
			for _, m := range mappings {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Label, m.ExternalAccountID, m.GridUserID)
			}
			return w.Flush()
		},
	}
}
