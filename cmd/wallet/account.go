package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eas-pay/eas_wallet/internal/kyc"
	"github.com/eas-pay/eas_wallet/internal/wallet"
)

func newAccountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the signed in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			status, err := a.kyc.Cached(ctx)
			if err != nil {
				status = kyc.StatusUnknown
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Email\t%s\n", sess.Email)
			fmt.Fprintf(w, "Grid user\t%s\n", sess.GridUserID)
			fmt.Fprintf(w, "Smart account\t%s\n", sess.SmartAccountAddress())
			fmt.Fprintf(w, "Signer key\t%s\n", sess.Account.SmartAccountSignerPublicKey)
			fmt.Fprintf(w, "KYC (cached)\t%s\n", status.Label())
			return w.Flush()
		},
	}
}

func newBalanceCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:     "balance",
		Aliases: []string{"home"},
		Short:   "Show the USDC balance and recent transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if offline {
				b, err := a.wallet.CachedBalance(ctx)
				if err != nil {
					return fmt.Errorf("no cached balance: %w", err)
				}
				fmt.Fprintf(out, "USDC %s (as of %s)\n", b.USDC, b.AsOf.Local().Format("2006-01-02 15:04"))
				return nil
			}

			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			ov, err := a.wallet.Load(ctx, sess)
			if errors.Is(err, wallet.ErrStale) {
				return nil
			}
			if err != nil {
				return a.reportSessionExpiry(ctx, err)
			}

			if ov.Balance != nil {
				fmt.Fprintf(out, "USDC %s\n", ov.Balance.USDC)
			} else {
				fmt.Fprintf(out, "Balance unavailable: %v\n", ov.BalanceErr)
			}

			if ov.TransfersErr != nil {
				fmt.Fprintf(out, "Transfers unavailable: %v\n", ov.TransfersErr)
				return nil
			}
			if len(ov.Transfers) == 0 {
				fmt.Fprintln(out, "No transfers yet.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\nDATE\tDIRECTION\tAMOUNT\tSTATUS\tCOUNTERPARTY")
			for _, t := range ov.Transfers {
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n", t.CreatedAt, t.Direction, t.Amount, t.Currency, t.Status, t.Counterparty)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&offline, "cached", false, "Show the last fetched balance without calling the backend")
	return cmd
}

func newKYCCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kyc",
		Short: "Identity verification required for bank transfers",
	}

	var fullName string
	start := &cobra.Command{
		Use:   "start",
		Short: "Open a verification session and print its links",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			resp, err := a.kyc.Start(ctx, sess.GridUserID, sess.Email, fullName)
			if err != nil {
				return a.reportSessionExpiry(ctx, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Complete verification at:\n  %s\n", resp.KYCLink)
			if resp.TOSLink != "" {
				fmt.Fprintf(out, "Accept the terms of service at:\n  %s\n", resp.TOSLink)
			}
			return nil
		},
	}
	start.Flags().StringVarP(&fullName, "name", "n", "", "Full legal name (required)")
	_ = start.MarkFlagRequired("name")

	status := &cobra.Command{
		Use:   "status",
		Short: "Fetch the current verification status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			st, err := a.kyc.Refresh(ctx, sess.GridUserID)
			if err != nil {
				return a.reportSessionExpiry(ctx, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "KYC status: %s\n", st.Label())
			return nil
		},
	}

	cmd.AddCommand(start, status)
	return cmd
}
