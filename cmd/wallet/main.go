package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "wallet",
		Short:         "EAS wallet",
		Long:          "Sign in with an email code, check your balance, pass KYC and send USDC to wallets or bank accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.AddCommand(
		newLoginCmd(a, false),
		newLoginCmd(a, true),
		newVerifyCmd(a),
		newLogoutCmd(a),
		newAccountCmd(a),
		newBalanceCmd(a),
		newKYCCmd(a),
		newVirtualAccountsCmd(a),
		newRecipientsCmd(a),
		newSendCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the wallet version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "wallet version %s\n", version)
			},
		},
	)
	return root
}
