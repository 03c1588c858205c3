package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
	"github.com/eas-pay/eas_wallet/internal/identity"
	"github.com/eas-pay/eas_wallet/internal/resend"
	"github.com/eas-pay/eas_wallet/internal/validation"
)

func newLoginCmd(a *app, register bool) *cobra.Command {
	var email string
	use, short := "login", "Sign in with a code sent to your email"
	if register {
		use, short = "register", "Create an account with a code sent to your email"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, a, email, register)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// runLogin sends the challenge and reads codes until one verifies. Typing "r"
// asks for a new code once the resend countdown is over.
func runLogin(cmd *cobra.Command, a *app, email string, register bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()

	sent := false
	timer := resend.New(a.cfg.ResendSeconds, func(ctx context.Context) error {
		if sent {
			return a.identity.Resend(ctx)
		}
		if register {
			return a.identity.StartRegistration(ctx, email)
		}
		return a.identity.StartLogin(ctx, email)
	}, resend.WithOnChange(func(s resend.State) {
		if s.Enabled && sent {
			fmt.Fprintln(out, "You can request a new code now: type r.")
		}
	}))

	if err := timer.HandleResend(ctx); err != nil {
		return describeAuthError(err)
	}
	sent = true
	go timer.Run(ctx)

	fmt.Fprintf(out, "We sent a 6-digit code to %s.\n", strings.ToLower(strings.TrimSpace(email)))
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "Code (r to resend): ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return io.ErrUnexpectedEOF
		}
		input := strings.TrimSpace(scanner.Text())

		if strings.EqualFold(input, "r") {
			err := timer.HandleResend(ctx)
			switch {
			case errors.Is(err, resend.ErrCoolingDown):
				fmt.Fprintf(out, "Please wait %ds before requesting a new code.\n", timer.State().Countdown)
			case err != nil:
				fmt.Fprintln(out, describeAuthError(err))
			default:
				fmt.Fprintln(out, "A new code is on its way.")
			}
			continue
		}

		sess, err := a.identity.VerifyOTP(ctx, input)
		if err == nil {
			printSession(out, sess)
			return nil
		}
		if validation.IsValidationError(err) || isWrongCode(err) {
			fmt.Fprintln(out, describeAuthError(err))
			continue
		}
		return describeAuthError(err)
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify CODE",
		Short: "Finish a pending sign in with the emailed code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.identity.VerifyOTP(cmd.Context(), args[0])
			if err != nil {
				return describeAuthError(err)
			}
			printSession(cmd.OutOrStdout(), sess)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the session on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.identity.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func printSession(w io.Writer, sess identity.Session) {
	fmt.Fprintf(w, "Signed in as %s\n", sess.Email)
	fmt.Fprintf(w, "Smart account: %s\n", sess.SmartAccountAddress())
}

func isWrongCode(err error) bool {
	apiErr, ok := apiclient.AsAPIError(err)
	return ok && apiErr.Status >= 400 && apiErr.Status < 500 && !apiclient.IsSessionExpired(err) && !apiclient.IsRateLimited(err)
}

func describeAuthError(err error) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return verr
	case apiclient.IsRateLimited(err):
		return fmt.Errorf("too many codes requested, try again in a minute")
	case errors.Is(err, identity.ErrNoPendingChallenge):
		return fmt.Errorf("no sign in in progress, run `wallet login` first")
	}
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		return errors.New(apiErr.UserMessage())
	}
	return err
}
