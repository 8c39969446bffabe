package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/evservice/core/authapi"
)

func newPasswordCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Password recovery and account verification",
		Long: `Recover a password with a one-time code sent by email:

  evservice password forgot --email lan@example.com
  evservice password verify-otp --email lan@example.com --code 123456
  evservice password reset --email lan@example.com --code 123456 --new-password ...`,
	}

	var email, code, newPassword, token string

	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "Send a one-time code to the account email",
		Args:  cobra.NoArgs,
		RunE: opts.authCall(func(ctx context.Context, c *authapi.Client) (string, error) {
			return c.ForgotPassword(ctx, email)
		}, "A verification code was sent to your email."),
	}
	forgot.Flags().StringVar(&email, "email", "", "account email")

	verify := &cobra.Command{
		Use:   "verify-otp",
		Short: "Check a one-time code",
		Args:  cobra.NoArgs,
		RunE: opts.authCall(func(ctx context.Context, c *authapi.Client) (string, error) {
			return c.VerifyOTP(ctx, email, code)
		}, "Code verified."),
	}
	verify.Flags().StringVar(&email, "email", "", "account email")
	verify.Flags().StringVar(&code, "code", "", "one-time code from the email")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password using a verified code",
		Args:  cobra.NoArgs,
		RunE: opts.authCall(func(ctx context.Context, c *authapi.Client) (string, error) {
			return c.ResetPassword(ctx, email, code, newPassword)
		}, "Password updated."),
	}
	reset.Flags().StringVar(&email, "email", "", "account email")
	reset.Flags().StringVar(&code, "code", "", "one-time code from the email")
	reset.Flags().StringVar(&newPassword, "new-password", "", "the new password")

	resend := &cobra.Command{
		Use:   "resend-verification",
		Short: "Resend the account verification email",
		Args:  cobra.NoArgs,
		RunE: opts.authCall(func(ctx context.Context, c *authapi.Client) (string, error) {
			return c.ResendVerification(ctx, email)
		}, "Verification email sent."),
	}
	resend.Flags().StringVar(&email, "email", "", "account email")

	verifyToken := &cobra.Command{
		Use:   "verify-token",
		Short: "Check a password reset link token",
		Args:  cobra.NoArgs,
		RunE: opts.authCall(func(ctx context.Context, c *authapi.Client) (string, error) {
			return "", c.VerifyResetToken(ctx, token)
		}, "Reset token is valid."),
	}
	verifyToken.Flags().StringVar(&token, "token", "", "token from the reset link")

	cmd.AddCommand(forgot, verify, reset, resend, verifyToken)
	return cmd
}

// authCall runs call against the backend and prints its message, or
// fallback when the backend sent none.
func (o *options) authCall(call func(context.Context, *authapi.Client) (string, error), fallback string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := o.client()
		if err != nil {
			return err
		}
		msg, err := call(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("%s", authapi.Message(err))
		}
		if msg == "" {
			msg = fallback
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}
}
