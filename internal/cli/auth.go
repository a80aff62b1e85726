package cli

import (
	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/cli/common"
	"revbridge.dev/revbridge/internal/runtime"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to the git hosting provider",
	}
	cmd.AddCommand(newAuthLoginCmd(), newAuthStatusCmd(), newAuthLogoutCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with a device code",
		Long: `Sign in with the OAuth device flow. A code is shown and the verification
page opens in the browser; the command waits until the code is approved,
denied or expires. Any earlier session is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				session, err := ctx.Auth.StartDeviceFlow(cmd.Context())
				if err != nil {
					return err
				}
				ctx.Splog.Info("Signed in as %s.", session.User.Login)
				return nil
			})
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in user",
		Long: `Show the signed-in user. The stored token is checked with the provider
first; a token that no longer works is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				session := ctx.Auth.GetSession(cmd.Context())
				if asJSON {
					return common.PrintJSON(cmd, session)
				}
				if session == nil {
					ctx.Splog.Info("Not signed in.")
					ctx.Splog.Tip("Run `revbridge auth login` to sign in.")
					return nil
				}
				ctx.Splog.Info("Signed in as %s.", session.User.Login)
				if session.User.Email != "" {
					ctx.Splog.Info("Email: %s", session.User.Email)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session as JSON")
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return common.Run(cmd, func(ctx *runtime.Context) error {
				if err := ctx.Auth.Logout(); err != nil {
					return err
				}
				ctx.Splog.Info("Signed out.")
				return nil
			})
		},
	}
}
