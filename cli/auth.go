package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (a *App) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.auth.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (a *App) registerCmd() *cobra.Command {
	var username, email, password, avatarPath string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (sign in separately afterwards)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var avatar []byte
			avatarName := ""
			if avatarPath != "" {
				data, err := os.ReadFile(avatarPath)
				if err != nil {
					return fmt.Errorf("read avatar: %w", err)
				}
				avatar = data
				avatarName = avatarPath
			}

			msg, err := a.auth.Register(cmd.Context(), username, email, password, avatar, avatarName)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, msg)
			fmt.Fprintln(a.out, "Please sign in to continue.")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "desired username")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&avatarPath, "avatar", "", "optional avatar image file")
	return cmd
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.auth.Logout(cmd.Context())
		},
	}
}

func (a *App) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, posts, err := a.auth.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>\n", user.Username, user.Email)
			if user.Bio != "" {
				fmt.Fprintln(a.out, user.Bio)
			}
			fmt.Fprintf(a.out, "%d post(s)\n", len(posts))
			return nil
		},
	}
}
