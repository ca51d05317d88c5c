package cli

import (
	"fmt"

	library "github.com/goliatone/go-library-client"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				var err error
				if email, err = a.prompter.Line("Email: "); err != nil {
					return err
				}
			}
			password, err := a.prompter.Password("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			session, err := a.Client.Sessions.Login(cmd.Context(), library.Credentials{
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Welcome, %s!\n", session.Identity.FirstName)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return screen(cmd, library.ScreenLogin)
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.Client.Sessions.Logout(cmd.Context())
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := a.session(cmd.Context())
			if !session.Authenticated() {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}
			id := session.Identity
			fmt.Fprintf(a.out, "%s <%s>\nrole: %s\nid: %d\n", id.DisplayName(), id.Email, session.Role(), id.ID)
			if exp := session.Claims().Expires(); !exp.IsZero() {
				fmt.Fprintf(a.out, "expires: %s\n", exp.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newRegisterCmd(a *App) *cobra.Command {
	var req library.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.prompter.Password("Password (min 6 characters): ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			req.Password = password

			if err := a.Client.Sessions.Register(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Account created. You can now log in.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "account email")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	return screen(cmd, library.ScreenRegister)
}
