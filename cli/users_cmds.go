package cli

import (
	"fmt"
	"strings"

	library "github.com/goliatone/go-library-client"
	"github.com/spf13/cobra"
)

func newUsersCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}
	cmd.AddCommand(
		newUsersListCmd(a),
		newUsersUpdateCmd(a),
		newUsersDeleteCmd(a),
	)
	return screen(cmd, library.ScreenUsers)
}

func newUsersListCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.Client.Cache.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			renderUsers(a.out, users)
			return nil
		},
	}
	cmd = screen(cmd, library.ScreenUsers)
	return affordance(cmd, library.AffordanceManageUsers)
}

func newUsersUpdateCmd(a *App) *cobra.Command {
	var in library.UserUpdate
	var role string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user, keeping fields that are not given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}

			newRole, ok := library.ParseRole(strings.ToUpper(strings.TrimSpace(role)))
			if cmd.Flags().Changed("role") && !ok {
				return fmt.Errorf("invalid role %q, use USER or ADMIN", role)
			}

			users, err := a.Client.Cache.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			var current *library.User
			for i := range users {
				if users[i].ID == id {
					current = &users[i]
					break
				}
			}
			if current == nil {
				return fmt.Errorf("user %d not found", id)
			}

			update := library.UserUpdate{
				Email:     pick(cmd, "email", in.Email, current.Email),
				FirstName: pick(cmd, "first-name", in.FirstName, current.FirstName),
				LastName:  pick(cmd, "last-name", in.LastName, current.LastName),
				Role:      pick(cmd, "role", newRole, current.Role),
				Password:  in.Password,
			}

			user, err := a.Client.Cache.UpdateUser(cmd.Context(), id, update)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated user %d: %s (%s)\n", user.ID, user.Email, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "email")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&role, "role", "", "USER or ADMIN")
	cmd.Flags().StringVar(&in.Password, "password", "", "new password, empty keeps the current one")
	cmd = screen(cmd, library.ScreenUsers)
	return affordance(cmd, library.AffordanceManageUsers)
}

func newUsersDeleteCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			if err := a.Client.Cache.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted user %d\n", id)
			return nil
		},
	}
	cmd = screen(cmd, library.ScreenUsers)
	return affordance(cmd, library.AffordanceManageUsers)
}
