package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Player identity management",
	}

	cmd.AddCommand(newUsersCreateCmd())
	cmd.AddCommand(newUsersTokenCmd())

	return cmd
}

func newUsersCreateCmd() *cobra.Command {
	var (
		email     string
		password  string
		mayhemID  string
		anonymous bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a player identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" && !anonymous {
				return errors.New("either --email or --anonymous is required")
			}

			req := map[string]any{"anonymous": anonymous}
			if email != "" {
				req["email"] = email
			}
			if password != "" {
				req["password"] = password
			}
			if mayhemID != "" {
				req["mayhem_id"] = mayhemID
			}

			var result User

			if err := client.Post("/api/v1/admin/users", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Player email")
	cmd.Flags().StringVar(&password, "player-password", "", "Player password (optional)")
	cmd.Flags().StringVar(&mayhemID, "mayhem-id", "", "Mayhem id (generated when empty)")
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "Create an anonymous player")

	return cmd
}

func newUsersTokenCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Rotate a player's access token using their password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--player-password is required")
			}

			var result Token
			req := map[string]string{"email": args[0], "password": password}
			if err := client.Post("/api/v1/public/token", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "player-password", "", "Player password")

	return cmd
}
