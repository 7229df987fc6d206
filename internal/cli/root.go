package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "townctl",
		Short: "CLI tool for the town server moderation API",
		Long: `townctl talks to the town server's JSON API.

It reviews submitted towns, adjusts donut balances, imports towns and seeds
player identities. Moderation and admin commands need moderator credentials
(--user and --password, or TOWNCTL_USER and TOWNCTL_PASSWORD).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load password from file if not provided via flag/env
			if err := cfg.LoadPassword(); err != nil {
				return err
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, cfg.Username, cfg.Password)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: TOWNCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Username, "user", cfg.Username, "Moderator username (env: TOWNCTL_USER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Password, "password", cfg.Password, "Moderator password (env: TOWNCTL_PASSWORD)")
	rootCmd.PersistentFlags().StringVar(&cfg.PasswordFile, "password-file", cfg.PasswordFile, "Password file path (env: TOWNCTL_PASSWORD_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newPendingCmd())
	rootCmd.AddCommand(newCurrencyCmd())
	rootCmd.AddCommand(newTownsCmd())
	rootCmd.AddCommand(newUsersCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
