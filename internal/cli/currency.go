package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newCurrencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "currency",
		Short: "Inspect and adjust donut balances",
	}

	cmd.AddCommand(newCurrencyGetCmd())
	cmd.AddCommand(newCurrencySetCmd())

	return cmd
}

func newCurrencyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <owner>",
		Short: "Show a player's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Currency

			if err := client.Get(fmt.Sprintf("/api/v1/admin/currency/%s", url.PathEscape(args[0])), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newCurrencySetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <owner> <amount>",
		Short: "Overwrite a player's balance (clamped by the server)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			var result Currency

			path := fmt.Sprintf("/api/v1/admin/currency/%s", url.PathEscape(args[0]))
			if err := client.Put(path, map[string]int64{"amount": amount}, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}
