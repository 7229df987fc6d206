package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newTownsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "towns",
		Short: "Town file administration",
	}

	cmd.AddCommand(newTownsImportCmd())

	return cmd
}

func newTownsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <owner> <file>",
		Short: "Replace a player's town with a save file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Message

			path := fmt.Sprintf("/api/v1/admin/towns/%s/import", url.PathEscape(args[0]))
			if err := client.Upload(path, args[1], nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}
