package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Review submitted towns",
	}

	cmd.AddCommand(newPendingSubmitCmd())
	cmd.AddCommand(newPendingListCmd())
	cmd.AddCommand(newPendingGetCmd())
	cmd.AddCommand(newPendingApproveCmd())
	cmd.AddCommand(newPendingRejectCmd())
	cmd.AddCommand(newPendingCleanupCmd())

	return cmd
}

func newPendingSubmitCmd() *cobra.Command {
	var email, townName, description string

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a town save for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Submitted

			fields := map[string]string{
				"email":       email,
				"town_name":   townName,
				"description": description,
			}
			if err := client.Upload("/api/v1/public/pending-towns", args[0], fields, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Submitter email (required)")
	cmd.Flags().StringVar(&townName, "name", "", "Town name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPendingListCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List towns awaiting a decision, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/pending-towns"
			if email != "" {
				path += "?email=" + url.QueryEscape(email)
			}

			var result PendingTownList

			if err := client.Get(path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Only show submissions from this email")

	return cmd
}

func newPendingGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result PendingTown

			if err := client.Get(fmt.Sprintf("/api/v1/pending-towns/%s", url.PathEscape(args[0])), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newPendingApproveCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a submission and import it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"id": args[0]}
			if target != "" {
				req["target_email"] = target
			}

			var result ApproveResult

			if err := client.Post("/api/v1/pending-towns/approve", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Import into this player instead of the submitter")

	return cmd
}

func newPendingRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a submission and delete its upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"id": args[0], "reason": reason}

			var result Message

			if err := client.Post("/api/v1/pending-towns/reject", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the rejection")

	return cmd
}

func newPendingCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Purge decided submissions older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]int{}
			if cmd.Flags().Changed("days") {
				req["days_to_keep"] = days
			}

			var result CleanupResult

			if err := client.Post("/api/v1/pending-towns/cleanup", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Days to keep (default: server setting)")

	return cmd
}
