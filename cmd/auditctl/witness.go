package main

import (
	"github.com/spf13/cobra"
)

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Anchor every tenant's chain head to the remote witness store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		summary, err := stack.Witness.AnchorAllTenants()
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

var witnessStatusCmd = &cobra.Command{
	Use:   "witness-status <tenant-id>",
	Short: "Compare a tenant's local chain head against its latest anchor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		verification, anchor, err := stack.Witness.VerifyWitness(args[0])
		if err != nil {
			return err
		}

		response := map[string]interface{}{
			"verification":  verification,
			"latest_anchor": anchor,
		}
		if history, _ := cmd.Flags().GetBool("history"); history {
			anchors, err := stack.Remote.ListAnchors(args[0])
			if err != nil {
				return err
			}
			response["history"] = anchors
		}
		return printJSON(response)
	},
}

func init() {
	witnessStatusCmd.Flags().Bool("history", false, "Include every stored anchor, not just the latest")
}
