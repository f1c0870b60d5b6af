package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinelgov/auditchain/pkg/exit"
	"github.com/sentinelgov/auditchain/pkg/suspension"
)

var suspendCmd = &cobra.Command{
	Use:   "suspend <tenant-id>",
	Short: "Emergency glass-break: suspend a tenant and terminate its in-flight calls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		actor, _ := cmd.Flags().GetString("by")
		confirm, _ := cmd.Flags().GetString("confirm")

		if confirm != "" && confirm != suspension.Confirmation {
			return fmt.Errorf("confirmation must be exactly %q", suspension.Confirmation)
		}

		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		receipt, err := stack.Suspension.Suspend(args[0], reason, actor)
		if err != nil {
			return err
		}
		return printJSON(receipt)
	},
}

var sovereignExitCmd = &cobra.Command{
	Use:   "sovereign-exit <tenant-id>",
	Short: "Archive, crypto-shred and tombstone a tenant (irreversible)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, _ := cmd.Flags().GetString("passphrase")
		confirm, _ := cmd.Flags().GetString("confirm")
		out, _ := cmd.Flags().GetString("out")
		ownerUID, _ := cmd.Flags().GetString("owner-uid")

		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		archive, cert, err := stack.Exit.SovereignExit(exit.Request{
			TenantID:     args[0],
			OwnerUID:     ownerUID,
			Passphrase:   passphrase,
			Confirmation: confirm,
		})
		if err != nil {
			return err
		}

		if err := os.WriteFile(out, archive, 0600); err != nil {
			// The silo is already gone; losing the archive here loses the
			// only copy. Surface loudly rather than wrapping quietly.
			return fmt.Errorf("CRITICAL: silo destroyed but archive write to %s failed: %w", out, err)
		}

		cmd.Printf("archive written to %s (%d bytes)\n", out, len(archive))
		return printJSON(cert)
	},
}

var inspectArchiveCmd = &cobra.Command{
	Use:   "inspect-archive <file>",
	Short: "Decrypt and print a sovereign-exit archive's JSON envelope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, _ := cmd.Flags().GetString("passphrase")

		archive, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		plaintext, err := exit.OpenArchive(archive, passphrase)
		if err != nil {
			return err
		}
		cmd.Println(string(plaintext))
		return nil
	},
}

func init() {
	suspendCmd.Flags().String("reason", "", "Why the tenant is being suspended")
	suspendCmd.Flags().String("by", "", "Identity of the suspending administrator")
	suspendCmd.Flags().String("confirm", "", "Optional confirmation string; must match exactly when supplied")
	_ = suspendCmd.MarkFlagRequired("reason")
	_ = suspendCmd.MarkFlagRequired("by")

	sovereignExitCmd.Flags().String("passphrase", "", "Archive passphrase (min 12 characters)")
	sovereignExitCmd.Flags().String("confirm", "", `Must be exactly "PERMANENTLY DELETE ALL DATA"`)
	sovereignExitCmd.Flags().String("out", "", "Path to write the encrypted archive")
	sovereignExitCmd.Flags().String("owner-uid", "", "Owner uid for the remote tenants mirror")
	_ = sovereignExitCmd.MarkFlagRequired("passphrase")
	_ = sovereignExitCmd.MarkFlagRequired("confirm")
	_ = sovereignExitCmd.MarkFlagRequired("out")

	inspectArchiveCmd.Flags().String("passphrase", "", "Passphrase the archive was sealed with")
	_ = inspectArchiveCmd.MarkFlagRequired("passphrase")
}
