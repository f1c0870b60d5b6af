package main

import (
	"github.com/spf13/cobra"

	"github.com/sentinelgov/auditchain/pkg/audit"
	"github.com/sentinelgov/auditchain/pkg/types"
)

var pulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Write one uptime pulse round across every tenant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		driver := stack.NewPulseDriver(0)
		summary, err := driver.RunOnce()
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

var raioCmd = &cobra.Command{
	Use:   "raio",
	Short: "Manage RAIO human-supervisor check-ins",
}

var raioCheckinCmd = &cobra.Command{
	Use:   "checkin <tenant-id>",
	Short: "Record a RAIO check-in, re-authorizing the tenant's agent for 30 days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		fingerprint, _ := cmd.Flags().GetString("fingerprint")

		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		tenantID := args[0]
		report, err := stack.Verifier.Verify(tenantID)
		if err != nil {
			return err
		}

		rec := types.GovernanceRecord{
			RaioUserID:         userID,
			DigitalFingerprint: fingerprint,
			MerkleRootSnapshot: report.ChainHeadHash,
		}
		if err := stack.Governance.RecordCheckin(tenantID, rec); err != nil {
			return err
		}
		entry, err := stack.Logger.WriteRaioCheckin(tenantID, rec)
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}

var raioStatusCmd = &cobra.Command{
	Use:   "status <tenant-id>",
	Short: "Show whether the tenant's most recent check-in is still valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		auth, err := stack.Governance.IsRaioAuthorized(args[0])
		if err != nil {
			return err
		}
		return printJSON(auth)
	},
}

var adminAccessCmd = &cobra.Command{
	Use:   "admin-access <tenant-id>",
	Short: "Record an administrator touching a tenant's data, then print the chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		action, _ := cmd.Flags().GetString("action")
		purpose, _ := cmd.Flags().GetString("purpose")

		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		tenantID := args[0]
		if _, err := stack.Logger.LogAdminAccess(audit.AdminAccessRequest{
			AdminEmail: email,
			AdminName:  name,
			TenantID:   tenantID,
			Action:     types.AdminAction(action),
			Purpose:    purpose,
		}); err != nil {
			// The shield entry or its mirror failed: the data must not be
			// shown.
			return err
		}

		entries, err := stack.Chain.ReadAll(tenantID)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

var tombstonesCmd = &cobra.Command{
	Use:   "tombstones",
	Short: "Inspect the destroyed-tenant registry",
}

var tombstonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every destroyed tenant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := newStack()
		if err != nil {
			return err
		}
		defer stack.Close()

		records, err := stack.Tombstones.List()
		if err != nil {
			return err
		}
		return printJSON(records)
	},
}

func init() {
	raioCheckinCmd.Flags().String("user", "", "RAIO user id performing the check-in")
	raioCheckinCmd.Flags().String("fingerprint", "", "Device/session commitment for the check-in")
	_ = raioCheckinCmd.MarkFlagRequired("user")
	raioCmd.AddCommand(raioCheckinCmd)
	raioCmd.AddCommand(raioStatusCmd)

	adminAccessCmd.Flags().String("email", "", "Administrator email")
	adminAccessCmd.Flags().String("name", "", "Administrator display name")
	adminAccessCmd.Flags().String("action", "view", "One of view, download, export")
	adminAccessCmd.Flags().String("purpose", "", "Why the data is being accessed")
	_ = adminAccessCmd.MarkFlagRequired("email")
	_ = adminAccessCmd.MarkFlagRequired("purpose")

	tombstonesCmd.AddCommand(tombstonesListCmd)
}
