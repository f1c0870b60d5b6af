package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinelgov/auditchain/pkg/bootstrap"
	"github.com/sentinelgov/auditchain/pkg/config"
	"github.com/sentinelgov/auditchain/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "auditctl",
	Short: "Operator tooling for the per-tenant audit-chain subsystem",
	Long: `auditctl drives the tamper-evident audit chain from the command
line: verify a tenant's chain, rotate its encryption key, anchor all
chains to the remote witness, suspend a tenant, run a sovereign exit,
and inspect the tombstone registry.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"auditctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Optional YAML configuration file")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)

	// Add subcommands
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rotateKeyCmd)
	rootCmd.AddCommand(anchorCmd)
	rootCmd.AddCommand(witnessStatusCmd)
	rootCmd.AddCommand(suspendCmd)
	rootCmd.AddCommand(sovereignExitCmd)
	rootCmd.AddCommand(inspectArchiveCmd)
	rootCmd.AddCommand(pulseCmd)
	rootCmd.AddCommand(raioCmd)
	rootCmd.AddCommand(adminAccessCmd)
	rootCmd.AddCommand(tombstonesCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:   logLevel,
		Console: !logJSON,
	})
}

// newStack loads configuration and wires the full component graph.
func newStack() (*bootstrap.Stack, error) {
	cfgPath, _ := rootCmd.PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg)
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
