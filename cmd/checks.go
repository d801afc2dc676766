package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"etcd-backup-agent/internal/notify"
)

var checksFile string

// checksCmd groups the monitoring check management subcommands
var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Manage monitoring checks for the backup schedule",
	Long: `Manage the dead-man-switch checks that alert when a scheduled
backup stops reporting.

Checks are described in a yaml definitions file and synchronized
against the monitoring service by name. The ping URLs returned by the
service go into notify.ping_url in the agent configuration.

Examples:
  # Register or update the checks from the configured definitions file
  etcd-backup-agent checks sync --config config.yaml

  # List the registered checks and their states
  etcd-backup-agent checks list --config config.yaml`,
}

// checksSyncCmd upserts the check definitions
var checksSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create or update checks from the definitions file",
	RunE:  runChecksSync,
}

// checksListCmd prints the registered checks
var checksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered checks",
	RunE:  runChecksList,
}

// checksDeleteCmd removes a registered check by name
var checksDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a registered check",
	Args:  cobra.ExactArgs(1),
	RunE:  runChecksDelete,
}

func init() {
	checksSyncCmd.Flags().StringVar(&checksFile, "checks-file", "", "check definitions file (default from notify.checks_file)")
	checksCmd.AddCommand(checksSyncCmd)
	checksCmd.AddCommand(checksListCmd)
	checksCmd.AddCommand(checksDeleteCmd)
	rootCmd.AddCommand(checksCmd)
}

func runChecksSync(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntimeUnvalidated()
	if err != nil {
		return err
	}

	path := checksFile
	if path == "" {
		path = cfg.Notify.ChecksFile
	}
	if path == "" {
		return fmt.Errorf("no checks file given, set --checks-file or notify.checks_file")
	}

	defs, err := notify.LoadDefinitions(path)
	if err != nil {
		return err
	}

	client, err := notify.NewChecksClient(cfg.Notify, logger)
	if err != nil {
		return err
	}

	pingURLs, err := client.Sync(context.Background(), defs)
	if err != nil {
		return err
	}

	for name, url := range pingURLs {
		fmt.Printf("%s\t%s\n", name, url)
	}
	color.Green("Synchronized %d checks", len(defs))
	return nil
}

func runChecksList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntimeUnvalidated()
	if err != nil {
		return err
	}

	client, err := notify.NewChecksClient(cfg.Notify, logger)
	if err != nil {
		return err
	}

	checks, err := client.List(context.Background())
	if err != nil {
		return err
	}

	for _, check := range checks {
		fmt.Printf("%s\t%s\t%s\n", check.Name, check.Status, check.PingURL)
	}
	return nil
}

func runChecksDelete(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntimeUnvalidated()
	if err != nil {
		return err
	}

	client, err := notify.NewChecksClient(cfg.Notify, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	checks, err := client.List(ctx)
	if err != nil {
		return err
	}

	for _, check := range checks {
		if check.Name != args[0] {
			continue
		}
		if err := client.Delete(ctx, check.UUID); err != nil {
			return err
		}
		color.Green("Deleted check %s", check.Name)
		return nil
	}
	return fmt.Errorf("no check named %q", args[0])
}
