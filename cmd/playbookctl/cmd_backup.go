package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage playbook backups",
		Long: `Storage keeps a timestamped backup of the live file before every
write, retaining the most recent backup_keep (default 3). These
subcommands operate on that same backup directory.`,
	}
	cmd.AddCommand(newBackupCreateCmd(), newBackupListCmd())
	return cmd
}

func newBackupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Copy the live playbook into the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			ctx := context.Background()
			a, err := buildApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.storage.CreateBackup(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up to %s\n", a.storage.BackupDir())
			return nil
		},
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			ctx := context.Background()
			a, err := buildApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			backups, err := a.storage.ListBackups()
			if err != nil {
				return fmt.Errorf("listing backups: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(backups)
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no backups)")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
}
