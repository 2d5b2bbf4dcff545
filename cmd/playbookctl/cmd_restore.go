package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/playbookhq/engine/internal/models"
	"github.com/spf13/cobra"
)

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Replace the live playbook with a backup snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading backup %s: %w", args[0], err)
			}
			var pb models.Playbook
			if err := json.Unmarshal(data, &pb); err != nil {
				return fmt.Errorf("parsing backup %s: %w", args[0], err)
			}

			ctx := context.Background()
			a, err := buildApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			// Store backs up whatever is currently live before the overwrite,
			// so the pre-restore state isn't lost.
			if err := a.storage.Store(ctx, &pb); err != nil {
				return fmt.Errorf("restoring playbook: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "restored %d KPTs from %s\n", pb.Len(), args[0])
			return nil
		},
	}
}
