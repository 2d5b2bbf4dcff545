package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/playbookhq/engine/internal/models"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the project's playbook",
		Long: `Print every KPT currently in the playbook, stable region first, in
display order (the same order hook prompt-submit injection draws from).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			ctx := context.Background()
			a, err := buildApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			pb, err := a.storage.Load(ctx)
			if err != nil {
				return fmt.Errorf("loading playbook: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(pb.All())
			}

			printKPTs(cmd.OutOrStdout(), pb.All())
			return nil
		},
	}
}

func printKPTs(w io.Writer, kpts []models.KPT) {
	if len(kpts) == 0 {
		fmt.Fprintln(w, "(empty playbook)")
		return
	}
	for _, k := range kpts {
		region := "stable"
		if k.Pending {
			region = "pending"
		}
		fmt.Fprintf(w, "%s [%s] score=%d tags=%v\n  %s\n", k.Name, region, k.Score, k.Tags, k.Body())
	}
}
