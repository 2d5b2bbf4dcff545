package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playbookhq/engine/internal/store"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the playbook against its structural invariants",
		Long: `Load the playbook and run the same validation Storage.Store runs
before every write: name uniqueness and density, region ordering, and
per-KPT rules (non-empty tag set, populated body, score and rating ranges).`,
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

			valErr := store.Validate(pb)

			if jsonOut {
				result := map[string]any{"valid": valErr == nil, "count": pb.Len()}
				if valErr != nil {
					result["error"] = valErr.Error()
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}

			if valErr != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "invalid: %v\n", valErr)
				return valErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %d KPTs\n", pb.Len())
			return nil
		},
	}
}
