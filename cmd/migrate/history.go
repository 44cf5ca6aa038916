package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"token-deploy/internal/config"
	"token-deploy/internal/domain"
	"token-deploy/internal/storage"
)

// errNoPersistentStore is returned by history under the memory driver,
// which forgets every record when the deploy process exits.
var errNoPersistentStore = errors.New("history needs a persistent store: use --storage postgres or clickhouse")

func newHistoryCmd(root *rootFlags, s *session) *cobra.Command {
	var artifactName string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded deployments for a network (postgres or clickhouse storage)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := s.cfg
			if cfg.Storage.Driver == config.DriverMemory || cfg.Storage.Driver == "" {
				return errNoPersistentStore
			}

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg.Storage, s.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			var records []*domain.DeploymentRecord
			if artifactName != "" {
				rec, err := store.GetLatest(ctx, root.network, artifactName)
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
				if rec != nil {
					records = append(records, rec)
				}
			} else {
				records, err = store.GetByNetwork(ctx, root.network)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "no deployments recorded for %s\n", root.network)
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(out, "%s  %-8s %s  run %s step %d  block %d  %s\n",
					time.UnixMilli(r.DeployedAt).UTC().Format(time.RFC3339),
					r.Artifact, r.Address, r.RunID, r.StepIndex, r.BlockNumber, r.Args)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactName, "artifact", "", "show only the latest deployment of this artifact")
	return cmd
}
