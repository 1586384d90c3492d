package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/dialogs/internal/config"
	"github.com/soyeahso/dialogs/internal/store"
	"github.com/soyeahso/dialogs/internal/syncer"
)

// newSyncCmd runs one directory sync in the foreground. Useful after
// editing the directory, without waiting for the schedule.
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the directory and back-fill author metadata once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.Directory.BaseURL == "" {
				return fmt.Errorf("no directory configured")
			}

			db, err := store.Open(paths.DatabasePath(cfg), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			resolver := newResolver(cfg.Directory, log)
			sy := syncer.New(store.NewRecordingStore(db), resolver, log)

			status, err := sy.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Synced %d author(s), %d session row(s) updated\n",
				status.AuthorsUpdated, status.RowsUpdated)
			return nil
		},
	}
}
