package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/albumpdf/internal/download"
	"github.com/handiism/albumpdf/internal/model"
)

// maxParallelAlbums bounds how many albums a single invocation produces at
// once; pages within each album are bounded separately.
const maxParallelAlbums = 3

func newProduceCmd(flags *globalFlags) *cobra.Command {
	var (
		force   bool
		retries int
	)

	cmd := &cobra.Command{
		Use:   "produce <album-id>...",
		Short: "Download albums and assemble their PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := model.ValidateAlbumID(id); err != nil {
					return err
				}
			}

			settings, err := loadSettings(flags)
			if err != nil {
				return err
			}

			p := &printer{out: cmd.OutOrStdout(), verbose: flags.verbose}
			manager, closeFn, err := openManager(settings, p)
			if err != nil {
				return err
			}
			defer closeFn()

			p.title("albumpdf")
			start := time.Now()
			opts := download.ProduceOptions{Force: force, MaxAttempts: retries}

			var (
				g      errgroup.Group
				mu     sync.Mutex
				failed []string
				pages  int
			)
			g.SetLimit(maxParallelAlbums)
			for _, id := range args {
				g.Go(func() error {
					doc, err := manager.Produce(cmd.Context(), id, opts)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failed = append(failed, id)
						if hint := model.AsError(err).Hint; hint != "" {
							p.event(download.ProgressEvent{AlbumID: id, Message: "Hint: " + hint, Level: download.LevelWarning})
						}
						return nil
					}
					pages += doc.Pages
					return nil
				})
			}
			g.Wait()

			if err := cmd.Context().Err(); err != nil {
				return err
			}

			p.summary(fmt.Sprintf("%d/%d albums, %d pages in %s",
				len(args)-len(failed), len(args), pages, time.Since(start).Round(time.Millisecond)))
			if len(failed) > 0 {
				return fmt.Errorf("%d album(s) failed: %v", len(failed), failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Rebuild documents that already exist")
	cmd.Flags().IntVar(&retries, "retries", 0, "Attempts per request (default from config)")
	return cmd
}
