package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handiism/albumpdf/internal/download"
)

func newAssembleCmd(flags *globalFlags) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "assemble [album-id]...",
		Short: "Assemble PDFs from pages already on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass album ids or --all, not both")
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

			if all {
				docs, err := manager.AssembleAll(cmd.Context())
				for _, doc := range docs {
					p.event(download.ProgressEvent{AlbumID: doc.AlbumID, Message: fmt.Sprintf("Assembled %s (%d pages)", doc.Path, doc.Pages), Level: download.LevelSuccess})
				}
				if err != nil {
					p.event(download.ProgressEvent{Message: err.Error(), Level: download.LevelError})
					return err
				}
				p.summary(fmt.Sprintf("%d documents assembled", len(docs)))
				return nil
			}

			var errs []error
			for _, id := range args {
				doc, err := manager.Assemble(cmd.Context(), id)
				if err != nil {
					p.event(download.ProgressEvent{AlbumID: id, Message: fmt.Sprintf("Failed %s: %v", id, err), Level: download.LevelError})
					errs = append(errs, err)
					continue
				}
				p.event(download.ProgressEvent{AlbumID: id, Message: fmt.Sprintf("Assembled %s (%d pages)", doc.Path, doc.Pages), Level: download.LevelSuccess})
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Assemble every album directory without a document")
	return cmd
}
