package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/handiism/albumpdf/internal/config"
	ioutils "github.com/handiism/albumpdf/internal/io"
	"github.com/handiism/albumpdf/internal/model"
	"github.com/handiism/albumpdf/internal/store"
)

// Assembler combines the stored pages of an album into one PDF.
//
// Pages are read in numeric (chapter, position) order from the Local store.
// Each page becomes one PDF page sized to the image at the configured DPI.
// The document is written to a temp file next to its final path and renamed
// only after every page was added, so an interrupted assembly never leaves a
// document behind.
//
// Example usage:
//
//	assembler := NewAssembler(settings, local)
//	doc, err := assembler.Assemble(ctx, "12345")
//	if errors.Is(err, model.ErrEmptyAlbum) {
//	    // nothing downloaded yet
//	}
type Assembler struct {
	local     *store.Local
	images    *ioutils.ImageService
	dpi       float64
	newWriter func(dpi float64, title string) pageWriter
}

// NewAssembler creates an Assembler writing documents into the store.
func NewAssembler(settings *config.Settings, local *store.Local) *Assembler {
	dpi := settings.PDFDPI
	if dpi <= 0 {
		dpi = 100
	}
	return &Assembler{
		local:     local,
		images:    ioutils.NewImageService(),
		dpi:       dpi,
		newWriter: newGofpdfWriter,
	}
}

// Assemble builds {album_id}.pdf from the pages on disk.
//
// Returns a *model.Error of kind EmptyAlbum when no page exists (nothing is
// written) or SourceUnreadable when a page cannot be read or decoded.
// Context cancellation between pages is returned as the context error.
func (a *Assembler) Assemble(ctx context.Context, albumID string) (*model.Document, error) {
	start := time.Now()

	pages, err := a.local.ListPages(albumID)
	if err != nil {
		return nil, &model.Error{
			Kind:    model.KindSourceUnreadable,
			Message: fmt.Sprintf("cannot list pages of album %s", albumID),
			Err:     err,
		}
	}
	if len(pages) == 0 {
		return nil, model.NewError(model.KindEmptyAlbum, "album %s has no pages", albumID)
	}

	dest := a.local.DocumentPath(albumID)
	if err := ioutils.EnsureDir(filepath.Dir(dest)); err != nil {
		return nil, model.NewError(model.KindUnclassified, "cannot create document directory").Wrap(err)
	}

	var converted int
	err = ioutils.WriteAtomic(ctx, dest, func(w io.Writer) error {
		writer := a.newWriter(a.dpi, albumID)
		for i, page := range pages {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := a.loadPage(ctx, page)
			if err != nil {
				return err
			}
			if img.Converted {
				converted++
			}
			if err := writer.AddPage(fmt.Sprintf("page-%d", i+1), img); err != nil {
				return unreadable(page, err)
			}
		}
		return writer.Output(w)
	})
	if err != nil {
		log.Error().Err(err).Str("album_id", albumID).Msg("assembly failed")
		return nil, err
	}

	log.Info().
		Str("album_id", albumID).
		Str("path", dest).
		Int("pages", len(pages)).
		Int("converted", converted).
		Dur("duration", time.Since(start)).
		Msg("document assembled")

	return &model.Document{
		AlbumID:  albumID,
		Path:     dest,
		FileName: store.DocumentName(albumID),
		Pages:    len(pages),
	}, nil
}

func (a *Assembler) loadPage(ctx context.Context, page model.Page) (*ioutils.PageImage, error) {
	data, err := os.ReadFile(page.Path)
	if err != nil {
		return nil, unreadable(page, err)
	}
	img, err := a.images.Normalize(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, unreadable(page, err)
	}
	return img, nil
}

func unreadable(page model.Page, err error) error {
	return &model.Error{
		Kind:    model.KindSourceUnreadable,
		Message: fmt.Sprintf("cannot read page %s", filepath.Base(page.Path)),
		Err:     err,
	}
}

// AssembleAll assembles every album directory that has no document yet.
//
// Failures are collected per album and returned joined; assembly continues
// with the next album unless ctx is cancelled.
func (a *Assembler) AssembleAll(ctx context.Context) ([]*model.Document, error) {
	ids, err := a.local.Albums()
	if err != nil {
		return nil, err
	}

	var (
		docs []*model.Document
		errs []error
	)
	for _, id := range ids {
		if a.local.DocumentExists(id) {
			continue
		}
		doc, err := a.Assemble(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				errs = append(errs, ctxErr)
				break
			}
			errs = append(errs, fmt.Errorf("album %s: %w", id, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errors.Join(errs...)
}
