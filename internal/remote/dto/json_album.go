package dto

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/handiism/albumpdf/internal/model"
)

// JSONAlbum is the album description returned by the remote host, either
// directly as JSON or rebuilt from an HTML album page.
type JSONAlbum struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Images []JSONImage `json:"images"`
}

// JSONImage is one page image. Page is 1-based; zero means "use the
// position in the images array".
type JSONImage struct {
	Page int    `json:"page"`
	URL  string `json:"url"`
}

// ToAlbum converts the DTO into an Album with absolute page URLs in
// numeric page order.
//
// Returns an error if the album has no images, an image has no usable URL,
// the id does not match albumID, or page numbers have gaps or duplicates.
func (a *JSONAlbum) ToAlbum(albumID string, base *url.URL) (*model.Album, error) {
	if a.ID != "" && a.ID != albumID {
		return nil, fmt.Errorf("response describes album %q, requested %q", a.ID, albumID)
	}
	if len(a.Images) == 0 {
		return nil, errors.New("album has no pages")
	}

	pages := make([]model.Page, 0, len(a.Images))
	for i, img := range a.Images {
		raw := strings.TrimSpace(img.URL)
		if raw == "" {
			return nil, fmt.Errorf("image %d has no url", i)
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		abs := ref
		if base != nil {
			abs = base.ResolveReference(ref)
		}
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return nil, fmt.Errorf("image %d: unsupported url %q", i, raw)
		}

		position := img.Page
		if position == 0 {
			position = i + 1
		}
		pages = append(pages, model.Page{Position: position, URL: abs.String()})
	}

	model.SortPages(pages)
	if err := model.CheckSequence(pages); err != nil {
		return nil, err
	}

	return &model.Album{
		ID:    albumID,
		Title: strings.TrimSpace(a.Title),
		Pages: pages,
	}, nil
}
