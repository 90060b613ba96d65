package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
)

var albumIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrInvalidAlbumID is returned for ids that are not a single safe path
// segment. It is a caller error, not a remote failure.
var ErrInvalidAlbumID = errors.New("invalid album id")

// ValidateAlbumID reports whether id is usable as an album id.
//
// Album ids become directory and file names under the base directory, so
// they are restricted to a single safe path segment.
func ValidateAlbumID(id string) error {
	if !albumIDPattern.MatchString(id) {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidAlbumID, id, albumIDPattern.String())
	}
	return nil
}

// Album represents a remote image set and its pages.
//
// Example:
//
//	album := NewAlbum("12345", "/data/img")
//	album.Pages = []Page{{Position: 1, URL: "https://cdn.example.com/1.jpg"}}
//	// album.Dir = "/data/img/12345"
type Album struct {
	// ID is the opaque album id.
	ID string

	// Title is the remote title, if the host provided one.
	Title string

	// Pages contains every page in reading order.
	Pages []Page

	// Dir is the local directory holding the downloaded pages.
	Dir string

	// Referer is sent with page image requests. Empty for local albums.
	Referer string
}

// NewAlbum creates an Album whose pages live under baseDir/id.
func NewAlbum(id, baseDir string) *Album {
	return &Album{
		ID:  id,
		Dir: filepath.Join(baseDir, id),
	}
}

// Page is one image of an album.
type Page struct {
	// Chapter groups pages stored in numbered sub-directories. Zero for
	// pages stored directly in the album directory.
	Chapter int

	// Position is the 1-based page number.
	Position int

	// URL is the remote source location. Empty for pages found on disk.
	URL string

	// Path is the local file path.
	Path string
}

// Less orders pages by chapter, then by numeric position.
func (p Page) Less(other Page) bool {
	if p.Chapter != other.Chapter {
		return p.Chapter < other.Chapter
	}
	return p.Position < other.Position
}

// SortPages sorts pages in place by numeric (chapter, position).
func SortPages(pages []Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Less(pages[j])
	})
}

// CheckSequence verifies that pages are numbered 1..n without gaps or
// duplicates. Pages must already be sorted.
func CheckSequence(pages []Page) error {
	for i, p := range pages {
		if p.Position != i+1 {
			if i > 0 && p.Position == pages[i-1].Position {
				return fmt.Errorf("duplicate page %d", p.Position)
			}
			return fmt.Errorf("expected page %d, got %d", i+1, p.Position)
		}
	}
	return nil
}

// Document is the assembled output for one album.
type Document struct {
	// AlbumID is the album the document was built from.
	AlbumID string

	// Path is the local file path of the finalized document.
	Path string

	// FileName is the base name used for download URLs.
	FileName string

	// Pages is the number of pages in the document, 0 if unknown.
	Pages int

	// Cached is true when an existing document was returned as-is.
	Cached bool
}
