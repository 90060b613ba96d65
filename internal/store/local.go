package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/handiism/albumpdf/internal/config"
	ioutils "github.com/handiism/albumpdf/internal/io"
	"github.com/handiism/albumpdf/internal/model"
)

// DocumentExt is the extension of assembled documents.
const DocumentExt = ".pdf"

var pageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
}

// Local is the on-disk layout of downloaded pages and finished documents.
//
// Layout:
//
//	{base_dir}/{album_id}/{position}.jpg
//	{base_dir}/{album_id}/{chapter}/{position}.jpg
//	{document_dir}/{album_id}.pdf
//
// Pages are always ordered by numeric position, never by file name.
type Local struct {
	baseDir string
	docDir  string
}

// NewLocal creates a Local store rooted at the configured directories.
func NewLocal(settings *config.Settings) *Local {
	return &Local{
		baseDir: settings.BaseDir,
		docDir:  settings.DocumentDir(),
	}
}

// BaseDir returns the root of the page tree.
func (l *Local) BaseDir() string {
	return l.baseDir
}

// AlbumDir returns the directory holding an album's pages.
func (l *Local) AlbumDir(albumID string) string {
	return filepath.Join(l.baseDir, albumID)
}

// PagePath returns where page position of albumID is stored.
func (l *Local) PagePath(albumID string, position int) string {
	return filepath.Join(l.AlbumDir(albumID), strconv.Itoa(position)+".jpg")
}

// Exists reports whether at least one page of albumID is on disk.
//
// This is the cheap check behind the "any" cache policy; it says nothing
// about whether the album is complete.
func (l *Local) Exists(albumID string) bool {
	pages, err := l.ListPages(albumID)
	return err == nil && len(pages) > 0
}

// ListPages returns the stored pages of albumID sorted by (chapter, position).
//
// Files count as pages when their extension is a known image type and their
// stem is a positive integer. One level of numerically named chapter
// directories is also scanned; pages directly in the album directory sort
// before any chapter. A missing album directory yields no pages.
func (l *Local) ListPages(albumID string) ([]model.Page, error) {
	dir := l.AlbumDir(albumID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list pages of %s: %w", albumID, err)
	}

	pages := appendPages(nil, dir, 0, entries)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		chapter, ok := numericName(entry.Name())
		if !ok {
			continue
		}
		chapterDir := filepath.Join(dir, entry.Name())
		sub, err := os.ReadDir(chapterDir)
		if err != nil {
			return nil, fmt.Errorf("list chapter %s of %s: %w", entry.Name(), albumID, err)
		}
		pages = appendPages(pages, chapterDir, chapter, sub)
	}

	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Chapter != pages[j].Chapter || pages[i].Position != pages[j].Position {
			return pages[i].Less(pages[j])
		}
		return pages[i].Path < pages[j].Path
	})
	return dedupePages(albumID, pages), nil
}

// dedupePages keeps one file per (chapter, position) of a sorted listing.
// The name PagePath writes ("{n}.jpg") wins; otherwise the first file in
// path order does.
func dedupePages(albumID string, pages []model.Page) []model.Page {
	out := pages[:0]
	for _, page := range pages {
		n := len(out)
		if n == 0 || out[n-1].Chapter != page.Chapter || out[n-1].Position != page.Position {
			out = append(out, page)
			continue
		}
		dropped := page.Path
		if !isCanonicalPage(out[n-1]) && isCanonicalPage(page) {
			dropped = out[n-1].Path
			out[n-1] = page
		}
		log.Warn().Str("album_id", albumID).Int("page", page.Position).Str("ignored", dropped).Msg("duplicate page file")
	}
	return out
}

func isCanonicalPage(page model.Page) bool {
	return filepath.Base(page.Path) == strconv.Itoa(page.Position)+".jpg"
}

func appendPages(pages []model.Page, dir string, chapter int, entries []os.DirEntry) []model.Page {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ioutils.IsTempFile(name) || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		if !pageExts[strings.ToLower(ext)] {
			continue
		}
		position, ok := numericName(strings.TrimSuffix(name, ext))
		if !ok {
			continue
		}
		pages = append(pages, model.Page{
			Chapter:  chapter,
			Position: position,
			Path:     filepath.Join(dir, name),
		})
	}
	return pages
}

func numericName(name string) (int, bool) {
	n, err := strconv.Atoi(name)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// DocumentName returns the file name of albumID's document.
func DocumentName(albumID string) string {
	return albumID + DocumentExt
}

// DocumentPath returns where albumID's document is stored.
func (l *Local) DocumentPath(albumID string) string {
	return filepath.Join(l.docDir, DocumentName(albumID))
}

// DocumentExists reports whether albumID's document has been finalized.
func (l *Local) DocumentExists(albumID string) bool {
	return ioutils.FileExists(l.DocumentPath(albumID))
}

// Albums returns the ids of every album directory under the base directory,
// sorted by name.
func (l *Local) Albums() ([]string, error) {
	entries, err := os.ReadDir(l.baseDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || model.ValidateAlbumID(entry.Name()) != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// ResolveDocument maps a requested download file name to a stored document.
//
// Only bare "{album_id}.pdf" names are accepted, so a request can never
// reach outside the document directory.
func (l *Local) ResolveDocument(fileName string) (string, bool) {
	if filepath.Base(fileName) != fileName || filepath.Ext(fileName) != DocumentExt {
		return "", false
	}
	albumID := strings.TrimSuffix(fileName, DocumentExt)
	if model.ValidateAlbumID(albumID) != nil {
		return "", false
	}
	path := l.DocumentPath(albumID)
	if !ioutils.FileExists(path) {
		return "", false
	}
	return path, true
}
