package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/handiism/albumpdf/internal/config"
	"github.com/handiism/albumpdf/internal/http"
	ioutils "github.com/handiism/albumpdf/internal/io"
	"github.com/handiism/albumpdf/internal/model"
	"github.com/handiism/albumpdf/internal/pdf"
	"github.com/handiism/albumpdf/internal/remote"
	"github.com/handiism/albumpdf/internal/store"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a production progress update.
type ProgressEvent struct {
	AlbumID string
	Message string
	Level   ProgressLevel
}

// ProduceOptions tunes a single Produce call.
type ProduceOptions struct {
	// Force ignores an existing document and any cached resolution.
	// Page files already on disk are still reused.
	Force bool

	// MaxAttempts overrides the configured retry budget per request.
	// Zero keeps the configured value.
	MaxAttempts int
}

// Options holds the optional collaborators of a Manager.
type Options struct {
	// History records job state. Nil uses a memory-only history.
	History *store.History

	// Observer receives metrics. Nil disables metrics.
	Observer Observer

	// OnProgress receives progress events. May be nil.
	OnProgress func(ProgressEvent)
}

// Manager turns album ids into documents.
type Manager struct {
	settings  *config.Settings
	client    *http.Client
	resolver  *remote.Resolver
	local     *store.Local
	assembler *pdf.Assembler
	history   *store.History
	metrics   Observer

	group      singleflight.Group
	onProgress func(ProgressEvent)
}

// NewManager creates a Manager with its own HTTP client, resolver, store and
// assembler built from settings.
func NewManager(settings *config.Settings, opts Options) (*Manager, error) {
	client, err := http.NewClientFromSettings(settings)
	if err != nil {
		return nil, err
	}
	resolver, err := remote.NewResolver(settings, client)
	if err != nil {
		return nil, err
	}

	history := opts.History
	if history == nil {
		if history, err = store.OpenHistory(""); err != nil {
			return nil, err
		}
	}
	var observer Observer = nopObserver{}
	if opts.Observer != nil {
		observer = opts.Observer
	}

	local := store.NewLocal(settings)
	return &Manager{
		settings:   settings,
		client:     client,
		resolver:   resolver,
		local:      local,
		assembler:  pdf.NewAssembler(settings, local),
		history:    history,
		metrics:    observer,
		onProgress: opts.OnProgress,
	}, nil
}

// Local returns the store documents are written to.
func (m *Manager) Local() *store.Local {
	return m.local
}

// Status returns the last recorded state of albumID.
func (m *Manager) Status(albumID string) (*store.JobRecord, error) {
	return m.history.Get(albumID)
}

// Jobs returns every recorded job, most recently updated first.
func (m *Manager) Jobs() ([]store.JobRecord, error) {
	return m.history.List()
}

// Produce returns the document for albumID, downloading and assembling it
// when needed.
//
// Concurrent calls for the same album share one production. The shared
// production is detached from every caller's ctx and bounded by
// produce_timeout, so a caller whose ctx ends stops waiting without failing
// the others. A forced call that joins an unforced production waits for it
// and then runs its own. Failures carry the originating *model.Error
// unchanged; downloaded pages are kept so the next call only fetches what
// is missing.
func (m *Manager) Produce(ctx context.Context, albumID string, opts ProduceOptions) (*model.Document, error) {
	if err := model.ValidateAlbumID(albumID); err != nil {
		return nil, err
	}

	for {
		ch := m.group.DoChan(albumID, func() (any, error) {
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.settings.ProduceTimeout)
			defer cancel()
			doc, err := m.produce(pctx, albumID, opts)
			return flight{doc: doc, force: opts.Force}, err
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			f := res.Val.(flight)
			if opts.Force && !f.force {
				continue
			}
			if res.Err != nil {
				return nil, res.Err
			}
			doc := *f.doc
			return &doc, nil
		}
	}
}

// flight is the shared result of one production.
type flight struct {
	doc   *model.Document
	force bool
}

func (m *Manager) produce(ctx context.Context, albumID string, opts ProduceOptions) (*model.Document, error) {
	start := time.Now()
	log.Info().Str("album_id", albumID).Bool("force", opts.Force).Msg("produce requested")

	doc, err := m.run(ctx, albumID, opts)
	duration := time.Since(start)

	if err != nil {
		kind := model.KindOf(err)
		m.metrics.RecordProduce(OutcomeFailed, string(kind), duration)
		m.recordJob(albumID, func(rec *store.JobRecord) {
			rec.Status = store.StatusFailed
			rec.ErrorKind = string(kind)
			rec.Message = err.Error()
		})
		log.Error().Err(err).Str("album_id", albumID).Str("kind", string(kind)).Dur("duration", duration).Msg("produce failed")
		m.progress(ProgressEvent{AlbumID: albumID, Message: fmt.Sprintf("Failed %s: %v", albumID, err), Level: LevelError})
		return nil, err
	}

	outcome := OutcomeCreated
	if doc.Cached {
		outcome = OutcomeCached
	}
	m.metrics.RecordProduce(outcome, "", duration)
	m.recordJob(albumID, func(rec *store.JobRecord) {
		rec.Status = store.StatusCompleted
		rec.ErrorKind = ""
		rec.Message = ""
		rec.DocumentPath = doc.Path
		if doc.Pages > 0 {
			rec.PagesTotal = doc.Pages
			rec.PagesDone = doc.Pages
		}
	})
	m.progress(ProgressEvent{AlbumID: albumID, Message: fmt.Sprintf("Document ready: %s (%d pages)", doc.Path, doc.Pages), Level: LevelSuccess})
	return doc, nil
}

func (m *Manager) run(ctx context.Context, albumID string, opts ProduceOptions) (*model.Document, error) {
	if !opts.Force && m.local.DocumentExists(albumID) {
		log.Info().Str("album_id", albumID).Msg("document cache hit")
		m.progress(ProgressEvent{AlbumID: albumID, Message: fmt.Sprintf("Using existing document for %s", albumID), Level: LevelVerbose})
		return m.cachedDocument(albumID), nil
	}

	// Pages left behind by an unfinished production are not trusted as a
	// complete album.
	partial := m.isPartial(albumID)
	m.recordJob(albumID, func(rec *store.JobRecord) {
		rec.Status = store.StatusProcessing
		rec.ErrorKind = ""
		rec.Message = ""
	})

	if !opts.Force && !partial && m.settings.CachePolicy == config.CachePolicyAny && m.local.Exists(albumID) {
		log.Info().Str("album_id", albumID).Msg("pages found on disk, skipping download")
		m.progress(ProgressEvent{AlbumID: albumID, Message: fmt.Sprintf("Pages of %s already on disk, assembling", albumID), Level: LevelInfo})
		return m.assembler.Assemble(ctx, albumID)
	}

	if opts.Force {
		m.resolver.Forget(albumID)
	}
	m.progress(ProgressEvent{AlbumID: albumID, Message: fmt.Sprintf("Resolving album %s", albumID), Level: LevelVerbose})
	album, err := m.resolver.Resolve(ctx, albumID)
	if err != nil {
		return nil, err
	}
	m.progress(ProgressEvent{AlbumID: albumID, Message: fmt.Sprintf("Found album %s (%d pages)", albumID, len(album.Pages)), Level: LevelInfo})
	m.recordJob(albumID, func(rec *store.JobRecord) {
		rec.PagesTotal = len(album.Pages)
	})

	if err := m.downloadPages(ctx, album, opts.MaxAttempts); err != nil {
		return nil, err
	}

	return m.assembler.Assemble(ctx, albumID)
}

// downloadPages fetches every page of album that is not on disk yet.
//
// AccessDenied and NotFound stop the whole album: no further page downloads
// start and in-flight ones are cancelled. Other failures let the remaining
// pages finish, then the first one fails the album.
func (m *Manager) downloadPages(ctx context.Context, album *model.Album, maxAttempts int) error {
	policy := m.client.Retry().WithMaxAttempts(maxAttempts)
	policy.OnRetry = func(int, time.Duration, error) {
		m.metrics.RecordRetry()
	}
	client := m.client.WithReferer(album.Referer).WithRetry(policy)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.MaxConcurrentPages)

	var (
		mu       sync.Mutex
		firstErr error
		done     atomic.Int32
		skipped  int
	)

	for _, page := range album.Pages {
		page.Path = m.local.PagePath(album.ID, page.Position)
		if ioutils.FileExists(page.Path) {
			skipped++
			continue
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			n, err := client.FetchInto(gctx, page.URL, page.Path)
			if err != nil {
				if errors.Is(err, context.Canceled) && gctx.Err() != nil {
					return nil
				}
				kind := model.KindOf(err)
				log.Error().Err(err).Str("album_id", album.ID).Int("page", page.Position).Str("kind", string(kind)).Msg("page download failed")
				if kind.IsTerminal() {
					return err
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				m.progress(ProgressEvent{AlbumID: album.ID, Message: fmt.Sprintf("Page %d of %s failed: %v", page.Position, album.ID, err), Level: LevelWarning})
				return nil
			}

			m.metrics.RecordPage(n)
			done.Add(1)
			m.progress(ProgressEvent{AlbumID: album.ID, Message: fmt.Sprintf("Downloaded page %d of %s", page.Position, album.ID), Level: LevelVerbose})
			return nil
		})
	}

	waitErr := g.Wait()
	m.recordJob(album.ID, func(rec *store.JobRecord) {
		rec.PagesDone = skipped + int(done.Load())
	})
	if skipped > 0 {
		log.Info().Str("album_id", album.ID).Int("skipped", skipped).Msg("reused pages already on disk")
	}

	if waitErr != nil {
		return waitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return firstErr
}

// Assemble builds the document of an album whose pages are already on disk.
func (m *Manager) Assemble(ctx context.Context, albumID string) (*model.Document, error) {
	if err := model.ValidateAlbumID(albumID); err != nil {
		return nil, err
	}
	doc, err := m.assembler.Assemble(ctx, albumID)
	if err != nil {
		return nil, err
	}
	m.recordJob(albumID, func(rec *store.JobRecord) {
		rec.Status = store.StatusCompleted
		rec.DocumentPath = doc.Path
		rec.PagesTotal = doc.Pages
		rec.PagesDone = doc.Pages
	})
	return doc, nil
}

// AssembleAll assembles every stored album that has no document yet.
func (m *Manager) AssembleAll(ctx context.Context) ([]*model.Document, error) {
	return m.assembler.AssembleAll(ctx)
}

func (m *Manager) cachedDocument(albumID string) *model.Document {
	doc := &model.Document{
		AlbumID:  albumID,
		Path:     m.local.DocumentPath(albumID),
		FileName: store.DocumentName(albumID),
		Cached:   true,
	}
	if rec, err := m.history.Get(albumID); err == nil && rec.Status == store.StatusCompleted {
		doc.Pages = rec.PagesTotal
	} else if pages, err := m.local.ListPages(albumID); err == nil {
		doc.Pages = len(pages)
	}
	return doc
}

// isPartial reports whether the last production of albumID started but
// never completed.
func (m *Manager) isPartial(albumID string) bool {
	rec, err := m.history.Get(albumID)
	if err != nil {
		return false
	}
	return rec.Status == store.StatusProcessing || rec.Status == store.StatusFailed
}

func (m *Manager) recordJob(albumID string, fn func(rec *store.JobRecord)) {
	if _, err := m.history.Update(albumID, fn); err != nil {
		log.Warn().Err(err).Str("album_id", albumID).Msg("failed to record job state")
	}
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

// DocumentFile maps a download file name ("12345.pdf") to a finished
// document on disk.
func (m *Manager) DocumentFile(fileName string) (string, bool) {
	return m.local.ResolveDocument(fileName)
}
