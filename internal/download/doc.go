// Package download turns album ids into finished documents.
//
// # Manager
//
// The Manager drives one production through these steps:
//
//  1. Return the existing document if there is one (unless forced)
//  2. Assemble straight away if pages are already on disk (cache_policy "any")
//  3. Resolve the album on the remote host
//  4. Download missing pages concurrently
//  5. Assemble the pages into {album_id}.pdf
//
// # Basic Usage
//
//	manager, err := download.NewManager(settings, download.Options{
//	    History: history,
//	    OnProgress: func(event download.ProgressEvent) {
//	        fmt.Println(event.Message)
//	    },
//	})
//
//	doc, err := manager.Produce(ctx, "12345", download.ProduceOptions{})
//	if errors.Is(err, model.ErrAccessDenied) {
//	    // switch proxy and retry later
//	}
//
// # Concurrency
//
// Pages of one album are downloaded by at most max_concurrent_pages
// goroutines sharing one HTTP connection pool. Concurrent Produce calls for
// the same album are collapsed into one; different albums run in parallel.
//
// # Failures
//
// A page answering 403 or 404 stops the album at once. Any other page
// failure lets the remaining pages finish before the album fails. Pages
// already downloaded stay on disk and are skipped by the next Produce, which
// also never short-cuts to assembly for an album whose last production did
// not complete.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    AlbumID string
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
//
// Job state is also recorded in the store.History passed in Options.
package download
