// Package remote resolves album ids into ordered page image locations on the
// remote host.
//
// # Resolution
//
//	resolver, err := remote.NewResolver(settings, client)
//	album, err := resolver.Resolve(ctx, "12345")
//
// The resolver requests {host}/album/{id} on each configured host in turn,
// sending a browser User-Agent and a Referer for that host.
//
// # Response Format
//
// The host may answer with JSON:
//
//	{"id": "12345", "title": "...", "images": [{"page": 1, "url": "/media/12345/1.jpg"}]}
//
// or with an HTML page whose images carry data-page attributes. Relative
// image URLs are resolved against the album URL. A response that cannot be
// parsed, lists no pages, or numbers its pages with gaps or duplicates is a
// model.KindProtocolError, never an empty album.
package remote
