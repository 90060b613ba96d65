// Package model defines the core data structures used throughout
// albumpdf.
//
// # Album
//
// Album is a remote image set identified by an opaque id, with its pages in
// reading order:
//
//	album := model.NewAlbum("12345", "/data/img")
//	fmt.Println(album.Dir) // /data/img/12345
//
// # Page
//
// Page is one image within an album, identified by its 1-based position.
// Pages are always ordered by numeric position, never by file name:
//
//	model.SortPages(pages) // 1, 2, 10 rather than 1, 10, 2
//
// # Document
//
// Document is the assembled PDF for one album.
//
// # Errors
//
// Error carries a Kind (NotFound, AccessDenied, RateLimited, ProtocolError,
// EmptyAlbum, SourceUnreadable, Unclassified) with a message and an optional
// remediation hint. Use errors.Is against the Err* sentinels or KindOf.
package model
