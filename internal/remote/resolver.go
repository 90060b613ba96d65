package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/handiism/albumpdf/internal/config"
	"github.com/handiism/albumpdf/internal/http"
	"github.com/handiism/albumpdf/internal/model"
)

// Resolver maps an album id to its ordered page locations.
//
// Hosts from the domain list are tried in order. NotFound and ProtocolError
// answers are authoritative; any other failure moves on to the next host and
// the last failure is reported when every host failed.
//
// Example usage:
//
//	resolver, err := NewResolver(settings, client)
//	album, err := resolver.Resolve(ctx, "12345")
//	for _, page := range album.Pages {
//	    fmt.Println(page.Position, page.URL)
//	}
type Resolver struct {
	client  *http.Client
	parser  *Parser
	domains []string
	cache   *lru.Cache[string, *model.Album]
}

// NewResolver creates a Resolver for the configured domain list.
//
// Resolved albums are kept in an LRU of ResolverCacheSize entries so a
// retried production does not resolve again. A size of zero disables it.
func NewResolver(settings *config.Settings, client *http.Client) (*Resolver, error) {
	r := &Resolver{
		client:  client,
		parser:  NewParser(),
		domains: settings.DomainList,
	}
	if settings.ResolverCacheSize > 0 {
		cache, err := lru.New[string, *model.Album](settings.ResolverCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create resolver cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Resolve returns the album with its pages in reading order.
func (r *Resolver) Resolve(ctx context.Context, albumID string) (*model.Album, error) {
	if r.cache != nil {
		if album, ok := r.cache.Get(albumID); ok {
			return cloneAlbum(album), nil
		}
	}
	if len(r.domains) == 0 {
		return nil, model.NewError(model.KindUnclassified, "no remote hosts configured")
	}

	var lastErr error
	for _, domain := range r.domains {
		album, err := r.resolveFrom(ctx, domain, albumID)
		if err == nil {
			if r.cache != nil {
				r.cache.Add(albumID, cloneAlbum(album))
			}
			return album, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		kind := model.KindOf(err)
		if kind == model.KindNotFound || kind == model.KindProtocolError {
			return nil, err
		}
		log.Warn().Err(err).Str("album_id", albumID).Str("host", domain).Str("kind", string(kind)).Msg("host failed to resolve album")
		lastErr = err
	}

	return nil, lastErr
}

// Forget drops a cached resolution.
func (r *Resolver) Forget(albumID string) {
	if r.cache != nil {
		r.cache.Remove(albumID)
	}
}

func (r *Resolver) resolveFrom(ctx context.Context, domain, albumID string) (*model.Album, error) {
	base, err := hostBase(domain)
	if err != nil {
		return nil, model.NewError(model.KindUnclassified, "invalid host %q", domain).Wrap(err)
	}
	referer := base.String() + "/"
	albumURL := base.JoinPath("album", albumID)

	resp, err := r.client.WithReferer(referer).Do(ctx, albumURL.String())
	if err != nil {
		return nil, err
	}

	data, err := r.parser.Parse(resp.ContentType, resp.Body)
	if err != nil {
		return nil, protocolError(albumID, err)
	}

	album, err := data.ToAlbum(albumID, resp.URL)
	if err != nil {
		return nil, protocolError(albumID, err)
	}
	album.Referer = referer

	log.Debug().Str("album_id", albumID).Str("host", base.Host).Int("pages", len(album.Pages)).Msg("album resolved")
	return album, nil
}

func protocolError(albumID string, err error) error {
	return &model.Error{
		Kind:    model.KindProtocolError,
		Message: fmt.Sprintf("unexpected response for album %s", albumID),
		Err:     err,
	}
}

// hostBase turns a domain list entry into a base URL. Bare host names use
// https; entries with a scheme are used as given.
func hostBase(domain string) (*url.URL, error) {
	domain = strings.TrimSpace(domain)
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", domain)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

func cloneAlbum(a *model.Album) *model.Album {
	cp := *a
	cp.Pages = append([]model.Page(nil), a.Pages...)
	return &cp
}
