package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/handiism/albumpdf/internal/remote/dto"
)

// ErrNoPages is returned when an album page lists no images.
var ErrNoPages = errors.New("no pages found in album response")

// Parser extracts album information from remote responses.
//
// Two shapes are understood:
//
//	JSON: {"id": "12345", "title": "...", "images": [{"page": 1, "url": "..."}]}
//
//	HTML: <img data-page="1" data-original="https://cdn.example/1.jpg">
//	      or plain <img> elements inside .album-pages / #album-pages
//
// Example usage:
//
//	parser := NewParser()
//	album, err := parser.Parse(resp.ContentType, resp.Body)
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes body as JSON or HTML depending on the content type.
func (p *Parser) Parse(contentType string, body []byte) (*dto.JSONAlbum, error) {
	if isJSON(contentType, body) {
		return p.ParseJSON(body)
	}
	return p.ParseHTML(body)
}

// ParseJSON decodes a JSON album description.
func (p *Parser) ParseJSON(body []byte) (*dto.JSONAlbum, error) {
	var album dto.JSONAlbum
	if err := json.Unmarshal(body, &album); err != nil {
		return nil, fmt.Errorf("failed to parse album JSON: %w", err)
	}
	if len(album.Images) == 0 {
		return nil, ErrNoPages
	}
	return &album, nil
}

// ParseHTML extracts page images from an HTML album page.
//
// Elements carrying data-page are used with their explicit numbers. If there
// are none, images inside the page container are numbered in document order.
func (p *Parser) ParseHTML(body []byte) (*dto.JSONAlbum, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse album HTML: %w", err)
	}

	album := &dto.JSONAlbum{Title: pageTitle(doc)}

	var parseErr error
	doc.Find("img[data-page]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.AttrOr("data-page", ""))
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			parseErr = fmt.Errorf("invalid data-page %q", raw)
			return false
		}
		album.Images = append(album.Images, dto.JSONImage{Page: page, URL: imageSource(s)})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	if len(album.Images) == 0 {
		doc.Find(".album-pages img, #album-pages img").Each(func(i int, s *goquery.Selection) {
			album.Images = append(album.Images, dto.JSONImage{URL: imageSource(s)})
		})
	}

	if len(album.Images) == 0 {
		return nil, ErrNoPages
	}
	return album, nil
}

// imageSource prefers lazy-loading attributes over src, which often holds a
// placeholder.
func imageSource(s *goquery.Selection) string {
	for _, attr := range []string{"data-original", "data-src", "src"} {
		if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

func pageTitle(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func isJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
