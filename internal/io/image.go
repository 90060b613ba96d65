package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// PageImage is a decoded page ready to be embedded in a document.
type PageImage struct {
	// Data holds JPEG bytes.
	Data []byte

	// Width and Height are the pixel dimensions.
	Width  int
	Height int

	// SourceFormat is the format the page was stored in ("jpeg", "png", ...).
	SourceFormat string

	// Converted is true when Data was re-encoded from the source.
	Converted bool
}

// ImageService prepares page images for PDF embedding.
//
// Every page is fully decoded so that corrupt files are detected before the
// document is written. JPEG pages in a color model a PDF can hold directly
// (gray, YCbCr, CMYK) are passed through byte for byte; everything else is
// flattened onto white and re-encoded as RGB JPEG.
//
// Example usage:
//
//	svc := NewImageService()
//	page, err := svc.Normalize(ctx, data)
//	if err != nil {
//	    // not an image
//	}
type ImageService struct {
	quality int
}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{quality: 90}
}

// Normalize decodes data and returns it as an embeddable JPEG.
//
// Returns an error if data cannot be decoded as any registered format
// (JPEG, PNG, GIF, WebP, BMP).
func (s *ImageService) Normalize(ctx context.Context, data []byte) (*PageImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	page := &PageImage{
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceFormat: format,
	}

	if format == "jpeg" && embeddableModel(img.ColorModel()) {
		page.Data = data
		return page, nil
	}

	converted, err := s.ConvertToJPEG(ctx, img)
	if err != nil {
		return nil, err
	}
	page.Data = converted
	page.Converted = true
	return page, nil
}

// ConvertToJPEG flattens img onto a white canvas and encodes it as an RGB
// JPEG with 90% quality.
func (s *ImageService) ConvertToJPEG(ctx context.Context, img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func embeddableModel(m color.Model) bool {
	switch m {
	case color.YCbCrModel, color.GrayModel, color.CMYKModel:
		return true
	}
	return false
}
