package pdf

import (
	"bytes"
	"io"

	"github.com/jung-kurt/gofpdf"

	ioutils "github.com/handiism/albumpdf/internal/io"
)

// pageWriter accumulates pages and writes the finished document.
type pageWriter interface {
	AddPage(name string, img *ioutils.PageImage) error
	Output(w io.Writer) error
}

// A4 in points, used only until the first page sets its own size.
var defaultPageSize = gofpdf.SizeType{Wd: 595.28, Ht: 841.89}

// gofpdfWriter places each image on a page of exactly its own size.
type gofpdfWriter struct {
	pdf *gofpdf.Fpdf
	dpi float64
}

func newGofpdfWriter(dpi float64, title string) pageWriter {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    defaultPageSize,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	pdf.SetCreator("albumpdf", true)
	return &gofpdfWriter{pdf: pdf, dpi: dpi}
}

func (g *gofpdfWriter) AddPage(name string, img *ioutils.PageImage) error {
	size := gofpdf.SizeType{
		Wd: float64(img.Width) * 72 / g.dpi,
		Ht: float64(img.Height) * 72 / g.dpi,
	}
	// Always portrait: gofpdf swaps width and height for "L".
	g.pdf.AddPageFormat("P", size)

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	if info := g.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data)); info == nil {
		return g.pdf.Error()
	}
	g.pdf.ImageOptions(name, 0, 0, size.Wd, size.Ht, false, opts, 0, "")
	return g.pdf.Error()
}

func (g *gofpdfWriter) Output(w io.Writer) error {
	if err := g.pdf.Error(); err != nil {
		return err
	}
	return g.pdf.Output(w)
}
