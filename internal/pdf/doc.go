// Package pdf assembles downloaded album pages into a single PDF document.
//
// Pages are embedded as JPEG. JPEG files in gray, YCbCr or CMYK are copied
// as-is; PNG, GIF, WebP, BMP and JPEGs in other color models are flattened
// and re-encoded first. Each PDF page takes the pixel size of its image at
// pdf_dpi (default 100).
//
//	assembler := pdf.NewAssembler(settings, local)
//	doc, err := assembler.Assemble(ctx, "12345")
//	fmt.Println(doc.Path, doc.Pages)
//
// Batch mode assembles every album directory that lacks a document:
//
//	docs, err := assembler.AssembleAll(ctx)
package pdf
