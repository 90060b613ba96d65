// Package ioutils provides file system and image processing utilities.
//
// # Atomic Writes
//
//	// Publish bytes so no reader ever sees a truncated file
//	err := ioutils.WriteFileAtomic(ctx, "/data/img/12345/1.jpg", data)
//
//	// Stream into place
//	err := ioutils.WriteAtomic(ctx, "/data/img/12345.pdf", func(w io.Writer) error {
//	    return pdf.Output(w)
//	})
//
// In-progress files end in TempSuffix; IsTempFile identifies them.
//
// # Image Processing
//
// The ImageService decodes pages and prepares them for PDF embedding:
//
//	svc := ioutils.NewImageService()
//	page, err := svc.Normalize(ctx, pngData) // page.Data is JPEG
package ioutils
