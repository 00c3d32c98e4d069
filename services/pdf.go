package services

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// WkhtmltopdfRenderer renders HTML through the wkhtmltopdf binary
type WkhtmltopdfRenderer struct {
	binPath string
}

// wkhtmltopdf.SetPath mutates package state
var wkhtmltopdfPathMu sync.Mutex

// NewWkhtmltopdfRenderer creates a renderer. An empty path searches $PATH
// and the WKHTMLTOPDF_PATH environment variable.
func NewWkhtmltopdfRenderer(binPath string) *WkhtmltopdfRenderer {
	return &WkhtmltopdfRenderer{binPath: binPath}
}

// Render converts an HTML document into an A4 portrait PDF
func (r *WkhtmltopdfRenderer) Render(ctx context.Context, html []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.binPath != "" {
		wkhtmltopdfPathMu.Lock()
		wkhtmltopdf.SetPath(r.binPath)
		wkhtmltopdfPathMu.Unlock()
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("wkhtmltopdf unavailable: %w", err)
	}
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.Dpi.Set(150)
	pdfg.Quiet.Set(true)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.CreateContext(ctx); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdfg.Bytes(), nil
}
