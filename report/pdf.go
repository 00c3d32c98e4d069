package report

import (
	"bytes"
	"context"
	"fmt"

	"stock-forecast/models"
	"stock-forecast/observability"
	"stock-forecast/services"
	"stock-forecast/templates"
)

// Artifact is a downloadable report
type Artifact struct {
	Data        []byte
	ContentType string
	FileName    string
	// Degraded is set when the PDF could not be rendered and the HTML
	// report is served in its place
	Degraded bool
}

// RenderHTML renders the standalone report page, with an optional error
// banner on top
func RenderHTML(ctx context.Context, p *models.ReportPayload, banner string) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.Report(templates.ReportData{Payload: p, Banner: banner}).Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}
	return buf.Bytes(), nil
}

// Builder produces PDF reports through a renderer
type Builder struct {
	renderer services.PDFRenderer
}

// NewBuilder creates a builder. A nil renderer always degrades.
func NewBuilder(renderer services.PDFRenderer) *Builder {
	return &Builder{renderer: renderer}
}

// BuildPDF renders the report as PDF. Renderer failures fall back to the
// HTML report with an error banner; only a template failure is returned.
func (b *Builder) BuildPDF(ctx context.Context, p *models.ReportPayload) (*Artifact, error) {
	metrics := observability.GetMetrics()

	html, err := RenderHTML(ctx, p, "")
	if err != nil {
		return nil, err
	}

	var renderErr error
	if b.renderer == nil {
		renderErr = fmt.Errorf("no pdf renderer configured")
	} else {
		pdf, err := b.renderer.Render(ctx, html)
		if err == nil && len(pdf) > 0 {
			metrics.RecordExport("pdf")
			return &Artifact{Data: pdf, ContentType: "application/pdf", FileName: p.Ticker + "_report.pdf"}, nil
		}
		renderErr = err
		if renderErr == nil {
			renderErr = fmt.Errorf("renderer returned an empty document")
		}
	}

	observability.WithSymbol(p.Ticker).Warn().Err(renderErr).Msg("pdf rendering failed, serving html report")
	metrics.RecordDegradation("pdf")

	placeholder, err := RenderHTML(ctx, p, "PDF rendering is unavailable ("+renderErr.Error()+"). This is the HTML version of the report.")
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Data:        placeholder,
		ContentType: "text/html; charset=utf-8",
		FileName:    p.Ticker + "_report.html",
		Degraded:    true,
	}, nil
}

// BuildCSV renders the forecast export
func BuildCSV(ticker string, fc *models.ForecastResult) (*Artifact, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, fc); err != nil {
		return nil, fmt.Errorf("write forecast csv: %w", err)
	}
	observability.GetMetrics().RecordExport("csv")
	return &Artifact{Data: buf.Bytes(), ContentType: "text/csv", FileName: ticker + "_forecast.csv"}, nil
}
