// Package templates renders the dashboard pages and the printable report.
// Pages are exposed as templ components so handlers stream them the same
// way regardless of how a page is authored.
package templates

import (
	"context"
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"

	"stock-forecast/models"
)

//go:embed html/*.html
var files embed.FS

var funcs = template.FuncMap{
	"verdictClass": func(v models.Verdict) string {
		switch v {
		case models.VerdictBuy:
			return "success"
		case models.VerdictSell:
			return "danger"
		default:
			return "secondary"
		}
	},
	"ratingClass": func(r models.RatingLabel) string {
		switch r {
		case models.RatingStrongBuy, models.RatingBuy:
			return "success"
		case models.RatingStrongSell, models.RatingSell:
			return "danger"
		default:
			return "secondary"
		}
	},
	"upper": strings.ToUpper,
}

var pages = template.Must(template.New("pages").Funcs(funcs).ParseFS(files, "html/*.html"))

// Flash is a one-shot message shown above the form
type Flash struct {
	Category string
	Message  string
}

// IndexData feeds the ticker form
type IndexData struct {
	Flashes    []Flash
	Ticker     string
	Horizon    int
	MaxHorizon int
}

// ReportData feeds the printable report; Banner is set when the report is
// served in place of a PDF that could not be rendered
type ReportData struct {
	Payload *models.ReportPayload
	Banner  string
}

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

// Index renders the ticker form
func Index(data IndexData) templ.Component {
	return render("index.html", data)
}

// Dashboard renders the analysis for one ticker
func Dashboard(p *models.ReportPayload) templ.Component {
	return render("dashboard.html", p)
}

// Report renders the standalone report document
func Report(data ReportData) templ.Component {
	return render("report.html", data)
}
