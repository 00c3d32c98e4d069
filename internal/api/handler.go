package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"stock-forecast/config"
	"stock-forecast/internal/app"
	"stock-forecast/models"
	"stock-forecast/observability"
	"stock-forecast/report"
	"stock-forecast/services"
	"stock-forecast/templates"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
)

const (
	sessionName    = "stock-forecast"
	defaultHorizon = 30
)

// Flash categories, matching the bootstrap alert classes
const (
	flashDanger  = "danger"
	flashWarning = "warning"
)

var validate = validator.New()

// AnalyzeRequest is the form (or JSON body) submitted for an analysis
type AnalyzeRequest struct {
	Ticker     string `json:"ticker" validate:"required,max=10"`
	Horizon    int    `json:"horizon" validate:"gte=1,ltefield=MaxHorizon"`
	MaxHorizon int    `json:"-"`
}

// Handler handles HTTP requests
type Handler struct {
	app      *app.App
	cfg      *config.Config
	sessions sessions.Store
}

// NewHandler creates a new Handler. Flash cookies are signed with the
// configured secret key.
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	store := sessions.NewCookieStore([]byte(cfg.HTTP.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Handler{app: application, cfg: cfg, sessions: store}
}

// HandleIndex serves the ticker form along with any pending flashes
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := templates.IndexData{
		Flashes:    h.popFlashes(w, r),
		Ticker:     r.URL.Query().Get("ticker"),
		Horizon:    h.defaultHorizon(),
		MaxHorizon: h.app.MaxHorizon(),
	}
	h.htmlResponse(w, templates.Index(data), r)
}

// HandleAnalyze runs an analysis from the index form and renders the
// dashboard. Failures are flashed and redirect back to the form.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseForm(r)
	if err != nil {
		h.redirectWithFlash(w, r, flashDanger, err.Error())
		return
	}

	result, err := h.app.Analyze(r.Context(), req.Ticker, req.Horizon)
	if err != nil {
		h.flashAnalysisError(w, r, req.Ticker, err)
		return
	}

	h.htmlResponse(w, templates.Dashboard(result.Payload), r)
}

// HandleDownloadPDF streams the PDF report, or the HTML report when PDF
// rendering is unavailable
func (h *Handler) HandleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, h.app.ExportPDF)
}

// HandleDownloadCSV streams the forecast as CSV
func (h *Handler) HandleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, h.app.ExportCSV)
}

type exportFunc func(ctx context.Context, ticker string, horizon int) (*report.Artifact, error)

func (h *Handler) download(w http.ResponseWriter, r *http.Request, export exportFunc) {
	req, err := h.parseForm(r)
	if err != nil {
		h.redirectWithFlash(w, r, flashDanger, err.Error())
		return
	}

	artifact, err := export(r.Context(), req.Ticker, req.Horizon)
	if err != nil {
		h.flashAnalysisError(w, r, req.Ticker, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

// HandlePing answers liveness checks
func (h *Handler) HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "pong")
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}

	deps := h.app.Health(r.Context())
	for _, state := range deps {
		if state != "ok" {
			status["status"] = "degraded"
			break
		}
	}
	status["services"] = deps

	// Add circuit breaker status
	cbStatus := services.GetGlobalRegistry().Status()
	status["circuit_breakers"] = cbStatus

	// Any open breaker means an upstream is being skipped
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// HandleAPIAnalyze runs an analysis and returns the report payload as JSON
func (h *Handler) HandleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Horizon == 0 {
			req.Horizon = h.defaultHorizon()
		}
	} else {
		_ = r.ParseForm()
		req.Ticker = r.FormValue("ticker")
		horizon, err := h.parseHorizon(r.FormValue("horizon"))
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Horizon = horizon
	}
	if err := h.validateRequest(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.app.Analyze(r.Context(), req.Ticker, req.Horizon)
	if err != nil {
		h.jsonError(w, publicMessage(req.Ticker, err), statusFor(err))
		return
	}

	h.jsonResponse(w, result.Payload)
}

// parseForm reads and validates the ticker/horizon form fields
func (h *Handler) parseForm(r *http.Request) (*AnalyzeRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("could not read the submitted form")
	}

	horizon, err := h.parseHorizon(r.FormValue("horizon"))
	if err != nil {
		return nil, err
	}

	req := &AnalyzeRequest{Ticker: r.FormValue("ticker"), Horizon: horizon}
	if err := h.validateRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// parseHorizon parses the horizon field. A missing horizon defaults to 30 days.
func (h *Handler) parseHorizon(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.defaultHorizon(), nil
	}
	horizon, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("Forecast horizon must be a whole number of days")
	}
	return horizon, nil
}

func (h *Handler) validateRequest(req *AnalyzeRequest) error {
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	req.MaxHorizon = h.app.MaxHorizon()

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return err
		}
		switch fe := verrs[0]; fe.Field() {
		case "Ticker":
			if fe.Tag() == "required" {
				return fmt.Errorf("Please enter a ticker symbol")
			}
			return fmt.Errorf("Ticker symbols are at most 10 characters")
		default:
			return fmt.Errorf("Forecast horizon must be between 1 and %d days", req.MaxHorizon)
		}
	}
	if _, err := app.NormalizeTicker(req.Ticker); err != nil {
		return fmt.Errorf("Invalid ticker symbol %q", req.Ticker)
	}
	return nil
}

func (h *Handler) defaultHorizon() int {
	if limit := h.app.MaxHorizon(); limit > 0 && limit < defaultHorizon {
		return limit
	}
	return defaultHorizon
}

// flashAnalysisError flashes a user-facing message for err and redirects
// to the form. Internal failures are logged and reported generically.
func (h *Handler) flashAnalysisError(w http.ResponseWriter, r *http.Request, ticker string, err error) {
	category := flashDanger
	if errors.Is(err, app.ErrBusy) {
		category = flashWarning
	}
	if statusFor(err) == http.StatusInternalServerError {
		observability.WithSymbol(ticker).Error().Err(err).Str("path", r.URL.Path).Msg("analysis failed")
	}
	h.redirectWithFlash(w, r, category, publicMessage(ticker, err))
}

// publicMessage is the text shown to the user for an analysis error
func publicMessage(ticker string, err error) string {
	switch {
	case errors.Is(err, models.ErrNoData):
		return fmt.Sprintf("No data for %q. Check the ticker symbol and try again.", ticker)
	case errors.Is(err, app.ErrInvalidInput):
		return strings.TrimPrefix(err.Error(), app.ErrInvalidInput.Error()+": ")
	case errors.Is(err, app.ErrBusy):
		return "The server is busy with other analyses. Please try again shortly."
	case errors.Is(err, context.DeadlineExceeded):
		return "The analysis took too long. Please try again."
	default:
		return "The analysis could not be completed. Please try again later."
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, app.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	session, _ := h.sessions.Get(r, sessionName)
	session.AddFlash(message, category)
	if err := session.Save(r, w); err != nil {
		observability.Warn("failed to save flash message", "error", err.Error())
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) popFlashes(w http.ResponseWriter, r *http.Request) []templates.Flash {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}

	var flashes []templates.Flash
	for _, category := range []string{flashDanger, flashWarning} {
		for _, f := range session.Flashes(category) {
			if msg, ok := f.(string); ok {
				flashes = append(flashes, templates.Flash{Category: category, Message: msg})
			}
		}
	}
	if len(flashes) > 0 {
		_ = session.Save(r, w)
	}
	return flashes
}

// templComponent matches the templ.Component interface
type templComponent interface {
	Render(ctx context.Context, w io.Writer) error
}

// htmlResponse renders a templ component as HTML
func (h *Handler) htmlResponse(w http.ResponseWriter, component templComponent, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		observability.Error("failed to render page", "path", r.URL.Path, "error", err.Error())
	}
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
