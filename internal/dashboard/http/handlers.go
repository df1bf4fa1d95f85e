package dashboardhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmasight/pharmasight/internal/dashboard"
	"github.com/pharmasight/pharmasight/internal/dashboard/export"
	"github.com/pharmasight/pharmasight/internal/dashboard/svg"
	"github.com/pharmasight/pharmasight/internal/metrics"
	"github.com/pharmasight/pharmasight/internal/platform/httpx"
)

// ViewHeader carries the screen identity between requests.
const ViewHeader = "X-View-ID"

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

const defaultRequestTimeout = 30 * time.Second

// DashboardService defines the data contract used by the handler.
type DashboardService interface {
	Trend(ctx context.Context, pharmacyID int64, end time.Time) ([]metrics.TrendPoint, error)
	Stock(ctx context.Context, pharmacyID int64, date time.Time) (metrics.StockPosition, error)
}

// ViewRegistry hands out per-screen views.
type ViewRegistry interface {
	Get(id string) (string, *dashboard.View)
}

// PDFService renders group reports to PDF bytes.
type PDFService interface {
	RenderGroup(ctx context.Context, report dashboard.GroupReport) ([]byte, error)
}

// Handler serves the pharmacy dashboard API.
type Handler struct {
	logger   *slog.Logger
	service  DashboardService
	views    ViewRegistry
	pdf      PDFService
	validate *validator.Validate
	csvPool  sync.Pool
	timeout  time.Duration
	now      func() time.Time
}

// NewHandler constructs the dashboard HTTP handler. pdf may be nil, in which
// case the PDF export answers 503.
func NewHandler(logger *slog.Logger, service DashboardService, views ViewRegistry, pdf PDFService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:   logger,
		service:  service,
		views:    views,
		pdf:      pdf,
		validate: validator.New(),
		timeout:  defaultRequestTimeout,
		now:      time.Now,
	}
	h.csvPool.New = func() any { return &bytes.Buffer{} }
	return h
}

// WithNow overrides the time source (primarily for tests).
func (h *Handler) WithNow(now func() time.Time) {
	if now != nil {
		h.now = now
	}
}

// WithTimeout bounds every upstream-facing request.
func (h *Handler) WithTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

type selection struct {
	Date string `validate:"omitempty,datetime=2006-01-02"`
	Mode string `validate:"omitempty,oneof=daily monthly"`
}

type filters struct {
	date time.Time
	mode metrics.Mode
}

type snapshotResponse struct {
	Status string `json:"status"`
	ViewID string `json:"view_id"`
	dashboard.Report
}

type trendResponse struct {
	Status     string               `json:"status"`
	PharmacyID int64                `json:"pharmacy_id"`
	Date       time.Time            `json:"date"`
	Points     []metrics.TrendPoint `json:"points"`
}

type stockResponse struct {
	Status     string `json:"status"`
	PharmacyID int64  `json:"pharmacy_id"`
	metrics.StockPosition
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	pharmacyID, err := pharmacyParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	f, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	viewID, view := h.views.Get(strings.TrimSpace(r.Header.Get(ViewHeader)))
	w.Header().Set(ViewHeader, viewID)

	report, err := view.Load(ctx, dashboard.LoadContext{PharmacyID: pharmacyID, Date: f.date, Mode: f.mode})
	switch {
	case errors.Is(err, dashboard.ErrStaleLoad):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
		return
	case err != nil:
		h.logger.WarnContext(ctx, "snapshot unavailable",
			slog.Int64("pharmacy_id", pharmacyID),
			slog.String("date", metrics.FormatDate(f.date)),
			slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, snapshotResponse{
			Status: statusUnavailable,
			ViewID: viewID,
			Report: unavailableReport(pharmacyID, f),
		})
		return
	}
	httpx.JSON(w, http.StatusOK, snapshotResponse{Status: statusOK, ViewID: viewID, Report: report})
}

func unavailableReport(pharmacyID int64, f filters) dashboard.Report {
	period := metrics.ResolvePeriod(f.date, f.mode)
	snap := metrics.ZeroSnapshot()
	return dashboard.Report{
		PharmacyID: pharmacyID,
		Date:       f.date,
		Mode:       f.mode,
		Period:     period,
		Snapshot:   snap,
		Captions:   dashboard.BuildCaptions(period, snap),
	}
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	pharmacyID, f, ok := h.pharmacyRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := trendResponse{Status: statusOK, PharmacyID: pharmacyID, Date: f.date}
	points, err := h.service.Trend(ctx, pharmacyID, f.date)
	if err != nil {
		h.logger.WarnContext(ctx, "trend unavailable", slog.Int64("pharmacy_id", pharmacyID), slog.Any("error", err))
		resp.Status = statusUnavailable
		points = []metrics.TrendPoint{}
	}
	resp.Points = points
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTrendSVG(w http.ResponseWriter, r *http.Request) {
	pharmacyID, f, ok := h.pharmacyRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	points, err := h.service.Trend(ctx, pharmacyID, f.date)
	if err != nil {
		h.logger.WarnContext(ctx, "trend unavailable", slog.Int64("pharmacy_id", pharmacyID), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: trend", httpx.ErrUnavailable))
		return
	}
	if len(points) == 0 {
		httpx.RespondError(w, fmt.Errorf("%w: no trading days before %s", httpx.ErrNotFound, metrics.FormatDate(f.date)))
		return
	}
	desc := fmt.Sprintf("Last %d trading days to %s against the same weekday a year earlier", len(points), metrics.FormatDate(f.date))
	var chart template.HTML
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("chart"))) {
	case "", "bars":
		chart, err = svg.TrendBars(0, 0, points, svg.BarOpts{Title: "Trading day turnover", Description: desc})
	case "growth":
		chart, err = svg.GrowthLine(0, 0, points, svg.LineOpts{Description: desc, ShowDots: true})
	default:
		httpx.RespondError(w, fmt.Errorf("%w: chart", httpx.ErrValidation))
		return
	}
	if err != nil {
		h.handleServerError(w, "render trend svg", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(chart)); err != nil {
		h.logError("stream svg", err)
	}
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	pharmacyID, f, ok := h.pharmacyRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	pos, err := h.service.Stock(ctx, pharmacyID, f.date)
	if err != nil {
		h.logger.WarnContext(ctx, "stock unavailable", slog.Int64("pharmacy_id", pharmacyID), slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, stockResponse{
			Status:        statusUnavailable,
			PharmacyID:    pharmacyID,
			StockPosition: metrics.StockPosition{Date: f.date},
		})
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{Status: statusOK, PharmacyID: pharmacyID, StockPosition: pos})
}

func (h *Handler) handleGroup(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleGroupCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadGroup(w, r)
	if !ok {
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WriteGroupCSV(buf, report); err != nil {
		h.handleServerError(w, "write group csv", err)
		return
	}

	filename := fmt.Sprintf("group-%s-%s.csv", metrics.FormatDate(report.Date), report.Mode)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleGroupPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "PDF Export Disabled", "no PDF renderer configured")
		return
	}
	report, ok := h.loadGroup(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	pdfBytes, err := h.pdf.RenderGroup(ctx, report)
	if err != nil {
		h.handleServerError(w, "render group pdf", err)
		return
	}

	filename := fmt.Sprintf("group-%s-%s.pdf", metrics.FormatDate(report.Date), report.Mode)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(pdfBytes); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) loadGroup(w http.ResponseWriter, r *http.Request) (dashboard.GroupReport, bool) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		httpx.RespondError(w, fmt.Errorf("%w: username required", httpx.ErrValidation))
		return dashboard.GroupReport{}, false
	}
	f, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return dashboard.GroupReport{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	viewID, view := h.views.Get(strings.TrimSpace(r.Header.Get(ViewHeader)))
	w.Header().Set(ViewHeader, viewID)

	report, err := view.LoadGroup(ctx, dashboard.GroupContext{Username: username, Date: f.date, Mode: f.mode})
	switch {
	case errors.Is(err, dashboard.ErrStaleLoad):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
		return dashboard.GroupReport{}, false
	case errors.Is(err, dashboard.ErrNoDirectory):
		h.handleServerError(w, "load group", err)
		return dashboard.GroupReport{}, false
	case err != nil:
		h.logger.WarnContext(ctx, "pharmacy directory unavailable", slog.String("username", username), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: pharmacy directory", httpx.ErrUnavailable))
		return dashboard.GroupReport{}, false
	}
	return report, true
}

func (h *Handler) pharmacyRequest(w http.ResponseWriter, r *http.Request) (int64, filters, bool) {
	pharmacyID, err := pharmacyParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, filters{}, false
	}
	f, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, filters{}, false
	}
	return pharmacyID, f, true
}

func pharmacyParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "pharmacyID"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: pharmacy id %q", httpx.ErrValidation, raw)
	}
	return id, nil
}

// parseFilters reads date and mode. The date defaults to yesterday (UTC),
// the last complete trading day.
func (h *Handler) parseFilters(r *http.Request) (filters, error) {
	q := r.URL.Query()
	sel := selection{
		Date: strings.TrimSpace(q.Get("date")),
		Mode: strings.ToLower(strings.TrimSpace(q.Get("mode"))),
	}
	if err := h.validate.Struct(sel); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return filters{}, fmt.Errorf("%w: %s", httpx.ErrValidation, strings.ToLower(fieldErrs[0].Field()))
		}
		return filters{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	var f filters
	if sel.Date == "" {
		f.date = metrics.Day(h.now().UTC()).AddDate(0, 0, -1)
	} else {
		date, err := metrics.ParseDate(sel.Date)
		if err != nil {
			return filters{}, fmt.Errorf("%w: date", httpx.ErrValidation)
		}
		f.date = date
	}
	mode, err := metrics.ParseMode(sel.Mode)
	if err != nil {
		return filters{}, fmt.Errorf("%w: mode", httpx.ErrValidation)
	}
	f.mode = mode
	return f, nil
}

func (h *Handler) handleServerError(w http.ResponseWriter, op string, err error) {
	h.logError(op, err)
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", op+" failed")
}

func (h *Handler) logError(op string, err error) {
	h.logger.Error("dashboard handler error", slog.String("op", op), slog.Any("error", err))
}
