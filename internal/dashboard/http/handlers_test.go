package dashboardhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmasight/pharmasight/internal/dashboard"
	"github.com/pharmasight/pharmasight/internal/metrics"
)

type fakeFetcher struct {
	err        error
	calls      int
	group      dashboard.GroupData
	groupErr   error
	groupCalls int
	lastUser   string
	lastDate   time.Time
}

func (f *fakeFetcher) FetchGroupForUser(_ context.Context, username string, date time.Time) (dashboard.GroupData, error) {
	f.groupCalls++
	f.lastUser, f.lastDate = username, date
	if f.groupErr != nil {
		return dashboard.GroupData{}, f.groupErr
	}
	data := f.group
	data.Date = date
	return data, nil
}

func (f *fakeFetcher) Fetch(_ context.Context, pharmacyID int64, date time.Time) (dashboard.Dataset, error) {
	f.calls++
	if f.err != nil {
		return dashboard.Dataset{}, f.err
	}
	return dashboard.Dataset{
		PharmacyID: pharmacyID,
		Date:       date,
		Current: []metrics.BusinessDay{
			{PharmacyID: pharmacyID, Date: date, Turnover: decimal.NewFromInt(12000), TransactionCount: 80},
		},
		Prior: []metrics.BusinessDay{
			{PharmacyID: pharmacyID, Date: metrics.ComparableDate(date, date.Weekday()), Turnover: decimal.NewFromInt(10000)},
		},
	}, nil
}

type fakeService struct {
	trend    []metrics.TrendPoint
	trendErr error
	stock    metrics.StockPosition
	stockErr error
	lastDate time.Time
}

func (f *fakeService) Trend(_ context.Context, _ int64, end time.Time) ([]metrics.TrendPoint, error) {
	f.lastDate = end
	return f.trend, f.trendErr
}

func (f *fakeService) Stock(_ context.Context, _ int64, date time.Time) (metrics.StockPosition, error) {
	f.lastDate = date
	return f.stock, f.stockErr
}

type fakePDF struct {
	err error
}

func (f fakePDF) RenderGroup(context.Context, dashboard.GroupReport) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7"), nil
}

func newTestRouter(t *testing.T, svc *fakeService, fetcher *fakeFetcher, pdf PDFService) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, dashboard.NewViews(fetcher, time.Hour), pdf)
	h.WithNow(func() time.Time { return time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC) })
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func get(t *testing.T, router http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSnapshotDefaultsAndViewReuse(t *testing.T) {
	fetcher := &fakeFetcher{}
	router := newTestRouter(t, &fakeService{}, fetcher, nil)

	rr := get(t, router, "/pharmacies/7/snapshot", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	viewID := rr.Header().Get(ViewHeader)
	require.NotEmpty(t, viewID)

	var body struct {
		Status   string                 `json:"status"`
		ViewID   string                 `json:"view_id"`
		Date     time.Time              `json:"date"`
		Mode     metrics.Mode           `json:"mode"`
		Snapshot metrics.MetricSnapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, viewID, body.ViewID)
	assert.True(t, body.Date.Equal(metrics.Date(2024, time.March, 1)))
	assert.Equal(t, metrics.ModeDaily, body.Mode)
	require.True(t, body.Snapshot.TurnoverGrowthPercent.Valid)
	assert.True(t, body.Snapshot.TurnoverGrowthPercent.Decimal.Equal(decimal.NewFromInt(20)))

	rr = get(t, router, "/pharmacies/7/snapshot?mode=monthly", http.Header{ViewHeader: {viewID}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, viewID, rr.Header().Get(ViewHeader))
	assert.Equal(t, 1, fetcher.calls, "mode switch must reuse the committed dataset")
}

func TestSnapshotUnavailable(t *testing.T) {
	router := newTestRouter(t, &fakeService{}, &fakeFetcher{err: errors.New("upstream down")}, nil)

	rr := get(t, router, "/pharmacies/7/snapshot?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Status   string                 `json:"status"`
		Snapshot metrics.MetricSnapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.True(t, body.Snapshot.Turnover.IsZero())
	assert.Equal(t, metrics.TargetNone, body.Snapshot.TargetSource)
}

func TestSnapshotValidation(t *testing.T) {
	router := newTestRouter(t, &fakeService{}, &fakeFetcher{}, nil)
	for _, target := range []string{
		"/pharmacies/abc/snapshot",
		"/pharmacies/0/snapshot",
		"/pharmacies/7/snapshot?date=2024-13-01",
		"/pharmacies/7/snapshot?mode=weekly",
	} {
		rr := get(t, router, target, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"), target)
	}
}

func TestTrendEndpoints(t *testing.T) {
	svc := &fakeService{trend: []metrics.TrendPoint{
		{Date: metrics.Date(2024, time.March, 1), CurrentValue: decimal.NewFromInt(900), ComparisonValue: decimal.NewFromInt(800), Label: "Fri"},
	}}
	router := newTestRouter(t, svc, &fakeFetcher{}, nil)

	rr := get(t, router, "/pharmacies/7/trend?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.True(t, svc.lastDate.Equal(metrics.Date(2024, time.March, 1)))

	rr = get(t, router, "/pharmacies/7/trend.svg?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "<svg"))

	rr = get(t, router, "/pharmacies/7/trend.svg?date=2024-03-01&chart=growth", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Growth vs last year")

	rr = get(t, router, "/pharmacies/7/trend.svg?chart=pie", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	svc.trendErr = errors.New("boom")
	rr = get(t, router, "/pharmacies/7/trend", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"unavailable"`)
	assert.Contains(t, rr.Body.String(), `"points":[]`)

	rr = get(t, router, "/pharmacies/7/trend.svg", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestStockUnavailable(t *testing.T) {
	svc := &fakeService{stockErr: errors.New("boom")}
	router := newTestRouter(t, svc, &fakeFetcher{}, nil)
	rr := get(t, router, "/pharmacies/7/stock", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"unavailable"`)
}

func sampleGroup() dashboard.GroupData {
	return dashboard.GroupData{
		Pharmacies: []metrics.Pharmacy{{ID: 1, Name: "Central"}, {ID: 2, Name: "Harbour"}},
		Datasets: map[int64]dashboard.Dataset{1: {
			PharmacyID: 1,
			Date:       metrics.Date(2024, time.March, 1),
			Current:    []metrics.BusinessDay{{PharmacyID: 1, Date: metrics.Date(2024, time.March, 1), Turnover: decimal.NewFromInt(5000)}},
		}},
		Failed: map[int64]bool{2: true},
	}
}

func TestGroupAndExports(t *testing.T) {
	fetcher := &fakeFetcher{group: sampleGroup()}
	router := newTestRouter(t, &fakeService{}, fetcher, fakePDF{})

	rr := get(t, router, "/users/thandi/group?date=2024-03-01&mode=monthly", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "thandi", fetcher.lastUser)
	assert.True(t, fetcher.lastDate.Equal(metrics.Date(2024, time.March, 1)))
	assert.Contains(t, rr.Body.String(), `"mode":"monthly"`)
	assert.Contains(t, rr.Body.String(), `"failed":true`)
	assert.NotEmpty(t, rr.Header().Get(ViewHeader))

	rr = get(t, router, "/users/thandi/group/export.csv?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "group-2024-03-01-daily.csv")
	assert.Contains(t, rr.Body.String(), "Harbour")

	rr = get(t, router, "/users/thandi/group/pdf?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
}

func TestGroupModeToggleReusesView(t *testing.T) {
	fetcher := &fakeFetcher{group: sampleGroup()}
	router := newTestRouter(t, &fakeService{}, fetcher, nil)

	rr := get(t, router, "/users/thandi/group?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	viewID := rr.Header().Get(ViewHeader)
	require.NotEmpty(t, viewID)

	rr = get(t, router, "/users/thandi/group?date=2024-03-01&mode=monthly", http.Header{ViewHeader: {viewID}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"mode":"monthly"`)
	assert.Equal(t, 1, fetcher.groupCalls, "mode switch must reuse the fetched group data")

	rr = get(t, router, "/users/thandi/group?date=2024-03-01&mode=monthly", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, fetcher.groupCalls, "a new view fetches its own data")
}

func TestGroupErrors(t *testing.T) {
	fetcher := &fakeFetcher{groupErr: errors.New("directory down")}
	router := newTestRouter(t, &fakeService{}, fetcher, fakePDF{err: errors.New("gotenberg down")})
	rr := get(t, router, "/users/thandi/group", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	fetcher.groupErr = dashboard.ErrNoDirectory
	rr = get(t, router, "/users/thandi/group", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	fetcher.groupErr = nil
	fetcher.group = sampleGroup()
	rr = get(t, router, "/users/thandi/group/pdf", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	disabled := newTestRouter(t, &fakeService{}, fetcher, nil)
	rr = get(t, disabled, "/users/thandi/group/pdf", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestExportRateLimit(t *testing.T) {
	router := newTestRouter(t, &fakeService{}, &fakeFetcher{group: sampleGroup()}, fakePDF{})
	for i := 0; i < 10; i++ {
		rr := get(t, router, "/users/thandi/group/export.csv", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := get(t, router, "/users/thandi/group/export.csv", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = get(t, router, "/users/sipho/group/export.csv", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
