package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmasight/pharmasight/internal/dashboard"
	"github.com/pharmasight/pharmasight/internal/metrics"
)

// PDFExporter wraps Gotenberg interactions for group exports.
type PDFExporter struct {
	Endpoint string
	Client   *http.Client
}

// Enabled reports whether a Gotenberg endpoint is configured.
func (p *PDFExporter) Enabled() bool {
	return p != nil && strings.TrimSpace(p.Endpoint) != ""
}

// Ping checks that the Gotenberg service answers its health endpoint.
func (p *PDFExporter) Ping(ctx context.Context) error {
	if !p.Enabled() {
		return fmt.Errorf("export: gotenberg endpoint required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.Endpoint, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return fmt.Errorf("export: gotenberg: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("export: gotenberg health status %d", resp.StatusCode)
	}
	return nil
}

func (p *PDFExporter) client() *http.Client {
	if p.Client == nil {
		return http.DefaultClient
	}
	return p.Client
}

// RenderGroup sends the group report as HTML to Gotenberg and returns the PDF bytes.
func (p *PDFExporter) RenderGroup(ctx context.Context, report dashboard.GroupReport) ([]byte, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("export: gotenberg endpoint required")
	}
	html, err := GroupHTML(report)
	if err != nil {
		return nil, err
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html); err != nil {
		return nil, err
	}
	if err := writer.WriteField("landscape", "true"); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(p.Endpoint, "/") + "/forms/chromium/convert/html"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("export: gotenberg: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("export: gotenberg response %d: %s", resp.StatusCode, string(data))
	}
	return io.ReadAll(resp.Body)
}

var groupTemplate = template.Must(template.New("group").Funcs(template.FuncMap{
	"date":    metrics.FormatDate,
	"money":   dashboard.Money,
	"growth":  func(v decimal.NullDecimal) string { return dashboard.Percent(v, true) },
	"percent": func(v decimal.NullDecimal) string { return dashboard.Percent(v, false) },
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><style>
body{font-family:sans-serif;margin:24px;color:#0f172a}
h1{font-size:20px}
table{width:100%;border-collapse:collapse}
th,td{border:1px solid #e2e8f0;padding:6px;text-align:right}
th{background:#f1f5f9}
td.name,th.name{text-align:left}
tr.failed td{color:#94a3b8}
tfoot td{font-weight:bold}
</style></head><body>
<h1>Group performance {{date .Date}} ({{.Mode}})</h1>
<table>
<thead><tr><th class="name">Pharmacy</th><th>Turnover</th><th>Prior year</th><th>Growth</th><th>Target</th><th>Achieved</th><th>GP %</th><th>Purchases</th><th>Budget</th></tr></thead>
<tbody>
{{range .Entries}}<tr{{if .Failed}} class="failed"{{end}}><td class="name">{{.Pharmacy.Name}}{{if .Failed}} (unavailable){{end}}</td><td>{{money .Snapshot.Turnover}}</td><td>{{money .Snapshot.ComparisonTurnover}}</td><td>{{growth .Snapshot.TurnoverGrowthPercent}}</td><td>{{money .Snapshot.Target}}</td><td>{{percent .Snapshot.TargetAchievementPercent}}</td><td>{{.Snapshot.GrossProfitPercent.StringFixed 1}}</td><td>{{money .Snapshot.Purchases}}</td><td>{{money .Snapshot.PurchaseBudget}}</td></tr>
{{end}}</tbody>
<tfoot><tr><td class="name">Total ({{.Summary.Loaded}} loaded, {{.Summary.Failed}} unavailable)</td><td>{{money .Summary.Turnover}}</td><td>{{money .Summary.ComparisonTurnover}}</td><td>{{growth .Summary.TurnoverGrowthPercent}}</td><td>{{money .Summary.Target}}</td><td></td><td></td><td>{{money .Summary.Purchases}}</td><td></td></tr></tfoot>
</table>
</body></html>`))

type groupView struct {
	Date    time.Time
	Mode    metrics.Mode
	Entries []dashboard.GroupEntry
	Summary dashboard.GroupSummary
}

// GroupHTML renders the printable group table.
func GroupHTML(report dashboard.GroupReport) ([]byte, error) {
	var buf bytes.Buffer
	err := groupTemplate.Execute(&buf, groupView{
		Date:    report.Date,
		Mode:    report.Mode,
		Entries: report.Sorted(),
		Summary: report.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("export: render html: %w", err)
	}
	return buf.Bytes(), nil
}
