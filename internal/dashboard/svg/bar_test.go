package svg

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

func TestTrendBarsProducesSVG(t *testing.T) {
	points := []metrics.TrendPoint{
		{Date: metrics.Date(2024, time.March, 1), CurrentValue: decimal.NewFromInt(12000), ComparisonValue: decimal.NewFromInt(10000), Label: "Fri"},
		{Date: metrics.Date(2024, time.March, 2), CurrentValue: decimal.NewFromInt(8000), Label: "Sat"},
	}
	html, err := TrendBars(0, 0, points, BarOpts{Title: "Trend <14 days>"})
	if err != nil {
		t.Fatalf("trend bars error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") || !strings.HasSuffix(output, "</svg>") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if strings.Count(output, "<rect") != 6 {
		t.Fatalf("expected four bars and two legend swatches, got %d rects", strings.Count(output, "<rect"))
	}
	if !strings.Contains(output, "Trend &lt;14 days&gt;") {
		t.Fatalf("expected escaped title")
	}
	if !strings.Contains(output, "Last year Fri") {
		t.Fatalf("expected prior-year bar label")
	}
}

func TestBarsValidatesInput(t *testing.T) {
	if _, err := TrendBars(0, 0, nil, BarOpts{}); err == nil {
		t.Fatalf("expected error for empty trend")
	}
	if _, err := Bars(0, 0, []float64{1}, []float64{1, 2}, []string{"a"}, BarOpts{}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := Bars(20, 20, []float64{1}, nil, []string{"a"}, BarOpts{Padding: 40}); err == nil {
		t.Fatalf("expected viewport error")
	}
}

func TestBarsAllZero(t *testing.T) {
	html, err := Bars(300, 120, []float64{0, 0}, []float64{0, 0}, []string{"Mon", "Tue"}, BarOpts{})
	if err != nil {
		t.Fatalf("bars error: %v", err)
	}
	if strings.Contains(string(html), "NaN") {
		t.Fatalf("unexpected NaN in output")
	}
}
