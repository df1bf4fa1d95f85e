package svg

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

func TestLineProducesSVG(t *testing.T) {
	html, err := Line(400, 200, []float64{10, -5, 2.5}, nil, []string{"Mon", "Tue", "Wed"}, LineOpts{
		Title:    "Growth",
		ShowDots: true,
	})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") || !strings.Contains(output, "<path") {
		t.Fatalf("expected svg with path, got %s", output)
	}
	if strings.Count(output, "<circle") != 3 {
		t.Fatalf("expected a dot per value")
	}
	if !strings.Contains(output, "aria-labelledby") {
		t.Fatalf("expected accessibility attributes")
	}
}

func TestGrowthLineSkipsMissingPriorYear(t *testing.T) {
	points := []metrics.TrendPoint{
		{Date: metrics.Date(2024, time.March, 1), CurrentValue: decimal.NewFromInt(120), ComparisonValue: decimal.NewFromInt(100), Label: "Fri"},
		{Date: metrics.Date(2024, time.March, 2), CurrentValue: decimal.NewFromInt(80), Label: "Sat"},
		{Date: metrics.Date(2024, time.March, 4), CurrentValue: decimal.NewFromInt(90), ComparisonValue: decimal.NewFromInt(100), Label: "Mon"},
	}
	html, err := GrowthLine(0, 0, points, LineOpts{ShowDots: true})
	if err != nil {
		t.Fatalf("growth line error: %v", err)
	}
	output := string(html)
	if strings.Count(output, "<circle") != 2 {
		t.Fatalf("expected dots only for days with a prior-year value")
	}
	if strings.Count(output, " M") != 1 || !strings.Contains(output, `d="M`) {
		t.Fatalf("expected the gap to restart the path, got %s", output)
	}
	if !strings.Contains(output, "Growth vs last year") {
		t.Fatalf("expected default title")
	}
}

func TestLineValidatesInput(t *testing.T) {
	if _, err := Line(0, 0, nil, nil, nil, LineOpts{}); err == nil {
		t.Fatalf("expected error for empty series")
	}
	if _, err := Line(0, 0, []float64{1}, []bool{true, false}, []string{"a"}, LineOpts{}); err == nil {
		t.Fatalf("expected presence length error")
	}
	if _, err := GrowthLine(0, 0, nil, LineOpts{}); err == nil {
		t.Fatalf("expected error for empty trend")
	}
}
