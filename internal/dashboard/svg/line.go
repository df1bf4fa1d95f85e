package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	StrokeColor string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
}

// GrowthLine plots day-on-day growth against the weekday-matched prior year
// for each trend point. Days without a prior-year value leave a gap.
func GrowthLine(width, height int, points []metrics.TrendPoint, opts LineOpts) (template.HTML, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("svg: no trend points")
	}
	series := make([]float64, len(points))
	present := make([]bool, len(points))
	labels := make([]string, len(points))
	for i, p := range points {
		labels[i] = p.Label
		if p.ComparisonValue.IsPositive() {
			pct := p.CurrentValue.Sub(p.ComparisonValue).Div(p.ComparisonValue).Shift(2)
			series[i] = pct.InexactFloat64()
			present[i] = true
		}
	}
	if opts.Title == "" {
		opts.Title = "Growth vs last year (%)"
	}
	return Line(width, height, series, present, labels, opts)
}

// Line renders a single series that may cross zero. present marks which
// values exist; a nil slice means all do.
func Line(width, height int, series []float64, present []bool, labels []string, opts LineOpts) (template.HTML, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("svg: series required")
	}
	if len(series) != len(labels) || (present != nil && len(present) != len(series)) {
		return "", fmt.Errorf("svg: labels length must match series")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	pad := opts.Padding
	if pad <= 0 {
		pad = DefaultPadding
	}
	plotW := float64(width) - 2*pad
	plotH := float64(height) - 2*pad
	if plotW <= 0 || plotH <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	has := func(i int) bool { return present == nil || present[i] }

	lo, hi := 0.0, 0.0
	for i, v := range series {
		if has(i) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if hi-lo < 1e-9 {
		hi = lo + 1
	}
	scale := plotH / (hi - lo)
	y := func(v float64) float64 { return pad + plotH - (v-lo)*scale }
	x := func(i int) float64 {
		if len(series) == 1 {
			return pad + plotW/2
		}
		return pad + float64(i)*plotW/float64(len(series)-1)
	}

	ticks := opts.TickCount
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	stroke := orDefault(opts.StrokeColor, "#0d9488")
	axis := orDefault(opts.AxisColor, "#475569")
	grid := orDefault(opts.GridColor, "#e2e8f0")
	title := orDefault(opts.Title, "Line chart")
	titleID := chartID(title, "line-title")
	descID := chartID(title, "line-desc")

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, width, height, titleID, descID)
	fmt.Fprintf(&b, `<title id="%s">%s</title>`, titleID, esc(title))
	fmt.Fprintf(&b, `<desc id="%s">%s</desc>`, descID, esc(orDefault(opts.Description, "Trend data")))

	for i := 0; i <= ticks; i++ {
		value := lo + (hi-lo)*float64(i)/float64(ticks)
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, pad, y(value), pad+plotW, y(value), grid)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, pad-6, y(value)+4, axis, esc(tickLabel(value)))
	}
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="1"></line>`, pad, y(0), pad+plotW, y(0), axis)

	var path strings.Builder
	pen := false
	for i, v := range series {
		if !has(i) {
			pen = false
			continue
		}
		cmd := "L"
		if !pen {
			cmd = "M"
		}
		if path.Len() > 0 {
			path.WriteByte(' ')
		}
		fmt.Fprintf(&path, "%s%.2f %.2f", cmd, x(i), y(v))
		pen = true
	}
	if path.Len() > 0 {
		fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, path.String(), stroke)
	}
	if opts.ShowDots {
		for i, v := range series {
			if has(i) {
				fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"></circle>`, x(i), y(v), stroke)
			}
		}
	}
	for i, label := range labels {
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, x(i), pad+plotH+14, axis, esc(label))
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
