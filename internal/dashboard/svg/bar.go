// Package svg renders the dashboard's server-side charts as inline SVG.
package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title        string
	Description  string
	CurrentLabel string
	PriorLabel   string
	ColorCurrent string
	ColorPrior   string
	AxisColor    string
	GridColor    string
	Padding      float64
	TickCount    int
}

// Defaults for the dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 28.0
	DefaultTicks   = 5
)

// TrendBars draws the trading-day trend: one pair of bars per point, the
// current value beside its weekday-matched prior-year value.
func TrendBars(width, height int, points []metrics.TrendPoint, opts BarOpts) (template.HTML, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("svg: no trend points")
	}
	current := make([]float64, len(points))
	prior := make([]float64, len(points))
	labels := make([]string, len(points))
	for i, p := range points {
		current[i] = p.CurrentValue.InexactFloat64()
		prior[i] = p.ComparisonValue.InexactFloat64()
		labels[i] = p.Label
	}
	return Bars(width, height, current, prior, labels, opts)
}

type frame struct {
	width, height int
	pad           float64
	plotW, plotH  float64
	max           float64
	scale         float64
}

func (f frame) bottom() float64 { return f.pad + f.plotH }

func (f frame) y(value float64) float64 { return f.bottom() - value*f.scale }

// Bars renders a grouped bar chart of two non-negative series sharing labels.
func Bars(width, height int, current, prior []float64, labels []string, opts BarOpts) (template.HTML, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("svg: labels required")
	}
	if len(current) != len(labels) || (len(prior) > 0 && len(prior) != len(labels)) {
		return "", fmt.Errorf("svg: series length must match labels")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	f := frame{width: width, height: height, pad: opts.Padding}
	if f.pad <= 0 {
		f.pad = DefaultPadding
	}
	f.plotW = float64(width) - 2*f.pad
	f.plotH = float64(height) - 2*f.pad
	if f.plotW <= 0 || f.plotH <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	f.max = math.Max(peak(current), peak(prior))
	if f.max <= 0 {
		f.max = 1
	}
	f.scale = f.plotH / f.max

	ticks := opts.TickCount
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	axis := orDefault(opts.AxisColor, "#475569")
	grid := orDefault(opts.GridColor, "#e2e8f0")
	colorCur := orDefault(opts.ColorCurrent, "#0d9488")
	colorPrior := orDefault(opts.ColorPrior, "#94a3b8")
	labelCur := orDefault(opts.CurrentLabel, "This year")
	labelPrior := orDefault(opts.PriorLabel, "Last year")
	title := orDefault(opts.Title, "Trading day turnover")
	titleID := chartID(title, "title")
	descID := chartID(title, "desc")

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, width, height, titleID, descID)
	fmt.Fprintf(&b, `<title id="%s">%s</title>`, titleID, esc(title))
	fmt.Fprintf(&b, `<desc id="%s">%s</desc>`, descID, esc(orDefault(opts.Description, "Current period compared with the prior year")))

	for i := 0; i <= ticks; i++ {
		value := f.max * float64(i) / float64(ticks)
		y := f.y(value)
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" aria-hidden="true"></line>`, f.pad, y, f.pad+f.plotW, y, grid)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, f.pad-6, y+4, axis, esc(tickLabel(value)))
	}
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="1"></line>`, f.pad, f.bottom(), f.pad+f.plotW, f.bottom(), axis)

	slot := f.plotW / float64(len(labels))
	bar := slot * 0.36
	for i, label := range labels {
		x := f.pad + float64(i)*slot
		writeBar(&b, f, x+slot*0.12, bar, current[i], colorCur, labelCur+" "+label)
		if len(prior) > 0 {
			writeBar(&b, f, x+slot*0.12+bar, bar, prior[i], colorPrior, labelPrior+" "+label)
		}
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, x+slot/2, f.bottom()+14, axis, esc(label))
	}

	legendY := math.Max(f.pad-10, 12)
	fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, f.pad, legendY-8, colorCur)
	fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10">%s</text>`, f.pad+14, legendY, axis, esc(labelCur))
	if len(prior) > 0 {
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, f.pad+96, legendY-8, colorPrior)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10">%s</text>`, f.pad+110, legendY, axis, esc(labelPrior))
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func writeBar(b *strings.Builder, f frame, x, width, value float64, color, label string) {
	if value < 0 {
		value = 0
	}
	h := value * f.scale
	fmt.Fprintf(b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s"></rect>`, x, f.y(value), width, h, color, esc(label))
}

func peak(series []float64) float64 {
	top := 0.0
	for _, v := range series {
		if v > top {
			top = v
		}
	}
	return top
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func esc(v string) string {
	return template.HTMLEscapeString(v)
}

func chartID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func tickLabel(v float64) string {
	switch abs := math.Abs(v); {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
