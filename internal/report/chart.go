package report

import (
	"bytes"
	"fmt"
	"html"
	"math"

	"github.com/newthinker/crossbt/internal/position"
	"github.com/newthinker/crossbt/internal/strategy"
)

const (
	chartWidth   = 1200
	chartHeight  = 500
	chartPadding = 50
	maxLinePts   = 2000
)

var lineColors = []string{"#f39c12", "#8e44ad", "#16a085", "#c0392b"}

// RenderChart draws close and indicator lines with entry (^) and exit (v)
// markers. Lines are decimated to a bounded point count; markers are not.
func RenderChart(f *strategy.Frame, title string) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		chartWidth, chartHeight, chartWidth, chartHeight)
	buf.WriteString(`<rect width="100%" height="100%" fill="white"/>` + "\n")
	fmt.Fprintf(&buf, `<text x="%d" y="25" font-family="Arial" font-size="16" font-weight="bold">%s</text>`+"\n",
		chartPadding, html.EscapeString(title))

	n := f.Len()
	lo, hi := priceRange(f)
	if n == 0 || math.IsInf(lo, 0) {
		buf.WriteString(`<text x="50%" y="50%" text-anchor="middle" font-family="Arial">no data</text>` + "\n")
		buf.WriteString("</svg>\n")
		return buf.Bytes()
	}
	if hi == lo {
		lo, hi = lo-1, hi+1
	}

	x := func(i int) float64 {
		if n == 1 {
			return chartPadding
		}
		return chartPadding + float64(i)*float64(chartWidth-2*chartPadding)/float64(n-1)
	}
	y := func(v float64) float64 {
		return chartHeight - chartPadding - (v-lo)/(hi-lo)*float64(chartHeight-2*chartPadding)
	}

	// Axes
	fmt.Fprintf(&buf, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`+"\n",
		chartPadding, chartHeight-chartPadding, chartWidth-chartPadding, chartHeight-chartPadding)
	fmt.Fprintf(&buf, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`+"\n",
		chartPadding, chartPadding, chartPadding, chartHeight-chartPadding)
	fmt.Fprintf(&buf, `<text x="5" y="%d" font-family="Arial" font-size="10">%.6g</text>`+"\n", chartPadding, hi)
	fmt.Fprintf(&buf, `<text x="5" y="%d" font-family="Arial" font-size="10">%.6g</text>`+"\n", chartHeight-chartPadding, lo)

	writeLine(&buf, f.Close, "#3498db", x, y)
	for i, name := range f.IndicatorNames() {
		writeLine(&buf, f.Indicators[name], lineColors[i%len(lineColors)], x, y)
	}

	for i, p := range f.Position {
		if i >= n {
			break
		}
		px, py := x(i), y(f.Close[i])
		switch p {
		case position.Entry:
			fmt.Fprintf(&buf, `<path class="entry" d="M%.1f %.1fl-5 9h10z" fill="#27ae60"/>`+"\n", px, py+4)
		case position.Exit:
			fmt.Fprintf(&buf, `<path class="exit" d="M%.1f %.1fl-5 -9h10z" fill="#e74c3c"/>`+"\n", px, py-4)
		}
	}

	// Legend
	legend := append([]string{"close"}, f.IndicatorNames()...)
	for i, name := range legend {
		color := "#3498db"
		if i > 0 {
			color = lineColors[(i-1)%len(lineColors)]
		}
		lx := chartWidth - chartPadding - 150
		ly := chartPadding + 15*i
		fmt.Fprintf(&buf, `<rect x="%d" y="%d" width="10" height="3" fill="%s"/>`+"\n", lx, ly-3, color)
		fmt.Fprintf(&buf, `<text x="%d" y="%d" font-family="Arial" font-size="10">%s</text>`+"\n",
			lx+15, ly, html.EscapeString(name))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// writeLine emits one polyline per run of finite values.
func writeLine(buf *bytes.Buffer, values []float64, color string, x func(int) float64, y func(float64) float64) {
	step := 1
	if len(values) > maxLinePts {
		step = (len(values) + maxLinePts - 1) / maxLinePts
	}

	var pts bytes.Buffer
	flush := func() {
		if pts.Len() > 0 {
			fmt.Fprintf(buf, `<polyline points="%s" fill="none" stroke="%s" stroke-width="1"/>`+"\n", pts.String(), color)
			pts.Reset()
		}
	}
	for i := 0; i < len(values); i += step {
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			flush()
			continue
		}
		if pts.Len() > 0 {
			pts.WriteByte(' ')
		}
		fmt.Fprintf(&pts, "%.1f,%.1f", x(i), y(v))
	}
	flush()
}

func priceRange(f *strategy.Frame) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	scan := func(values []float64) {
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	scan(f.Close)
	for _, name := range f.IndicatorNames() {
		scan(f.Indicators[name])
	}
	return lo, hi
}
