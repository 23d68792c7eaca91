/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package render

import (
    "bytes"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "time"

    chart "github.com/wcharczuk/go-chart/v2"
    "github.com/wcharczuk/go-chart/v2/drawing"

    "github.com/HamedShams/issue-pulse/internal/config"
    "github.com/rs/zerolog"
)

var (
    ColorSkyBlue = drawing.Color{R: 135, G: 206, B: 235, A: 255}
    ColorSalmon  = drawing.Color{R: 250, G: 128, B: 114, A: 255}
    ColorBlue    = drawing.Color{R: 0, G: 116, B: 217, A: 255}
    ColorRed     = drawing.Color{R: 217, G: 30, B: 24, A: 255}
)

// Pair is one (category-or-month, value) point of a chart request.
type Pair struct {
    Key   string
    Value float64
}

// Series is a named, colored sequence of pairs.
type Series struct {
    Label string
    Color drawing.Color
    Pairs []Pair
}

// Request is a single chart to draw. Bar requests use exactly the first
// series as categorical bars; otherwise every series is drawn as a monthly
// time series (keys "2006-01").
type Request struct {
    Slug   string
    Title  string
    XLabel string
    YLabel string
    Bar    bool
    Series []Series
}

func (r Request) empty() bool {
    for _, s := range r.Series {
        if len(s.Pairs) > 0 { return false }
    }
    return true
}

// PNG renders chart requests to PNG files under a fixed directory.
type PNG struct {
    dir string
    log zerolog.Logger
}

func NewPNG(cfg config.Config, log zerolog.Logger) (*PNG, error) {
    if err := os.MkdirAll(cfg.ChartsDir, 0o755); err != nil { return nil, fmt.Errorf("render: create charts dir: %w", err) }
    return &PNG{dir: cfg.ChartsDir, log: log}, nil
}

// Render draws the request and returns the written file path. An empty
// request is skipped silently and yields an empty path with no error.
func (p *PNG) Render(req Request) (string, error) {
    if req.empty() {
        p.log.Info().Str("chart", req.Slug).Msg("nothing to plot, skipping chart")
        return "", nil
    }
    var buf bytes.Buffer
    if err := draw(req, &buf); err != nil { return "", fmt.Errorf("render %s: %w", req.Slug, err) }
    path := filepath.Join(p.dir, req.Slug+".png")
    if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { return "", err }
    p.log.Info().Str("chart", req.Slug).Str("path", path).Msg("chart rendered")
    return path, nil
}

func draw(req Request, w io.Writer) error {
    if req.Bar { return drawBars(req, w) }
    return drawTimeSeries(req, w)
}

func drawBars(req Request, w io.Writer) error {
    s := req.Series[0]
    bars := make([]chart.Value, 0, len(s.Pairs))
    for _, pr := range s.Pairs {
        bars = append(bars, chart.Value{Label: pr.Key, Value: pr.Value, Style: chart.Style{FillColor: s.Color, StrokeColor: s.Color}})
    }
    graph := chart.BarChart{
        Title:    req.Title,
        Width:    1000,
        Height:   600,
        BarWidth: 40,
        YAxis:    chart.YAxis{Name: req.YLabel},
        Bars:     bars,
    }
    return graph.Render(chart.PNG, w)
}

func drawTimeSeries(req Request, w io.Writer) error {
    var series []chart.Series
    for _, s := range req.Series {
        if len(s.Pairs) == 0 { continue }
        xs := make([]time.Time, 0, len(s.Pairs))
        ys := make([]float64, 0, len(s.Pairs))
        for _, pr := range s.Pairs {
            t, err := time.Parse("2006-01", pr.Key)
            if err != nil { return fmt.Errorf("bad month key %q: %w", pr.Key, err) }
            xs = append(xs, t)
            ys = append(ys, pr.Value)
        }
        // go-chart needs at least two X values per series
        if len(xs) == 1 {
            xs = append(xs, xs[0].AddDate(0, 1, 0))
            ys = append(ys, ys[0])
        }
        style := chart.Style{StrokeColor: s.Color, StrokeWidth: 2, DotColor: s.Color, DotWidth: 4}
        series = append(series, chart.TimeSeries{Name: s.Label, XValues: xs, YValues: ys, Style: style})
    }
    graph := chart.Chart{
        Title:  req.Title,
        Width:  1200,
        Height: 600,
        XAxis: chart.XAxis{
            Name:           req.XLabel,
            ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01"),
        },
        YAxis:  chart.YAxis{Name: req.YLabel},
        Series: series,
    }
    graph.Elements = []chart.Renderable{chart.Legend(&graph)}
    return graph.Render(chart.PNG, w)
}

// Slugify turns a chart title into a stable file name.
func Slugify(title string) string {
    s := strings.ToLower(strings.TrimSpace(title))
    s = strings.Map(func(r rune) rune {
        switch {
        case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
            return r
        default:
            return '-'
        }
    }, s)
    for strings.Contains(s, "--") { s = strings.ReplaceAll(s, "--", "-") }
    return strings.Trim(s, "-")
}
