// Package plot renders one line chart per numeric column of a logged table.
//
// Columns are split into one series per value of a flag column (for example
// "train" and "val"), except for columns in the ungrouped set, which are
// drawn as a single series of their "train" rows. Every chart is written in
// the configured primary format and always as SVG.
//
// A failure on one column is recorded in that column's report and never
// stops the pass.
package plot

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/metrics"
	"github.com/ajitpratap0/dflog/pkg/table"
)

// Supported image extensions.
const (
	ExtPNG = ".png"
	ExtSVG = ".svg"
)

// Flag values with special meaning.
const (
	FlagTrain = "train"
	FlagVal   = "val"
)

// DefaultFlagColumn is the flag column used when Params leaves it empty.
const DefaultFlagColumn = "flag"

// DefaultUngrouped are the columns drawn as a single series by default.
var DefaultUngrouped = []string{"lr", "epoch"}

// Status is the outcome of plotting one column.
type Status string

const (
	StatusPlotted Status = "plotted"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Stats holds min/max of a column over the "val" rows.
type Stats struct {
	Min float64
	Max float64
}

// ColumnReport describes what happened to one column.
type ColumnReport struct {
	Column string
	Status Status
	Err    error
	Files  []string
	Val    *Stats
}

// Params controls a plotting pass.
type Params struct {
	FlagColumn string

	// Epoch markers are drawn only when all three are non-zero.
	BatchesPerEpoch int
	Epoch           int
	LogInterval     int
}

// Plotter writes charts into a directory.
type Plotter struct {
	dir       string
	style     Style
	ungrouped map[string]bool
	ext       string
	log       *zap.Logger
	stats     io.Writer
	metrics   *metrics.Collector
}

// Option configures a Plotter.
type Option func(*Plotter)

// WithUngrouped replaces the set of columns drawn as a single series.
func WithUngrouped(columns ...string) Option {
	return func(p *Plotter) {
		p.ungrouped = make(map[string]bool, len(columns))
		for _, c := range columns {
			p.ungrouped[c] = true
		}
	}
}

// WithExtension sets the primary image extension (".png" or ".svg").
func WithExtension(ext string) Option {
	return func(p *Plotter) { p.ext = ext }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Plotter) { p.log = log }
}

// WithStatsWriter sets where val statistics lines are printed. Defaults to stdout.
func WithStatsWriter(w io.Writer) Option {
	return func(p *Plotter) { p.stats = w }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Plotter) { p.metrics = c }
}

// New creates a Plotter writing into dir with the given style.
func New(dir string, style Style, opts ...Option) (*Plotter, error) {
	p := &Plotter{
		dir:   dir,
		style: style,
		ext:   ExtPNG,
		log:   zap.NewNop(),
		stats: os.Stdout,
	}
	WithUngrouped(DefaultUngrouped...)(p)
	for _, opt := range opts {
		opt(p)
	}

	p.ext = normalizeExt(p.ext)
	if p.ext != ExtPNG && p.ext != ExtSVG {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported figure extension %q", p.ext).
			WithDetail("supported", []string{ExtPNG, ExtSVG})
	}
	if p.style.LineWidth <= 0 {
		p.style.LineWidth = DefaultLineWidth
	}
	if p.style.FontSize <= 0 {
		p.style.FontSize = DefaultFontSize
	}
	return p, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Style returns the plotter's style.
func (p *Plotter) Style() Style { return p.style }

// SanitizeName replaces path separators in a column name.
func SanitizeName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}

// PlotColumns plots every numeric column of t and returns one report per
// column in table order.
func (p *Plotter) PlotColumns(t *table.Table, params Params) []ColumnReport {
	flag := params.FlagColumn
	if flag == "" {
		flag = DefaultFlagColumn
	}
	hasFlag := t.Has(flag)
	if !hasFlag {
		p.log.Warn("flag column is not one of the logged columns, plotting without grouping",
			zap.String("flag_column", flag))
	}

	var valRows []int
	if hasFlag {
		valRows = t.Filter(flag, FlagVal)
	}

	columns := t.Columns()
	reports := make([]ColumnReport, 0, len(columns))
	for _, col := range columns {
		report := p.plotColumn(t, col, flag, hasFlag, valRows, params)
		p.metrics.ColumnPlotted(string(report.Status))
		reports = append(reports, report)
	}
	return reports
}

func (p *Plotter) plotColumn(t *table.Table, col, flag string, hasFlag bool, valRows []int, params Params) ColumnReport {
	report := ColumnReport{Column: col}

	vals, numeric := t.Float64s(col)
	if !numeric {
		p.log.Info("skipping plotting non-numeric column", zap.String("column", col))
		report.Status = StatusSkipped
		return report
	}

	if hasFlag {
		if min, max, ok := table.MinMax(vals, valRows); ok {
			report.Val = &Stats{Min: min, Max: max}
			if p.stats != nil {
				fmt.Fprintf(p.stats, "Column (%s) statistics: %s -- %s\n", col, formatStat(min), formatStat(max))
			}
		}
	}

	lines := p.lines(t, col, vals, flag, hasFlag)
	if countPoints(lines) == 0 {
		p.log.Info("skipping plotting column without finite values in its rows",
			zap.String("column", col))
		report.Status = StatusSkipped
		return report
	}

	files, err := p.render(col, lines, params)
	if err != nil {
		p.log.Warn("column produced an error during plotting",
			zap.String("column", col), zap.Error(err))
		report.Status = StatusFailed
		report.Err = err
	} else {
		report.Status = StatusPlotted
		report.Files = files
	}

	return report
}

func formatStat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

type line struct {
	name string
	xs   []float64
	ys   []float64
}

func countPoints(lines []line) int {
	n := 0
	for _, l := range lines {
		n += len(l.xs)
	}
	return n
}

func (p *Plotter) render(col string, lines []line, params Params) ([]string, error) {
	graph, err := p.buildChart(col, lines, params)
	if err != nil {
		return nil, err
	}

	base := filepath.Join(p.dir, SanitizeName(col))
	exts := []string{p.ext}
	if p.ext != ExtSVG {
		exts = append(exts, ExtSVG)
	}

	files := make([]string, 0, len(exts))
	for _, ext := range exts {
		path := base + ext
		if err := save(graph, ext, path); err != nil {
			return files, errors.Wrap(err, errors.ErrorTypePlot, "failed to save chart").
				WithDetail("column", col).
				WithDetail("path", path)
		}
		files = append(files, path)
	}
	return files, nil
}

// lines splits a column into series: one per flag value, or a single series
// of "train" rows (all rows without a flag column) for ungrouped columns.
func (p *Plotter) lines(t *table.Table, col string, vals []float64, flag string, hasFlag bool) []line {
	if hasFlag && !p.ungrouped[col] {
		groups := t.Groups(flag)
		lines := make([]line, 0, len(groups))
		for _, g := range groups {
			lines = append(lines, collect(g.Value, vals, g.Rows))
		}
		return lines
	}

	var rows []int
	if hasFlag {
		rows = t.Filter(flag, FlagTrain)
	} else {
		rows = make([]int, len(vals))
		for i := range rows {
			rows[i] = i
		}
	}
	return []line{collect(col, vals, rows)}
}

// collect picks the finite values at rows; x is the row index in the file.
func collect(name string, vals []float64, rows []int) line {
	l := line{name: name}
	for _, r := range rows {
		if math.IsNaN(vals[r]) || math.IsInf(vals[r], 0) {
			continue
		}
		l.xs = append(l.xs, float64(r))
		l.ys = append(l.ys, vals[r])
	}
	return l
}

func (p *Plotter) buildChart(col string, lines []line, params Params) (*chart.Chart, error) {
	points := 0
	xr, yr := newSpan(), newSpan()
	series := make([]chart.Series, 0, len(lines))
	for i, l := range lines {
		if len(l.xs) == 0 {
			continue
		}
		points += len(l.xs)
		xr.add(l.xs...)
		yr.add(l.ys...)
		series = append(series, chart.ContinuousSeries{
			Name:    l.name,
			XValues: l.xs,
			YValues: l.ys,
			Style: chart.Style{
				StrokeColor: p.style.Palette.SeriesColor(i),
				StrokeWidth: p.style.LineWidth,
			},
		})
	}
	if points == 0 {
		return nil, errors.New(errors.ErrorTypePlot, "no values to plot").
			WithDetail("column", col)
	}

	width, height := p.style.pixels()
	textColor := p.style.Palette.Text
	axisStyle := chart.Style{FontSize: p.style.FontSize * 0.75, FontColor: textColor, StrokeColor: textColor}

	graph := &chart.Chart{
		Title:      col,
		TitleStyle: chart.Style{FontSize: p.style.FontSize, FontColor: textColor},
		Width:      width,
		Height:     height,
		DPI:        p.style.DPI,
		Background: chart.Style{
			FillColor: p.style.Palette.Background,
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: p.style.Palette.Canvas},
		XAxis:  chart.XAxis{Style: axisStyle, Range: xr.flatRange()},
		YAxis:  chart.YAxis{Style: axisStyle, Range: yr.flatRange()},
		Series: series,
	}

	if params.BatchesPerEpoch != 0 && params.Epoch != 0 && params.LogInterval != 0 {
		markers, err := epochMarkers(params, xr.max)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypePlot, "cannot draw epoch markers").
				WithDetail("column", col)
		}
		graph.XAxis.GridLines = markers
		graph.XAxis.GridMajorStyle = markerStyle
	}

	graph.Elements = []chart.Renderable{
		chart.Legend(graph, chart.Style{FontSize: p.style.FontSize * 0.6, FontColor: textColor}),
	}
	return graph, nil
}

type span struct{ min, max float64 }

func newSpan() span { return span{min: math.Inf(1), max: math.Inf(-1)} }

func (s *span) add(vs ...float64) {
	for _, v := range vs {
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}
}

// flatRange returns a padded range when all values are equal, since the
// renderer refuses a zero-width axis. Otherwise the range is automatic.
func (s span) flatRange() chart.Range {
	if s.min != s.max {
		return nil
	}
	pad := math.Max(math.Abs(s.min)*0.05, 0.5)
	return &chart.ContinuousRange{Min: s.min - pad, Max: s.max + pad}
}

var markerStyle = chart.Style{
	StrokeColor:     drawing.ColorFromHex("808080"),
	StrokeWidth:     1,
	StrokeDashArray: []float64{5, 5},
}

// EpochMarkerPositions returns x positions 0, s, 2s, ... up to floor(xmax)
// where s = BatchesPerEpoch / LogInterval.
func EpochMarkerPositions(params Params, xmax float64) ([]float64, error) {
	if params.LogInterval == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "log interval must be non-zero")
	}
	stride := params.BatchesPerEpoch / params.LogInterval
	if stride <= 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"epoch marker stride %d/%d must be positive", params.BatchesPerEpoch, params.LogInterval)
	}
	limit := int(math.Floor(xmax))
	var xs []float64
	for x := 0; x <= limit; x += stride {
		xs = append(xs, float64(x))
	}
	return xs, nil
}

func epochMarkers(params Params, xmax float64) ([]chart.GridLine, error) {
	xs, err := EpochMarkerPositions(params, xmax)
	if err != nil {
		return nil, err
	}
	lines := make([]chart.GridLine, len(xs))
	for i, x := range xs {
		lines[i] = chart.GridLine{Value: x, Style: markerStyle}
	}
	return lines, nil
}

func save(graph *chart.Chart, ext, path string) error {
	provider := chart.PNG
	if ext == ExtSVG {
		provider = chart.SVG
	}

	var buf bytes.Buffer
	if err := graph.Render(provider, &buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644) //nolint:gosec // charts are meant to be shared
}
