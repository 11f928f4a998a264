package dflog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/logger"
	"github.com/ajitpratap0/dflog/pkg/plot"
	"github.com/ajitpratap0/dflog/pkg/rowlog"
	"github.com/ajitpratap0/dflog/pkg/run"
	"github.com/ajitpratap0/dflog/pkg/table"
	"github.com/ajitpratap0/dflog/pkg/testutil"
)

var started = time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)

type harness struct {
	opts  Options
	echo  bytes.Buffer
	stats bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	opts := DefaultOptions()
	opts.BaseDir = t.TempDir()
	opts.CopyConfigFiles = false
	opts.FigureSize = [2]float64{4, 3}
	return &harness{opts: opts}
}

func (h *harness) options(t *testing.T) []Option {
	return []Option{
		WithLogger(testutil.TestLogger(t)),
		WithClock(testutil.FixedClock(started)),
		WithEcho(&h.echo),
		WithStatsWriter(&h.stats),
	}
}

func (h *harness) newLogger(t *testing.T, columns Columns) *DFLogger {
	t.Helper()
	d, err := New(columns, h.opts, h.options(t)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestNewCreatesRunLayout(t *testing.T) {
	h := newHarness(t)
	h.opts.LogDirSuffix = "baseline"
	d := h.newLogger(t, ColumnString("epoch|loss|flag"))

	assert.Equal(t, filepath.Join(h.opts.BaseDir, "2024-03-01_14-05-09-baseline"), d.Dir())
	assert.Equal(t, filepath.Join(d.Dir(), "log.txt"), d.LogPath())
	assert.FileExists(t, filepath.Join(d.Dir(), run.ManifestFile))

	raw, err := os.ReadFile(d.LogPath())
	require.NoError(t, err)
	assert.Equal(t, "epoch|loss|flag\n", string(raw))

	m, err := run.Attach(d.Dir(), nil).ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"epoch", "loss", "flag"}, m.Columns)
	assert.Equal(t, "|", m.Separator)
	assert.Equal(t, "df_logger", m.Name)
}

func TestHeaderMatchesReadLogColumns(t *testing.T) {
	h := newHarness(t)
	d := h.newLogger(t, ColumnList{" epoch ", "loss", "acc", "flag"})

	tbl, err := d.ReadLog()
	require.NoError(t, err)
	assert.Equal(t, []string{"epoch", "loss", "acc", "flag"}, tbl.Columns())
	assert.Equal(t, d.Columns(), tbl.Columns())
	assert.Equal(t, 0, tbl.Len())
}

func TestLogRowThenReadLog(t *testing.T) {
	h := newHarness(t)
	d := h.newLogger(t, ColumnString("epoch|loss|flag"))

	require.NoError(t, d.LogRow([]any{1, 0.5, "train"}, false))
	require.NoError(t, d.LogRow([]any{1, 0.7, "val"}, false))

	tbl, err := d.ReadLog()
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"1", "0.5", "train"}, tbl.Row(0))
	assert.Equal(t, []string{"1", "0.7", "val"}, tbl.Row(1))

	require.NoError(t, d.LogRow([]any{2, 0.25, "train"}, false))
	tbl, err = d.ReadLog()
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len(), "each LogRow adds exactly one row")
}

func TestLogValueMatchesLogRow(t *testing.T) {
	h := newHarness(t)
	byValue := h.newLogger(t, ColumnString("a|b|c"))
	for _, v := range []any{1, 2.5, "x", 3, true, rowlog.Text("y")} {
		require.NoError(t, byValue.LogValue(v))
	}

	h2 := newHarness(t)
	byRow := h2.newLogger(t, ColumnString("a|b|c"))
	require.NoError(t, byRow.LogRow([]any{1, 2.5, "x"}, false))
	require.NoError(t, byRow.LogRow([]any{3, true, rowlog.Text("y")}, false))

	a, err := os.ReadFile(byValue.LogPath())
	require.NoError(t, err)
	b, err := os.ReadFile(byRow.LogPath())
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
	assert.Equal(t, "a|b|c\n1|2.5|x\n3|True|y\n", string(a))
}

func TestLogRowErrors(t *testing.T) {
	h := newHarness(t)
	d := h.newLogger(t, ColumnString("a|b"))

	err := d.LogRow([]any{1}, false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))

	require.NoError(t, d.LogValue(1))
	err = d.LogRow([]any{1, 2}, false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMisalignedWrite))

	require.NoError(t, d.LogValue(2))
	err = d.LogRow([]any{1, struct{}{}}, false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedValue))

	tbl, err := d.ReadLog()
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestLogRowEcho(t *testing.T) {
	h := newHarness(t)
	d := h.newLogger(t, ColumnString("epoch|loss"))

	require.NoError(t, d.LogRow([]any{1, 0.5}, true))
	require.NoError(t, d.LogRow([]any{2, 0.4}, false))
	assert.Equal(t, "1 | 0.5\n", h.echo.String())
}

func TestPlotColumns(t *testing.T) {
	h := newHarness(t)
	d := h.newLogger(t, ColumnString("epoch|loss|lr|flag"))
	rows := [][]any{
		{1, 0.9, 0.1, "train"},
		{1, 0.8, 0.1, "val"},
		{2, 0.5, 0.05, "train"},
		{2, 0.6, 0.05, "val"},
	}
	for _, r := range rows {
		require.NoError(t, d.LogRow(r, false))
	}

	reports, err := d.PlotColumns(plot.Params{})
	require.NoError(t, err)
	require.Len(t, reports, 4)

	status := make(map[string]plot.Status, len(reports))
	for _, r := range reports {
		status[r.Column] = r.Status
	}
	assert.Equal(t, plot.StatusSkipped, status["flag"])
	assert.Equal(t, plot.StatusPlotted, status["loss"])
	assert.Equal(t, plot.StatusPlotted, status["lr"])
	assert.FileExists(t, filepath.Join(d.Dir(), "loss.png"))
	assert.FileExists(t, filepath.Join(d.Dir(), "loss.svg"))
	assert.NoFileExists(t, filepath.Join(d.Dir(), "flag.png"))
	assert.Contains(t, h.stats.String(), "Column (loss) statistics: 0.6 -- 0.8")
}

func TestPlotColumnsBadLog(t *testing.T) {
	h := newHarness(t)
	d := h.newLogger(t, ColumnString("a|b"))
	require.NoError(t, d.LogRow([]any{"x|y", 1}, false))

	_, err := d.PlotColumns(plot.Params{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestUnknownStyleFallsBack(t *testing.T) {
	h := newHarness(t)
	h.opts.PlotStyle = "no-such-style"
	h.opts.PlotFontSize = 12
	d := h.newLogger(t, ColumnString("a"))

	assert.Equal(t, plot.AvailableStyles()[0], d.Style().Name)
	assert.Equal(t, 12.0, d.Style().FontSize)
	assert.Equal(t, [2]float64{4, 3}, d.Style().FigureSize)
}

func TestLoggersDoNotShareStyle(t *testing.T) {
	h := newHarness(t)
	h.opts.PlotStyle = "grayscale"
	a := h.newLogger(t, ColumnString("a"))

	h2 := newHarness(t)
	h2.opts.PlotFontSize = 30
	b := h2.newLogger(t, ColumnString("a"))

	assert.Equal(t, "grayscale", a.Style().Name)
	assert.Equal(t, float64(plot.DefaultFontSize), a.Style().FontSize)
	assert.Equal(t, "tableau-colorblind10", b.Style().Name)
	assert.Equal(t, 30.0, b.Style().FontSize)
}

func TestCopyConfigFilesOnNew(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFile(t, src, "1_train.yaml", "lr: 0.1")
	testutil.WriteFile(t, src, "readme.md", "skip")

	h := newHarness(t)
	h.opts.CopyConfigFiles = true
	h.opts.CopySourceDir = src
	d := h.newLogger(t, ColumnString("a"))

	assert.FileExists(t, filepath.Join(d.Dir(), "1_train.yaml"))
	assert.NoFileExists(t, filepath.Join(d.Dir(), "readme.md"))

	m, err := run.Attach(d.Dir(), nil).ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(d.Dir(), "1_train.yaml")}, m.Copied)
}

func TestSavePredictions(t *testing.T) {
	h := newHarness(t)
	h.opts.PredictionCompression = "zstd"
	d := h.newLogger(t, ColumnString("a"))

	preds := table.New([]string{"id", "score"})
	require.NoError(t, preds.AppendRow("1", "0.3"))

	paths, err := d.SavePredictions(preds, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(d.Dir(), "best_val_predictions_f1.csv.zst"),
		filepath.Join(d.Dir(), "best_val_predictions_f1.arrow"),
	}, paths)
}

func TestOpenExistingRun(t *testing.T) {
	h := newHarness(t)
	h.opts.Separator = ";"
	h.opts.LogFilename = "metrics.log"
	d := h.newLogger(t, ColumnString("epoch;loss;flag"))
	require.NoError(t, d.LogRow([]any{1, 0.5, "train"}, false))
	require.NoError(t, d.Close())

	opened, err := Open(d.Dir(), DefaultOptions(), h.options(t)...)
	require.NoError(t, err)
	assert.Equal(t, ";", opened.Options().Separator)
	assert.Equal(t, d.LogPath(), opened.LogPath())
	assert.Equal(t, []string{"epoch", "loss", "flag"}, opened.Columns())

	tbl, err := opened.ReadLog()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "0.5", "train"}, tbl.Row(0))

	err = opened.LogRow([]any{2, 0.4, "train"}, false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assert.NoError(t, opened.Close())
}

func TestOpenWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "log.txt", "a|b\n1|2\n")

	d, err := Open(dir, DefaultOptions(), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	tbl, err := d.ReadLog()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())

	_, err = Open(t.TempDir(), DefaultOptions(), WithLogger(testutil.TestLogger(t)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestLoggersStartedTogetherGetSeparateRuns(t *testing.T) {
	h := newHarness(t)
	a := h.newLogger(t, ColumnString("x|y"))
	b := h.newLogger(t, ColumnString("p|q|r"))
	require.NotEqual(t, a.Dir(), b.Dir())
	assert.Equal(t, a.Dir()+"-1", b.Dir())

	require.NoError(t, a.LogRow([]any{1, 2}, false))
	require.NoError(t, b.LogRow([]any{3, 4, 5}, false))
	require.NoError(t, a.LogRow([]any{6, 7}, false))

	ta, err := a.ReadLog()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ta.Columns())
	assert.Equal(t, 2, ta.Len())

	tb, err := b.ReadLog()
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5"}, tb.Row(0))
}

func TestNewRemovesRunDirOnFailure(t *testing.T) {
	h := newHarness(t)
	h.opts.CopyConfigFiles = true
	h.opts.CopySourceDir = t.TempDir()
	h.opts.CopyPattern = "["

	_, err := New(ColumnString("a|b"), h.opts, h.options(t)...)
	require.Error(t, err)

	entries, err := os.ReadDir(h.opts.BaseDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no half-created run is left behind")
}

func TestDefaultLoggerIsTaggedWithRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "diag.log")
	require.NoError(t, logger.Init(logger.Config{Level: "debug", Encoding: "json", OutputPaths: []string{out}}))
	t.Cleanup(func() { _ = logger.Init(logger.DefaultConfig()) })

	h := newHarness(t)
	d, err := New(ColumnString("a"), h.opts, WithClock(testutil.FixedClock(started)))
	require.NoError(t, err)
	require.NoError(t, d.Close())
	_ = logger.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"df_logger"`)
	assert.Contains(t, string(data), `"run_dir":"`+d.Dir()+`"`)
}

func TestCloseReportsCollector(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newHarness(t)
	d, err := New(ColumnString("a"), h.opts, WithLogger(zap.New(core)), WithClock(testutil.FixedClock(started)))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	closed := logs.FilterMessage("closed log file").All()
	require.Len(t, closed, 1)
	fields := closed[0].ContextMap()
	assert.Equal(t, "df_logger", fields["logger"])
	assert.Equal(t, d.Dir(), fields["run_dir"])
	assert.Contains(t, fields, "elapsed")
}

func TestWriteAfterClose(t *testing.T) {
	h := newHarness(t)
	d := h.newLogger(t, ColumnString("a"))
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	err := d.LogRow([]any{1}, false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestMetricsRegistered(t *testing.T) {
	h := newHarness(t)
	reg := prometheus.NewRegistry()
	d, err := New(ColumnString("a|b"), h.opts, append(h.options(t), WithRegisterer(reg))...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.LogRow([]any{1, 2}, false))
	_ = d.LogRow([]any{1}, false)

	assert.Equal(t, 1.0, promtest.ToFloat64(d.Metrics().RowsFlushed()))
	assert.Equal(t, 2.0, promtest.ToFloat64(d.Metrics().ValuesLogged()))
	count, err := promtest.GatherAndCount(reg, "dflog_rows_rejected_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	h := newHarness(t)
	h.opts.Separator = "||"
	_, err := New(ColumnString("a"), h.opts, h.options(t)...)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	entries, err := os.ReadDir(h.opts.BaseDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no run directory on invalid options")
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	require.NoError(t, o.Validate())
	assert.Equal(t, "df_logger", o.LoggerName)
	assert.Equal(t, "|", o.Separator)
	assert.Equal(t, "log.txt", o.LogFilename)
	assert.Equal(t, "./logs", o.BaseDir)
	assert.Equal(t, 3.0, o.LineWidth)
	assert.Equal(t, 18.0, o.PlotFontSize)
	assert.Equal(t, "tableau-colorblind10", o.PlotStyle)
	assert.Equal(t, [2]float64{10, 8}, o.FigureSize)
	assert.True(t, o.CopyConfigFiles)
	assert.Equal(t, []string{"1_", "2_"}, o.FilesToCopyStartWith)
	assert.Equal(t, []string{"lr", "epoch"}, o.PlotUngrouped)
	assert.Equal(t, ".png", o.FigureExt)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"empty separator", func(o *Options) { o.Separator = "" }},
		{"quote separator", func(o *Options) { o.Separator = `"` }},
		{"newline separator", func(o *Options) { o.Separator = "\n" }},
		{"log file path", func(o *Options) { o.LogFilename = "sub/log.txt" }},
		{"suffix path", func(o *Options) { o.LogDirSuffix = "a/b" }},
		{"zero line width", func(o *Options) { o.LineWidth = 0 }},
		{"zero font", func(o *Options) { o.PlotFontSize = 0 }},
		{"bad figure size", func(o *Options) { o.FigureSize = [2]float64{10, 0} }},
		{"pdf", func(o *Options) { o.FigureExt = ".pdf" }},
		{"pickle", func(o *Options) { o.PredictionFormat = "pkl" }},
		{"rar", func(o *Options) { o.PredictionCompression = "rar" }},
		{"no name", func(o *Options) { o.LoggerName = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			assert.True(t, errors.IsType(o.Validate(), errors.ErrorTypeConfig))
		})
	}

	o := DefaultOptions()
	o.Separator = "\t"
	o.FigureExt = "svg"
	assert.NoError(t, o.Validate())
}

func TestLoadOptions(t *testing.T) {
	doc := strings.Join([]string{
		"separator: ','",
		"plot_style: grayscale",
		"figure_size: [6, 4]",
		"files_to_copy_start_with: [cfg_]",
		"",
	}, "\n")
	path := testutil.WriteFile(t, t.TempDir(), "dflog.yaml", doc)

	o, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, ",", o.Separator)
	assert.Equal(t, "grayscale", o.PlotStyle)
	assert.Equal(t, [2]float64{6, 4}, o.FigureSize)
	assert.Equal(t, []string{"cfg_"}, o.FilesToCopyStartWith)
	assert.Equal(t, "log.txt", o.LogFilename, "defaults survive")

	require.NoError(t, os.WriteFile(path, []byte("line_width: -1\n"), 0o600))
	_, err = LoadOptions(path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
