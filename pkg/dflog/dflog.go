// Package dflog logs training metrics as delimited rows and turns the log into
// per-column charts.
//
// A DFLogger owns a timestamped run directory. It writes a header line naming
// the columns, then one line per completed row. The log can be read back as a
// table at any time, plotted column by column, and accompanied by prediction
// exports and copies of the configuration files that produced the run.
//
//	lg, err := dflog.New(dflog.ColumnString("epoch|loss|flag"), dflog.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer lg.Close()
//
//	_ = lg.LogRow([]any{1, 0.42, "train"}, false)
//	reports, err := lg.PlotColumns(plot.Params{})
package dflog

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dflog/pkg/compression"
	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/export"
	"github.com/ajitpratap0/dflog/pkg/logger"
	"github.com/ajitpratap0/dflog/pkg/metrics"
	"github.com/ajitpratap0/dflog/pkg/plot"
	"github.com/ajitpratap0/dflog/pkg/rowlog"
	"github.com/ajitpratap0/dflog/pkg/run"
	"github.com/ajitpratap0/dflog/pkg/table"
)

// Columns is the schema of a log: either a separator-joined string or an
// explicit list of names.
type Columns interface {
	names(sep string) []string
}

// ColumnString is a schema written as names joined by the separator, e.g.
// "epoch|loss|flag".
type ColumnString string

func (c ColumnString) names(sep string) []string { return rowlog.ParseColumns(string(c), sep) }

// ColumnList is a schema given as individual names.
type ColumnList []string

func (c ColumnList) names(string) []string { return append([]string(nil), c...) }

type settings struct {
	log      *zap.Logger
	reg      prometheus.Registerer
	now      func() time.Time
	echo     io.Writer
	statsOut io.Writer
}

// Option customizes the runtime environment of a DFLogger.
type Option func(*settings)

// WithLogger sets the diagnostic logger. The default is the global logger
// named after Options.LoggerName and tagged with the run directory.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithRegisterer registers the logger's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.reg = reg }
}

// WithClock sets the time source used to name the run directory.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithEcho sets where echoed rows are printed.
func WithEcho(w io.Writer) Option {
	return func(s *settings) { s.echo = w }
}

// WithStatsWriter sets where validation statistics are printed while plotting.
func WithStatsWriter(w io.Writer) Option {
	return func(s *settings) { s.statsOut = w }
}

func newSettings(opts []Option) *settings {
	s := &settings{
		now:      time.Now,
		echo:     os.Stdout,
		statsOut: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// logger returns the diagnostic logger for the named run. runDir is attached
// when known.
func (s *settings) logger(name, runDir string) *zap.Logger {
	if s.log != nil {
		if runDir == "" {
			return s.log
		}
		return s.log.With(zap.String("run_dir", runDir))
	}
	ctx := context.WithValue(context.Background(), logger.LoggerNameKey, name)
	if runDir != "" {
		ctx = context.WithValue(ctx, logger.RunDirKey, runDir)
	}
	return logger.WithContext(ctx)
}

// DFLogger writes one run's metric log and derived artifacts.
type DFLogger struct {
	opts    Options
	columns []string
	dir     *run.Dir
	logPath string
	style   plot.Style

	file   *os.File
	rows   *rowlog.Logger
	closed bool

	set     *settings
	log     *zap.Logger
	metrics *metrics.Collector
}

// New creates the run directory and the log file and writes the header.
// Configuration files are copied into the run directory when
// opts.CopyConfigFiles is set.
func New(columns Columns, opts Options, options ...Option) (*DFLogger, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if columns == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "columns are required")
	}
	names := columns.names(opts.Separator)
	if len(names) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "at least one column is required")
	}

	set := newSettings(options)
	collector, err := metrics.NewCollector(opts.LoggerName, set.reg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to register metrics")
	}

	started := set.now()
	dir, err := run.Create(opts.BaseDir, started, opts.LogDirSuffix, set.logger(opts.LoggerName, ""))
	if err != nil {
		return nil, err
	}

	d := &DFLogger{
		opts:    opts,
		dir:     dir,
		logPath: dir.Path(opts.LogFilename),
		set:     set,
		log:     set.logger(opts.LoggerName, dir.String()),
		metrics: collector,
	}

	d.file, err = os.OpenFile(d.logPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec
	if err != nil {
		d.abandon()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create log file").
			WithDetail("path", d.logPath)
	}

	var copied []string
	if opts.CopyConfigFiles {
		if copied, err = d.CopyConfigFiles(); err != nil {
			d.abandon()
			return nil, err
		}
	}

	var found bool
	d.style, found = opts.style()
	if !found {
		d.log.Warn("unknown plot style, using fallback",
			zap.String("requested", opts.PlotStyle),
			zap.String("style", d.style.Name))
	}

	d.rows, err = rowlog.New(d.file, names,
		rowlog.WithSeparator(opts.Separator),
		rowlog.WithEcho(set.echo),
		rowlog.WithLogger(d.log),
		rowlog.WithMetrics(collector))
	if err != nil {
		d.abandon()
		return nil, err
	}
	d.columns = d.rows.Columns()

	if err := d.writeManifest(started, copied); err != nil {
		d.abandon()
		return nil, err
	}

	d.log.Info("logging metrics",
		zap.String("log_file", d.logPath),
		zap.Strings("columns", d.columns))
	return d, nil
}

// abandon removes a run directory that New created but could not finish.
func (d *DFLogger) abandon() {
	if d.file != nil {
		_ = d.file.Close()
		d.file = nil
	}
	if err := os.RemoveAll(d.dir.String()); err != nil {
		d.log.Warn("failed to remove incomplete run directory", zap.Error(err))
	}
}

func (d *DFLogger) writeManifest(started time.Time, copied []string) error {
	optsJSON, err := json.Marshal(d.opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode options")
	}
	return d.dir.WriteManifest(run.Manifest{
		Name:      d.opts.LoggerName,
		Columns:   d.columns,
		Separator: d.opts.Separator,
		LogFile:   d.opts.LogFilename,
		StartedAt: started,
		Copied:    copied,
		Options:   optsJSON,
	})
}

// Open attaches to an existing run directory for reading and plotting. When
// the directory has a run manifest, its separator and log file name take
// precedence over opts.
func Open(runDir string, opts Options, options ...Option) (*DFLogger, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	set := newSettings(options)
	log := set.logger(opts.LoggerName, runDir)
	dir := run.Attach(runDir, log)

	manifest, err := dir.ReadManifest()
	switch {
	case err == nil:
		if manifest.Separator != "" {
			opts.Separator = manifest.Separator
		}
		if manifest.LogFile != "" {
			opts.LogFilename = manifest.LogFile
		}
	case errors.Is(err, os.ErrNotExist):
		log.Debug("run has no manifest, using options")
	default:
		return nil, err
	}

	collector, err := metrics.NewCollector(opts.LoggerName, set.reg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to register metrics")
	}

	d := &DFLogger{
		opts:    opts,
		dir:     dir,
		logPath: dir.Path(opts.LogFilename),
		set:     set,
		log:     log,
		metrics: collector,
	}
	if _, err := os.Stat(d.logPath); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "run has no log file").
			WithDetail("path", d.logPath)
	}
	if manifest != nil {
		d.columns = manifest.Columns
	}

	var found bool
	d.style, found = opts.style()
	if !found {
		d.log.Warn("unknown plot style, using fallback",
			zap.String("requested", opts.PlotStyle),
			zap.String("style", d.style.Name))
	}
	return d, nil
}

// LogValue appends one value to the current row and writes the row once it
// is complete.
func (d *DFLogger) LogValue(v any) error {
	if d.rows == nil {
		return errReadOnly()
	}
	return d.rows.LogValue(v)
}

// LogRow writes a complete row. When echo is set the row is also printed.
func (d *DFLogger) LogRow(values []any, echo bool) error {
	if d.rows == nil {
		return errReadOnly()
	}
	return d.rows.LogRow(values, echo)
}

func errReadOnly() error {
	return errors.New(errors.ErrorTypeFile, "run was opened read-only")
}

// ReadLog reads the log file into a table.
func (d *DFLogger) ReadLog() (*table.Table, error) {
	return table.ReadFile(d.logPath, d.opts.Separator)
}

// PlotColumns reads the log and renders one chart per numeric column into
// the run directory. Per-column failures are reported, not returned.
func (d *DFLogger) PlotColumns(params plot.Params) ([]plot.ColumnReport, error) {
	t, err := d.ReadLog()
	if err != nil {
		return nil, err
	}

	p, err := plot.New(d.dir.String(), d.style,
		plot.WithExtension(d.opts.FigureExt),
		plot.WithUngrouped(d.opts.PlotUngrouped...),
		plot.WithLogger(d.log),
		plot.WithStatsWriter(d.set.statsOut),
		plot.WithMetrics(d.metrics))
	if err != nil {
		return nil, err
	}
	return p.PlotColumns(t, params), nil
}

// SavePredictions writes the predictions table of the best-loss (f1 false)
// or best-F1 (f1 true) checkpoint into the run directory.
func (d *DFLogger) SavePredictions(t *table.Table, f1 bool) ([]string, error) {
	format, err := export.ParseFormat(d.opts.PredictionFormat)
	if err != nil {
		return nil, err
	}
	alg, err := compression.Parse(d.opts.PredictionCompression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid prediction compression")
	}

	paths, err := export.SavePredictions(d.dir.String(), t, f1, export.Options{Format: format, Compression: alg})
	if err != nil {
		return paths, err
	}
	d.log.Info("saved predictions", zap.Strings("files", paths))
	return paths, nil
}

// CopyConfigFiles copies the configured files into the run directory.
func (d *DFLogger) CopyConfigFiles() ([]string, error) {
	return d.dir.CopyMatching(d.opts.CopySourceDir, d.opts.CopyPattern, d.opts.FilesToCopyStartWith)
}

// Dir returns the run directory.
func (d *DFLogger) Dir() string { return d.dir.String() }

// LogPath returns the path of the log file.
func (d *DFLogger) LogPath() string { return d.logPath }

// Columns returns the logged column names. It is empty for runs opened
// without a manifest.
func (d *DFLogger) Columns() []string { return append([]string(nil), d.columns...) }

// Style returns the resolved plot style.
func (d *DFLogger) Style() plot.Style { return d.style }

// Options returns the effective options.
func (d *DFLogger) Options() Options { return d.opts }

// Metrics returns the logger's metrics collector.
func (d *DFLogger) Metrics() *metrics.Collector { return d.metrics }

// Close closes the log file. A partially filled row is discarded. Writes
// after Close fail with a file error.
func (d *DFLogger) Close() error {
	if d.file == nil || d.closed {
		return nil
	}
	d.closed = true
	if n := d.rows.Pending(); n > 0 {
		d.log.Warn("closing with a partial row", zap.Int("pending_values", n))
	}
	err := d.file.Close()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close log file")
	}
	d.log.Info("closed log file",
		zap.String("logger", d.metrics.Name()),
		zap.Duration("elapsed", time.Since(d.metrics.StartTime())))
	return nil
}
