// Package rowlog implements a column-buffered line logger.
//
// A Logger is created with a fixed, ordered set of column names. Values are
// appended one at a time (LogValue) or a full row at a time (LogRow); a line
// is written to the destination only once one value per column has been
// supplied, so the destination never sees a partial row.
//
//	l, err := rowlog.New(f, rowlog.ParseColumns("epoch|loss|flag", "|"))
//	if err != nil {
//	    return err
//	}
//	_ = l.LogRow([]any{1, 0.5, "train"}, false)
//
// The separator is not escaped. A value containing the separator produces a
// row that no longer lines up with the header when read back. In a
// single-column log an empty value would be an empty line, which readers
// skip, so it is rejected.
package rowlog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/metrics"
)

// DefaultSeparator is used when no separator option is given.
const DefaultSeparator = "|"

// Logger assembles scalar values into delimited rows.
type Logger struct {
	dst     io.Writer
	columns []string
	sep     string
	n       int

	line   strings.Builder
	cursor int

	echo    io.Writer
	log     *zap.Logger
	metrics *metrics.Collector
}

// Option configures a Logger.
type Option func(*Logger)

// WithSeparator sets the column separator.
func WithSeparator(sep string) Option {
	return func(l *Logger) { l.sep = sep }
}

// WithEcho sets where LogRow prints rows when asked to echo. Defaults to stdout.
func WithEcho(w io.Writer) Option {
	return func(l *Logger) { l.echo = w }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Logger) { l.log = log }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(l *Logger) { l.metrics = c }
}

// ParseColumns splits header on sep and trims each name.
func ParseColumns(header, sep string) []string {
	if sep == "" {
		sep = DefaultSeparator
	}
	parts := strings.Split(header, sep)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// New creates a Logger writing to dst and writes the header line immediately.
// Column names are trimmed; duplicates are allowed.
func New(dst io.Writer, columns []string, opts ...Option) (*Logger, error) {
	l := &Logger{
		dst:  dst,
		sep:  DefaultSeparator,
		echo: os.Stdout,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if dst == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "destination writer is required")
	}
	if l.sep == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "separator cannot be empty")
	}
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "at least one column is required")
	}

	l.columns = make([]string, len(columns))
	for i, c := range columns {
		l.columns[i] = strings.TrimSpace(c)
	}
	l.n = len(l.columns)

	if err := l.writeLine(strings.Join(l.columns, l.sep)); err != nil {
		return nil, err
	}

	l.log.Debug("row logger initialized",
		zap.Strings("columns", l.columns),
		zap.String("separator", l.sep))

	return l, nil
}

// Columns returns a copy of the column names.
func (l *Logger) Columns() []string {
	out := make([]string, len(l.columns))
	copy(out, l.columns)
	return out
}

// Separator returns the column separator.
func (l *Logger) Separator() string { return l.sep }

// Arity returns the number of values per row.
func (l *Logger) Arity() int { return l.n }

// Pending returns how many values of the current row have been logged.
func (l *Logger) Pending() int { return l.cursor }

// LogValue appends one value to the current row. The row is written once it
// holds a value for every column. Nothing is appended if v cannot be
// formatted.
func (l *Logger) LogValue(v any) error {
	s, err := FormatValue(v)
	if err == nil {
		err = l.checkText(l.cursor, s)
	}
	if err != nil {
		l.metrics.RowRejected(metrics.ReasonUnsupportedValue)
		return err
	}
	return l.appendText(s)
}

// LogRow logs one value per column. It fails without side effects when the
// value count does not match the columns, when a partial row is pending, or
// when any value cannot be formatted. With echo set the row is also printed
// to the echo writer.
func (l *Logger) LogRow(values []any, echo bool) error {
	if len(values) != l.n {
		l.metrics.RowRejected(metrics.ReasonSchemaMismatch)
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"logging %d values but the logger has %d columns", len(values), l.n).
			WithDetail("expected", l.n).
			WithDetail("got", len(values))
	}
	if l.cursor != 0 {
		l.metrics.RowRejected(metrics.ReasonMisalignedWrite)
		return errors.Newf(errors.ErrorTypeMisalignedWrite,
			"logging a row while %d of %d values of the current row are pending", l.cursor, l.n).
			WithDetail("pending", l.cursor)
	}

	texts := make([]string, len(values))
	for i, v := range values {
		s, err := FormatValue(v)
		if err != nil {
			l.metrics.RowRejected(metrics.ReasonUnsupportedValue)
			return errors.Wrap(err, errors.ErrorTypeUnsupportedValue,
				fmt.Sprintf("column %q", l.columns[i]))
		}
		if err := l.checkText(i, s); err != nil {
			l.metrics.RowRejected(metrics.ReasonUnsupportedValue)
			return err
		}
		texts[i] = s
	}

	for _, s := range texts {
		if err := l.appendText(s); err != nil {
			return err
		}
	}

	if echo && l.echo != nil {
		fmt.Fprintln(l.echo, strings.Join(texts, " "+l.sep+" "))
	}
	return nil
}

func (l *Logger) checkText(i int, s string) error {
	if l.n == 1 && s == "" {
		return errors.Newf(errors.ErrorTypeUnsupportedValue,
			"column %q: an empty value in a single-column log cannot be read back", l.columns[i])
	}
	return nil
}

func (l *Logger) appendText(s string) error {
	l.line.WriteString(s)
	l.cursor++
	l.metrics.ValueLogged()

	if l.cursor < l.n {
		l.line.WriteString(l.sep)
		return nil
	}

	line := l.line.String()
	l.line.Reset()
	l.cursor = 0
	if err := l.writeLine(line); err != nil {
		return err
	}
	l.metrics.RowFlushed()
	return nil
}

func (l *Logger) writeLine(line string) error {
	if _, err := io.WriteString(l.dst, line+"\n"); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write log line")
	}
	return nil
}
