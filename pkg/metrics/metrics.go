// Package metrics exposes Prometheus counters for a metric logger.
//
// A Collector is created per logger and registered on the caller's
// registerer, so a training process that already serves Prometheus metrics
// can see how many rows were flushed, how many writes were rejected, and how
// each column fared during plotting:
//
//	reg := prometheus.NewRegistry()
//	c, err := metrics.NewCollector("df_logger", reg)
//	...
//	c.RowFlushed()
//
// A nil registerer leaves the collectors unregistered; they still count.
// All methods are safe to call on a nil *Collector.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dflog"

// Rejection reasons used as label values for RowsRejected.
const (
	ReasonSchemaMismatch   = "schema_mismatch"
	ReasonMisalignedWrite  = "misaligned_write"
	ReasonUnsupportedValue = "unsupported_value"
)

// Plot statuses used as label values for Plots.
const (
	PlotPlotted = "plotted"
	PlotSkipped = "skipped"
	PlotFailed  = "failed"
)

// Collector groups the counters of one logger.
type Collector struct {
	name         string
	startTime    time.Time
	valuesLogged prometheus.Counter
	rowsFlushed  prometheus.Counter
	rowsRejected *prometheus.CounterVec
	plots        *prometheus.CounterVec
}

// NewCollector creates the counters for the named logger and registers them
// on reg when it is non-nil. Collectors already registered under the same
// name are reused.
func NewCollector(name string, reg prometheus.Registerer) (*Collector, error) {
	labels := prometheus.Labels{"logger": name}

	c := &Collector{
		name:      name,
		startTime: time.Now(),
		valuesLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "values_logged_total",
			Help:        "Number of scalar values appended to the row buffer",
			ConstLabels: labels,
		}),
		rowsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_flushed_total",
			Help:        "Number of complete rows written to the log file",
			ConstLabels: labels,
		}),
		rowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_rejected_total",
			Help:        "Number of log calls rejected before touching the buffer",
			ConstLabels: labels,
		}, []string{"reason"}),
		plots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "column_plots_total",
			Help:        "Columns processed by the plotter, by outcome",
			ConstLabels: labels,
		}, []string{"status"}),
	}

	if reg == nil {
		return c, nil
	}

	var err error
	if c.valuesLogged, err = register(reg, c.valuesLogged); err != nil {
		return nil, err
	}
	if c.rowsFlushed, err = register(reg, c.rowsFlushed); err != nil {
		return nil, err
	}
	if c.rowsRejected, err = register(reg, c.rowsRejected); err != nil {
		return nil, err
	}
	if c.plots, err = register(reg, c.plots); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// Name returns the logger name used as the constant label.
func (c *Collector) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.startTime
}

// ValueLogged counts one value appended to the row buffer.
func (c *Collector) ValueLogged() {
	if c == nil {
		return
	}
	c.valuesLogged.Inc()
}

// RowFlushed counts one completed row.
func (c *Collector) RowFlushed() {
	if c == nil {
		return
	}
	c.rowsFlushed.Inc()
}

// RowRejected counts a rejected log call.
func (c *Collector) RowRejected(reason string) {
	if c == nil {
		return
	}
	c.rowsRejected.WithLabelValues(reason).Inc()
}

// ColumnPlotted counts one column outcome of a plotting pass.
func (c *Collector) ColumnPlotted(status string) {
	if c == nil {
		return
	}
	c.plots.WithLabelValues(status).Inc()
}

// ValuesLogged exposes the underlying counter, mostly for tests.
func (c *Collector) ValuesLogged() prometheus.Counter { return c.valuesLogged }

// RowsFlushed exposes the underlying counter.
func (c *Collector) RowsFlushed() prometheus.Counter { return c.rowsFlushed }

// RowsRejected exposes the underlying counter vector.
func (c *Collector) RowsRejected() *prometheus.CounterVec { return c.rowsRejected }

// Plots exposes the underlying counter vector.
func (c *Collector) Plots() *prometheus.CounterVec { return c.plots }
