// Package dflog is the module root for dflog, a metric logger for training
// loops. Rows of scalar values are written to a delimited text file inside a
// timestamped run directory, read back as a table, and rendered as one chart
// per numeric column, split by a train/val flag column.
//
// # Quick Start
//
//	import (
//	    "github.com/ajitpratap0/dflog/pkg/dflog"
//	    "github.com/ajitpratap0/dflog/pkg/plot"
//	)
//
//	opts := dflog.DefaultOptions()
//	opts.LogDirSuffix = "baseline"
//
//	lg, err := dflog.New(dflog.ColumnString("epoch|loss|acc|flag"), opts)
//	if err != nil {
//	    return err
//	}
//	defer lg.Close()
//
//	for epoch := 1; epoch <= 3; epoch++ {
//	    _ = lg.LogRow([]any{epoch, trainLoss, trainAcc, "train"}, false)
//	    _ = lg.LogRow([]any{epoch, valLoss, valAcc, "val"}, true)
//	}
//	reports, err := lg.PlotColumns(plot.Params{})
//
// # Key Packages
//
//	pkg/dflog        - Facade tying a run directory, log file and plots together
//	pkg/rowlog       - Column-buffered row logger and value formatting
//	pkg/table        - Reads a delimited log back into a string table
//	pkg/plot         - Per-column line charts (PNG/SVG) and plot styles
//	pkg/run          - Timestamped run directories, config copies, manifest
//	pkg/export       - Prediction export as CSV plus Arrow or Avro snapshots
//	pkg/compression  - Stream compression for exported CSV files
//	pkg/config       - YAML loading with ${VAR} substitution
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus counters for logging and plotting
//
// # Run Directory Layout
//
//	logs/2024-03-01_14-05-09-baseline/
//	    log.txt                           header + one line per row
//	    run.json                          columns, separator, options
//	    loss.png, loss.svg, ...           one chart per numeric column
//	    1_model.yaml, 2_data.yaml         copied configuration files
//	    best_val_predictions_loss.csv     prediction exports
//	    best_val_predictions_loss.arrow
//
// The separator is never escaped. A value containing it produces a line that
// no longer matches the header, which surfaces as a parse error on read-back.
//
// # Configuration
//
// Options can be loaded from YAML; keys are the snake_case field names of
// dflog.Options. Environment variables are supported with ${VAR_NAME} and
// ${VAR_NAME:-default} syntax. The dflog command additionally reads DFLOG_*
// variables.
//
// # Command Line
//
//	dflog simulate --epochs 3 --batches 100 --log-interval 10 --plot
//	dflog plot logs/2024-03-01_14-05-09 --batches-per-epoch 100 --epoch 3 --log-interval 10
//	dflog styles
//	dflog version
package dflog
