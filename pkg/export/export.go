// Package export saves tabular prediction results next to a run's log.
//
// SavePredictions writes two sibling files: a comma separated text file for
// quick inspection and a binary snapshot (Arrow IPC or Avro OCF) that keeps
// numeric columns typed. The file names depend on whether the predictions
// belong to the best-loss or the best-F1 checkpoint:
//
//	best_val_predictions_loss.csv   best_val_predictions_loss.arrow
//	best_val_predictions_f1.csv     best_val_predictions_f1.arrow
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/dflog/pkg/compression"
	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/table"
)

// Format is the binary snapshot format.
type Format string

const (
	// FormatArrow writes an Arrow IPC file
	FormatArrow Format = "arrow"
	// FormatAvro writes an Avro object container file
	FormatAvro Format = "avro"
)

// ParseFormat converts a configuration string to a Format. The empty string
// means FormatArrow.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatArrow, nil
	case FormatArrow, FormatAvro:
		return f, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported prediction format %q", s)
	}
}

// Extension returns the snapshot file extension.
func (f Format) Extension() string {
	if f == FormatAvro {
		return ".avro"
	}
	return ".arrow"
}

// Options controls SavePredictions.
type Options struct {
	Format      Format
	Compression compression.Algorithm
}

// BaseName returns the file name stem for a prediction export.
func BaseName(f1 bool) string {
	if f1 {
		return "best_val_predictions_f1"
	}
	return "best_val_predictions_loss"
}

// SavePredictions writes t as CSV and as a binary snapshot into dir and
// returns the written paths.
func SavePredictions(dir string, t *table.Table, f1 bool, opts Options) ([]string, error) {
	if t == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "predictions table is required")
	}
	if opts.Format == "" {
		opts.Format = FormatArrow
	}
	if opts.Compression == "" {
		opts.Compression = compression.None
	}

	base := filepath.Join(dir, BaseName(f1))

	csvPath := base + ".csv" + opts.Compression.Extension()
	if err := writeCSV(csvPath, t, opts.Compression); err != nil {
		return nil, err
	}

	snapshotPath := base + opts.Format.Extension()
	var err error
	switch opts.Format {
	case FormatArrow:
		err = WriteArrow(snapshotPath, t)
	case FormatAvro:
		err = WriteAvro(snapshotPath, t)
	default:
		err = errors.Newf(errors.ErrorTypeConfig, "unsupported prediction format %q", opts.Format)
	}
	if err != nil {
		return []string{csvPath}, err
	}

	return []string{csvPath, snapshotPath}, nil
}

func writeCSV(path string, t *table.Table, alg compression.Algorithm) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is built from the run directory
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create predictions file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close predictions file")
		}
	}()

	cw, err := compression.NewWriter(f, alg, compression.Default)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to set up compression")
	}

	w := csv.NewWriter(cw)
	if err := w.Write(t.Columns()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write predictions header")
	}
	for i := 0; i < t.Len(); i++ {
		if err := w.Write(t.Row(i)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write predictions row").
				WithDetail("row", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush predictions")
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed stream")
	}
	return nil
}

// ReadCSV reads a predictions CSV written by SavePredictions, decompressing
// it according to alg.
func ReadCSV(path string, alg compression.Algorithm) (*table.Table, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided export path
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open predictions file").
			WithDetail("path", path)
	}
	defer f.Close()

	r, err := compression.NewReader(f, alg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to open compressed stream")
	}
	defer r.Close()

	return table.Parse(r, ",")
}
