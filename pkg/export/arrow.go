package export

import (
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/table"
)

// WriteArrow writes t as a single record batch in an Arrow IPC file. Numeric
// columns become float64 fields, everything else utf8. Empty numeric cells
// are stored as nulls.
func WriteArrow(path string, t *table.Table) (err error) {
	columns := t.Columns()
	fields := make([]arrow.Field, len(columns))
	numeric := make([][]float64, len(columns))
	for i, col := range columns {
		if vals, ok := t.Float64s(col); ok {
			numeric[i] = vals
			fields[i] = arrow.Field{Name: col, Type: arrow.PrimitiveTypes.Float64, Nullable: true}
		} else {
			fields[i] = arrow.Field{Name: col, Type: arrow.BinaryTypes.String, Nullable: true}
		}
	}
	schema := arrow.NewSchema(fields, nil)

	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for i, col := range columns {
		switch b := builder.Field(i).(type) {
		case *array.Float64Builder:
			for row, cell := range t.Column(col) {
				if strings.TrimSpace(cell) == "" {
					b.AppendNull()
					continue
				}
				b.Append(numeric[i][row])
			}
		case *array.StringBuilder:
			for _, s := range t.Column(col) {
				b.Append(s)
			}
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	f, err := os.Create(path) //nolint:gosec // path is built from the run directory
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close arrow file")
		}
	}()

	fw, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow writer")
	}
	if err := fw.Write(record); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close arrow writer")
	}
	return nil
}

// ReadArrow reads an Arrow IPC file written by WriteArrow back into a Table.
func ReadArrow(path string) (*table.Table, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided export path
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open arrow file").
			WithDetail("path", path)
	}
	defer f.Close()

	reader, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to create arrow reader")
	}
	defer reader.Close()

	schema := reader.Schema()
	names := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		names[i] = field.Name
	}
	t := table.New(names)

	for b := 0; b < reader.NumRecords(); b++ {
		record, err := reader.Record(b)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read record batch").
				WithDetail("batch", b)
		}
		for row := 0; row < int(record.NumRows()); row++ {
			cells := make([]string, record.NumCols())
			for c := range cells {
				cells[c] = arrowCell(record.Column(c), row)
			}
			if err := t.AppendRow(cells...); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func arrowCell(col arrow.Array, row int) string {
	if col.IsNull(row) {
		return ""
	}
	switch c := col.(type) {
	case *array.Float64:
		return strconv.FormatFloat(c.Value(row), 'g', -1, 64)
	case *array.String:
		return c.Value(row)
	default:
		return col.ValueStr(row)
	}
}
