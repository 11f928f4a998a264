package export

import (
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/table"
)

type avroField struct {
	Name    string   `json:"name"`
	Type    []string `json:"type"`
	Default any      `json:"default"`
}

type avroSchema struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace,omitempty"`
	Fields    []avroField `json:"fields"`
}

// AvroName converts a column name into a valid Avro field name. Characters
// outside [A-Za-z0-9_] become underscores and a leading digit gets an
// underscore prefix.
func AvroName(column string) string {
	var b strings.Builder
	for i, r := range column {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// WriteAvro writes t as an Avro object container file with one record per
// row. Numeric columns are nullable doubles, the rest nullable strings.
func WriteAvro(path string, t *table.Table) (err error) {
	columns := t.Columns()
	schema := avroSchema{Type: "record", Name: "prediction", Namespace: "dflog"}
	numeric := make([][]float64, len(columns))
	names := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, col := range columns {
		name := AvroName(col)
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name += "_" + strconv.Itoa(n)
		} else {
			seen[name] = 1
		}
		names[i] = name

		typ := "string"
		if vals, ok := t.Float64s(col); ok {
			numeric[i] = vals
			typ = "double"
		}
		schema.Fields = append(schema.Fields, avroField{Name: name, Type: []string{"null", typ}})
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode avro schema")
	}
	codec, err := goavro.NewCodec(string(schemaJSON))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "failed to create avro codec")
	}

	f, err := os.Create(path) //nolint:gosec // path is built from the run directory
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create avro file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close avro file")
		}
	}()

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{W: f, Codec: codec})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create avro writer")
	}

	records := make([]any, 0, t.Len())
	for row := 0; row < t.Len(); row++ {
		cells := t.Row(row)
		record := make(map[string]any, len(columns))
		for i, name := range names {
			record[name] = avroValue(cells[i], numeric[i], row)
		}
		records = append(records, record)
	}
	if err := ocf.Append(records); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to append avro records")
	}
	return nil
}

func avroValue(cell string, numeric []float64, row int) any {
	if numeric != nil {
		if strings.TrimSpace(cell) == "" {
			return nil
		}
		return goavro.Union("double", numeric[row])
	}
	return goavro.Union("string", cell)
}

// ReadAvro reads an Avro object container file written by WriteAvro. Column
// names are the Avro field names, see AvroName.
func ReadAvro(path string) (*table.Table, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided export path
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open avro file").
			WithDetail("path", path)
	}
	defer f.Close()

	ocf, err := goavro.NewOCFReader(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to create avro reader")
	}

	var schema avroSchema
	if err := json.Unmarshal([]byte(ocf.Codec().Schema()), &schema); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to decode avro schema")
	}
	names := make([]string, len(schema.Fields))
	for i, field := range schema.Fields {
		names[i] = field.Name
	}
	t := table.New(names)

	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read avro record")
		}
		record, ok := datum.(map[string]any)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeParse, "unexpected avro datum %T", datum)
		}
		cells := make([]string, len(names))
		for i, name := range names {
			cells[i] = avroCell(record[name])
		}
		if err := t.AppendRow(cells...); err != nil {
			return nil, err
		}
	}
	if err := ocf.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to scan avro file")
	}
	return t, nil
}

func avroCell(v any) string {
	if union, ok := v.(map[string]any); ok {
		for _, inner := range union {
			v = inner
		}
	}
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return ""
	}
}
