package rowlog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/dflog/pkg/errors"
)

// Texter is implemented by values that know how to render themselves in a
// log row. It takes precedence over every built-in conversion.
type Texter interface {
	Text() string
}

// Text is a string that satisfies Texter.
type Text string

// Text implements Texter.
func (t Text) Text() string { return string(t) }

// FormatValue renders v the way it is written to the log file. Only scalars
// and values implementing Texter or fmt.Stringer are accepted.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case Texter:
		return x.Text(), nil
	case string:
		return x, nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x), 32), nil
	case float64:
		return formatFloat(x, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	case nil:
		return "", errors.New(errors.ErrorTypeUnsupportedValue, "nil value has no text form")
	default:
		return "", errors.Newf(errors.ErrorTypeUnsupportedValue, "value of type %T has no text form", v).
			WithDetail("type", fmt.Sprintf("%T", v))
	}
}

// formatFloat writes the shortest round-trip decimal. Integral values keep a
// trailing ".0" so a float column never reads back as integers, and very
// small or large magnitudes switch to exponent form.
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if f != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, bitSize)
	}

	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
