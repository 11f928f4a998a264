package plot

import (
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Palette is a named set of colors used for one chart.
type Palette struct {
	Background drawing.Color
	Canvas     drawing.Color
	Text       drawing.Color
	Series     []drawing.Color
}

// SeriesColor returns the color of the i-th series, cycling through the set.
func (p Palette) SeriesColor(i int) drawing.Color {
	if len(p.Series) == 0 {
		return hex("000000")
	}
	return p.Series[i%len(p.Series)]
}

// Style is the visual configuration of a plotting pass. It is a plain value
// owned by the caller; nothing about it is process wide.
type Style struct {
	Name       string
	Palette    Palette
	FontSize   float64
	FigureSize [2]float64 // inches
	DPI        float64
	LineWidth  float64
}

// Default style settings.
const (
	DefaultFontSize  = 18
	DefaultLineWidth = 3
	DefaultDPI       = 100
)

// DefaultFigureSize is the figure size in inches.
var DefaultFigureSize = [2]float64{10, 8}

type namedPalette struct {
	name    string
	palette Palette
}

// registry is ordered; the first entry is the fallback for unknown names.
var registry = []namedPalette{
	{"default", Palette{
		Background: hex("FFFFFF"),
		Canvas:     hex("FFFFFF"),
		Text:       hex("333333"),
		Series: []drawing.Color{
			hex("1F77B4"), hex("FF7F0E"), hex("2CA02C"), hex("D62728"), hex("9467BD"),
			hex("8C564B"), hex("E377C2"), hex("7F7F7F"), hex("BCBD22"), hex("17BECF"),
		},
	}},
	{"alternate", Palette{
		Background: hex("F5F5F5"),
		Canvas:     hex("FFFFFF"),
		Text:       hex("222222"),
		Series: []drawing.Color{
			hex("E24A33"), hex("348ABD"), hex("988ED5"), hex("777777"),
			hex("FBC15E"), hex("8EBA42"), hex("FFB5B8"),
		},
	}},
	{"tableau-colorblind10", Palette{
		Background: hex("FFFFFF"),
		Canvas:     hex("FFFFFF"),
		Text:       hex("333333"),
		Series: []drawing.Color{
			hex("006BA4"), hex("FF800E"), hex("ABABAB"), hex("595959"), hex("5F9ED1"),
			hex("C85200"), hex("898989"), hex("A2C8EC"), hex("FFBC79"), hex("CFCFCF"),
		},
	}},
	{"grayscale", Palette{
		Background: hex("FFFFFF"),
		Canvas:     hex("FFFFFF"),
		Text:       hex("000000"),
		Series: []drawing.Color{
			hex("000000"), hex("555555"), hex("888888"), hex("AAAAAA"),
		},
	}},
}

func hex(s string) drawing.Color { return drawing.ColorFromHex(s) }

// AvailableStyles lists the registered style names in lookup order.
func AvailableStyles() []string {
	names := make([]string, len(registry))
	for i, p := range registry {
		names[i] = p.name
	}
	return names
}

// ResolveStyle returns the style registered under name with default sizes.
// Unknown names resolve to the first registered style; found reports whether
// the requested name was known.
func ResolveStyle(name string) (style Style, found bool) {
	chosen := registry[0]
	for _, p := range registry {
		if p.name == name {
			chosen, found = p, true
			break
		}
	}
	palette := chosen.palette
	palette.Series = append([]drawing.Color(nil), chosen.palette.Series...)
	return Style{
		Name:       chosen.name,
		Palette:    palette,
		FontSize:   DefaultFontSize,
		FigureSize: DefaultFigureSize,
		DPI:        DefaultDPI,
		LineWidth:  DefaultLineWidth,
	}, found
}

// pixels returns the figure size in pixels.
func (s Style) pixels() (width, height int) {
	dpi := s.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	size := s.FigureSize
	if size[0] <= 0 || size[1] <= 0 {
		size = DefaultFigureSize
	}
	return int(size[0] * dpi), int(size[1] * dpi)
}
