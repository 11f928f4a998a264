package dflog

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ajitpratap0/dflog/pkg/compression"
	"github.com/ajitpratap0/dflog/pkg/config"
	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/export"
	"github.com/ajitpratap0/dflog/pkg/plot"
	"github.com/ajitpratap0/dflog/pkg/run"
)

// Options is the user-facing configuration of a DFLogger. The zero value is
// not useful; start from DefaultOptions.
type Options struct {
	LoggerName   string `yaml:"logger_name" json:"logger_name" mapstructure:"logger_name"`
	Separator    string `yaml:"separator" json:"separator" mapstructure:"separator"`
	LogFilename  string `yaml:"log_filename" json:"log_filename" mapstructure:"log_filename"`
	LogDirSuffix string `yaml:"log_dir_suffix" json:"log_dir_suffix" mapstructure:"log_dir_suffix"`
	BaseDir      string `yaml:"base_dir" json:"base_dir" mapstructure:"base_dir"`

	LineWidth     float64    `yaml:"line_width" json:"line_width" mapstructure:"line_width"`
	PlotFontSize  float64    `yaml:"plot_font_size" json:"plot_font_size" mapstructure:"plot_font_size"`
	PlotStyle     string     `yaml:"plot_style" json:"plot_style" mapstructure:"plot_style"`
	FigureSize    [2]float64 `yaml:"figure_size" json:"figure_size" mapstructure:"figure_size"`
	FigureExt     string     `yaml:"figure_ext" json:"figure_ext" mapstructure:"figure_ext"`
	PlotUngrouped []string   `yaml:"plot_ungrouped" json:"plot_ungrouped" mapstructure:"plot_ungrouped"`

	CopyConfigFiles      bool     `yaml:"copy_config_files" json:"copy_config_files" mapstructure:"copy_config_files"`
	CopySourceDir        string   `yaml:"copy_source_dir" json:"copy_source_dir" mapstructure:"copy_source_dir"`
	CopyPattern          string   `yaml:"copy_pattern" json:"copy_pattern" mapstructure:"copy_pattern"`
	FilesToCopyStartWith []string `yaml:"files_to_copy_start_with" json:"files_to_copy_start_with" mapstructure:"files_to_copy_start_with"`

	PredictionFormat      string `yaml:"prediction_format" json:"prediction_format" mapstructure:"prediction_format"`
	PredictionCompression string `yaml:"prediction_compression" json:"prediction_compression" mapstructure:"prediction_compression"`
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		LoggerName:            "df_logger",
		Separator:             "|",
		LogFilename:           "log.txt",
		BaseDir:               run.DefaultBaseDir,
		LineWidth:             plot.DefaultLineWidth,
		PlotFontSize:          plot.DefaultFontSize,
		PlotStyle:             "tableau-colorblind10",
		FigureSize:            plot.DefaultFigureSize,
		FigureExt:             plot.ExtPNG,
		PlotUngrouped:         append([]string(nil), plot.DefaultUngrouped...),
		CopyConfigFiles:       true,
		CopySourceDir:         ".",
		CopyPattern:           "*",
		FilesToCopyStartWith:  append([]string(nil), run.DefaultCopyPrefixes...),
		PredictionFormat:      string(export.FormatArrow),
		PredictionCompression: string(compression.None),
	}
}

// LoadOptions reads a YAML file on top of DefaultOptions and validates the
// result.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if err := config.Load(path, &opts); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

// Validate reports the first invalid setting.
func (o Options) Validate() error {
	if strings.TrimSpace(o.LoggerName) == "" {
		return invalid("logger_name", "cannot be empty")
	}
	if err := validateSeparator(o.Separator); err != nil {
		return err
	}
	if o.LogFilename == "" || filepath.Base(o.LogFilename) != o.LogFilename {
		return invalid("log_filename", "must be a plain file name").WithDetail("value", o.LogFilename)
	}
	if strings.ContainsAny(o.LogDirSuffix, `/\`) {
		return invalid("log_dir_suffix", "cannot contain path separators").WithDetail("value", o.LogDirSuffix)
	}
	if o.LineWidth <= 0 {
		return invalid("line_width", "must be positive").WithDetail("value", o.LineWidth)
	}
	if o.PlotFontSize <= 0 {
		return invalid("plot_font_size", "must be positive").WithDetail("value", o.PlotFontSize)
	}
	if o.FigureSize[0] <= 0 || o.FigureSize[1] <= 0 {
		return invalid("figure_size", "both dimensions must be positive").WithDetail("value", o.FigureSize)
	}
	switch strings.ToLower(o.FigureExt) {
	case plot.ExtPNG, plot.ExtSVG, "png", "svg":
	default:
		return invalid("figure_ext", "must be .png or .svg").WithDetail("value", o.FigureExt)
	}
	if _, err := export.ParseFormat(o.PredictionFormat); err != nil {
		return err
	}
	if _, err := compression.Parse(o.PredictionCompression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid prediction_compression")
	}
	return nil
}

func validateSeparator(sep string) error {
	if utf8.RuneCountInString(sep) != 1 {
		return invalid("separator", "must be exactly one character").WithDetail("value", sep)
	}
	switch sep {
	case `"`, "\n", "\r":
		return invalid("separator", "cannot be a quote or line break").WithDetail("value", sep)
	}
	return nil
}

func invalid(field, msg string) *errors.Error {
	return errors.Newf(errors.ErrorTypeConfig, "%s %s", field, msg).WithDetail("field", field)
}

func (o Options) style() (plot.Style, bool) {
	style, found := plot.ResolveStyle(o.PlotStyle)
	style.FontSize = o.PlotFontSize
	style.FigureSize = o.FigureSize
	style.LineWidth = o.LineWidth
	return style, found
}
