package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/table"
	"github.com/ajitpratap0/dflog/pkg/testutil"
)

type CLISuite struct {
	testutil.IntegrationTestSuite
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func (s *CLISuite) TestSimulateThenPlot() {
	base := filepath.Join(s.TempDir(), "logs")
	out, err := s.execute("simulate",
		"--base-dir", base,
		"--suffix", "sim",
		"--epochs", "2",
		"--batches", "20",
		"--log-interval", "5",
		"--ext", "svg")
	s.Require().NoError(err)

	dir := testutil.OnlyEntry(s.T(), base)
	s.True(strings.HasSuffix(dir, "-sim"))
	s.Contains(out, dir)

	tbl, err := table.ReadFile(filepath.Join(dir, "log.txt"), "|")
	s.Require().NoError(err)
	s.Equal([]string{"epoch", "loss", "acc", "lr", "flag"}, tbl.Columns())
	s.Equal(10, tbl.Len(), "4 train rows and 1 val row per epoch")
	s.Len(tbl.Filter("flag", "val"), 2)

	out, err = s.execute("plot", dir, "--ext", "svg",
		"--batches-per-epoch", "20", "--epoch", "2", "--log-interval", "5")
	s.Require().NoError(err)
	s.Contains(out, "Column (loss) statistics:")
	s.Regexp(`flag\s+skipped`, out)
	s.FileExists(filepath.Join(dir, "loss.svg"))
	s.NoFileExists(filepath.Join(dir, "loss.png"))
}

func (s *CLISuite) TestSimulateRejectsBadShape() {
	_, err := s.execute("simulate", "--base-dir", s.TempDir(), "--log-interval", "0")
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
}

func (s *CLISuite) TestPlotMissingRun() {
	_, err := s.execute("plot", filepath.Join(s.TempDir(), "nope"))
	s.True(errors.IsType(err, errors.ErrorTypeFile))
}

func (s *CLISuite) TestPlotStrict() {
	dir := s.TempDir()
	s.CreateTempFile("log.txt", []byte("lr|loss|flag\n|0.9|train\n0.1|0.8|val\n"))

	out, err := s.execute("plot", dir, "--ext", "svg")
	s.Require().NoError(err)
	s.Regexp(`lr\s+failed`, out)

	_, err = s.execute("plot", dir, "--ext", "svg", "--strict")
	s.True(errors.IsType(err, errors.ErrorTypePlot))
}

func (s *CLISuite) TestStyles() {
	out, err := s.execute("styles")
	s.Require().NoError(err)
	s.Contains(out, "  - default (fallback)\n")
	s.Contains(out, "  - tableau-colorblind10 (default)\n")
}

func (s *CLISuite) TestVersion() {
	out, err := s.execute("version")
	s.Require().NoError(err)
	s.Contains(out, "dflog v"+version)
}

func (s *CLISuite) TestLoadOptionsLayering() {
	path := s.CreateTempFile("opts.yaml", []byte("plot_style: grayscale\nline_width: 2\nlog_dir_suffix: file\n"))
	s.T().Setenv("DFLOG_LOG_DIR_SUFFIX", "env")

	v := viper.New()
	v.Set("config", path)
	v.Set("style", "default")

	opts, err := loadOptions(v)
	s.Require().NoError(err)
	s.Equal("default", opts.PlotStyle, "flag beats file")
	s.Equal(2.0, opts.LineWidth, "file beats default")
	s.Equal("env", opts.LogDirSuffix, "env beats file")
	s.Equal("|", opts.Separator)
}
