package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/dflog/pkg/dflog"
	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/logger"
	"github.com/ajitpratap0/dflog/pkg/plot"
)

func newPlotCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <run-dir>",
		Short: "Plot every numeric column of a run's log",
		Long: `Read the log of an existing run directory and write one chart per numeric
column next to it. Epoch markers are drawn when --batches-per-epoch, --epoch
and --log-interval are all given.

Example:
  dflog plot logs/2024-03-01_14-05-09 --batches-per-epoch 100 --epoch 3 --log-interval 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(v, cmd)
			opts, err := loadOptions(v)
			if err != nil {
				return err
			}
			d, err := dflog.Open(args[0], opts,
				dflog.WithLogger(logger.Named(opts.LoggerName)),
				dflog.WithStatsWriter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer d.Close()

			params := plot.Params{
				FlagColumn:      v.GetString("flag"),
				BatchesPerEpoch: v.GetInt("batches-per-epoch"),
				Epoch:           v.GetInt("epoch"),
				LogInterval:     v.GetInt("log-interval"),
			}
			reports, err := d.PlotColumns(params)
			if err != nil {
				return err
			}

			failed := printReports(cmd, reports)
			if failed > 0 && v.GetBool("strict") {
				return errors.Newf(errors.ErrorTypePlot, "%d column(s) failed to plot", failed)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("flag", plot.DefaultFlagColumn, "Column holding the train/val flag")
	f.Int("batches-per-epoch", 0, "Batches per epoch, for epoch markers")
	f.Int("epoch", 0, "Number of epochs, for epoch markers")
	f.Int("log-interval", 0, "Batches between logged rows, for epoch markers")
	f.Bool("strict", false, "Exit with an error when any column fails to plot")
	return cmd
}

func printReports(cmd *cobra.Command, reports []plot.ColumnReport) (failed int) {
	out := cmd.OutOrStdout()
	for _, r := range reports {
		switch r.Status {
		case plot.StatusPlotted:
			fmt.Fprintf(out, "%-24s %-8s %s\n", r.Column, r.Status, strings.Join(r.Files, ", "))
		case plot.StatusFailed:
			failed++
			fmt.Fprintf(out, "%-24s %-8s %v\n", r.Column, r.Status, r.Err)
		default:
			fmt.Fprintf(out, "%-24s %-8s\n", r.Column, r.Status)
		}
	}
	return failed
}

func newStylesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List available plot styles",
		Run: func(cmd *cobra.Command, args []string) {
			def := dflog.DefaultOptions().PlotStyle
			for i, name := range plot.AvailableStyles() {
				var notes []string
				if name == def {
					notes = append(notes, "default")
				}
				if i == 0 {
					notes = append(notes, "fallback")
				}
				if len(notes) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s)\n", name, strings.Join(notes, ", "))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", name)
			}
		},
	}
}
