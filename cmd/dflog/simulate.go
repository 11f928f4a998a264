package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dflog/pkg/dflog"
	"github.com/ajitpratap0/dflog/pkg/errors"
	"github.com/ajitpratap0/dflog/pkg/logger"
	"github.com/ajitpratap0/dflog/pkg/plot"
)

// simulation describes a synthetic training run.
type simulation struct {
	Columns     string
	Epochs      int
	Batches     int
	LogInterval int
	Seed        uint64
}

func newSimulateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write a synthetic training run",
		Long: `Write a synthetic training log with one train row every --log-interval
batches and one val row per epoch, then optionally plot it.

Example:
  dflog simulate --columns "epoch|loss|acc|lr|flag" --epochs 3 --batches 100 --log-interval 10 --plot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(v, cmd)
			opts, err := loadOptions(v)
			if err != nil {
				return err
			}
			if s := v.GetString("suffix"); s != "" {
				opts.LogDirSuffix = s
			}
			opts.CopyConfigFiles = v.GetBool("copy-config")

			sim := simulation{
				Columns:     v.GetString("columns"),
				Epochs:      v.GetInt("epochs"),
				Batches:     v.GetInt("batches"),
				LogInterval: v.GetInt("log-interval"),
				Seed:        v.GetUint64("seed"),
			}
			if err := sim.validate(); err != nil {
				return err
			}

			d, err := dflog.New(dflog.ColumnString(sim.Columns), opts,
				dflog.WithLogger(logger.Named(opts.LoggerName)),
				dflog.WithEcho(cmd.OutOrStdout()),
				dflog.WithStatsWriter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer d.Close()

			rows, err := sim.run(d, v.GetBool("echo"))
			if err != nil {
				return err
			}
			logger.Get().Info("simulation written",
				zap.String("run_dir", d.Dir()),
				zap.Int("rows", rows))
			fmt.Fprintln(cmd.OutOrStdout(), d.Dir())

			if !v.GetBool("plot") {
				return nil
			}
			reports, err := d.PlotColumns(plot.Params{
				BatchesPerEpoch: sim.Batches,
				Epoch:           sim.Epochs,
				LogInterval:     sim.LogInterval,
			})
			if err != nil {
				return err
			}
			printReports(cmd, reports)
			return nil
		},
	}

	f := cmd.Flags()
	f.String("columns", "epoch|loss|acc|lr|flag", "Columns joined by the separator")
	f.Int("epochs", 3, "Number of epochs")
	f.Int("batches", 100, "Batches per epoch")
	f.Int("log-interval", 10, "Batches between logged train rows")
	f.Uint64("seed", 1, "Random seed")
	f.String("suffix", "", "Run directory suffix")
	f.Bool("copy-config", false, "Copy config files into the run directory")
	f.Bool("echo", false, "Print every logged row")
	f.Bool("plot", false, "Plot the run after writing it")
	return cmd
}

func (s simulation) validate() error {
	if s.Epochs <= 0 || s.Batches <= 0 || s.LogInterval <= 0 {
		return errors.New(errors.ErrorTypeValidation, "epochs, batches and log-interval must be positive").
			WithDetail("epochs", s.Epochs).
			WithDetail("batches", s.Batches).
			WithDetail("log_interval", s.LogInterval)
	}
	return nil
}

// run logs the synthetic rows and returns how many were written.
func (s simulation) run(d *dflog.DFLogger, echo bool) (int, error) {
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	columns := d.Columns()
	rows := 0

	for epoch := 1; epoch <= s.Epochs; epoch++ {
		for batch := 0; batch < s.Batches; batch += s.LogInterval {
			progress := float64(epoch-1) + float64(batch)/float64(s.Batches)
			if err := d.LogRow(s.row(columns, rng, epoch, progress, plot.FlagTrain), echo); err != nil {
				return rows, err
			}
			rows++
		}
		if err := d.LogRow(s.row(columns, rng, epoch, float64(epoch), plot.FlagVal), echo); err != nil {
			return rows, err
		}
		rows++
	}
	return rows, nil
}

func (s simulation) row(columns []string, rng *rand.Rand, epoch int, progress float64, flag string) []any {
	noise := func(scale float64) float64 { return (rng.Float64() - 0.5) * scale }
	gap := 0.0
	if flag == plot.FlagVal {
		gap = 0.05
	}

	values := make([]any, len(columns))
	for i, col := range columns {
		switch col {
		case "epoch":
			values[i] = epoch
		case "flag":
			values[i] = flag
		case "lr":
			values[i] = 0.1 * math.Pow(0.5, float64(epoch-1))
		case "loss":
			values[i] = math.Exp(-progress)*2 + gap + noise(0.1)
		case "acc", "accuracy", "f1":
			values[i] = math.Min(1, 1-math.Exp(-progress)*0.9-gap+noise(0.05))
		default:
			values[i] = rng.Float64()
		}
	}
	return values
}
