package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/dflog/pkg/logger"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "dflog",
		Short: "dflog - delimited training metric logs and per-column plots",
		Long: `dflog writes training metrics as delimited rows into a timestamped run
directory and renders one chart per numeric column, split by a flag column
such as train/val.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{
				Level:    v.GetString("log-level"),
				Encoding: v.GetString("log-format"),
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML options file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log encoding (console, json)")
	pf.String("base-dir", "", "Directory holding run directories")
	pf.String("style", "", "Plot style name (see 'dflog styles')")
	pf.String("ext", "", "Primary figure extension (.png or .svg)")
	_ = v.BindPFlags(pf)
	bindEnv(v)

	root.AddCommand(
		newVersionCmd(),
		newStylesCmd(),
		newPlotCmd(v),
		newSimulateCmd(v),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dflog v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
