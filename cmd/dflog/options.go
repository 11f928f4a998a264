package main

import (
	"bytes"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/dflog/pkg/dflog"
	"github.com/ajitpratap0/dflog/pkg/errors"
)

// flagKeys maps persistent flags onto option keys.
var flagKeys = map[string]string{
	"base-dir": "base_dir",
	"style":    "plot_style",
	"ext":      "figure_ext",
}

// loadOptions layers, from lowest to highest precedence: defaults, the
// --config file, DFLOG_* environment variables and explicit flags.
func loadOptions(v *viper.Viper) (dflog.Options, error) {
	opts := dflog.DefaultOptions()
	if path := v.GetString("config"); path != "" {
		var err error
		if opts, err = dflog.LoadOptions(path); err != nil {
			return opts, err
		}
	}

	data, err := yaml.Marshal(opts)
	if err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to encode options")
	}

	layered := viper.New()
	layered.SetConfigType("yaml")
	if err := layered.ReadConfig(bytes.NewReader(data)); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load options")
	}
	layered.SetEnvPrefix("DFLOG")
	layered.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	layered.AutomaticEnv()

	for flag, key := range flagKeys {
		if s := v.GetString(flag); s != "" {
			layered.Set(key, s)
		}
	}

	if err := layered.Unmarshal(&opts); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode options")
	}
	return opts, opts.Validate()
}

// bindFlags binds the flags of the running command. Subcommands share flag
// names, so binding happens when a command runs rather than when it is built.
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	_ = v.BindPFlags(cmd.Flags())
}

// bindEnv makes DFLOG_* variables override flag defaults.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("DFLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}
