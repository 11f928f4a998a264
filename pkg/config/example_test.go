package config_test

import (
	"fmt"
	"os"

	"github.com/ajitpratap0/dflog/pkg/config"
)

// ExampleDecode shows environment substitution with a fallback value.
func ExampleDecode() {
	os.Setenv("DFLOG_EXAMPLE_BASE", "/tmp/runs")
	defer os.Unsetenv("DFLOG_EXAMPLE_BASE")

	var cfg struct {
		BaseDir string `yaml:"base_dir"`
		Suffix  string `yaml:"log_dir_suffix"`
	}
	doc := "base_dir: ${DFLOG_EXAMPLE_BASE}\nlog_dir_suffix: ${DFLOG_EXAMPLE_SUFFIX:-baseline}\n"
	if err := config.Decode([]byte(doc), &cfg); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(cfg.BaseDir)
	fmt.Println(cfg.Suffix)

	// Output:
	// /tmp/runs
	// baseline
}
