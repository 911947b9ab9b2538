package livereload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// optionsFile is the on-disk shape of Options. Durations are written as Go
// duration strings ("150ms").
type optionsFile struct {
	Exec            string   `yaml:"exec"`
	ExecArgs        []string `yaml:"exec_args"`
	AppArgs         []string `yaml:"app_args"`
	HardResetMethod string   `yaml:"hard_reset_method"`
	ForceHardReset  bool     `yaml:"force_hard_reset"`
	Ignore          []string `yaml:"ignore"`
	Debounce        string   `yaml:"debounce"`
	LogLevel        string   `yaml:"log_level"`
	AppRoot         string   `yaml:"app_root"`
	Quiet           bool     `yaml:"quiet"`
}

// LoadOptions reads Options from a YAML file. Unknown keys are rejected so a
// typo in a config file fails loudly instead of being silently ignored.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file optionsFile
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return Options{}, nil
		}
		return Options{}, fmt.Errorf("parse %s: %w", path, err)
	}

	opts := Options{
		Exec:            file.Exec,
		ExecArgs:        file.ExecArgs,
		AppArgs:         file.AppArgs,
		HardResetMethod: file.HardResetMethod,
		ForceHardReset:  file.ForceHardReset,
		Ignore:          file.Ignore,
		LogLevel:        file.LogLevel,
		AppRoot:         file.AppRoot,
		Quiet:           file.Quiet,
	}
	if file.Debounce != "" {
		debounce, err := time.ParseDuration(file.Debounce)
		if err != nil {
			return Options{}, fmt.Errorf("parse %s: debounce: %w", path, err)
		}
		opts.Debounce = debounce
	}
	return opts, nil
}
