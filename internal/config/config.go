// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package config defines options
package config

import (
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/release"
	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"
)

// Log defines the running config.log structure.
type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty" toml:"pretty"`
}

// Checks defines the running config.checks structure.
type Checks struct {
	ConfDir string   `mapstructure:"conf_dir" json:"conf_dir" yaml:"conf_dir" toml:"conf_dir"`
	Enabled []string `json:"enabled" yaml:"enabled" toml:"enabled"`
	Timeout string   `json:"timeout" yaml:"timeout" toml:"timeout"`
	Tags    string   `json:"tags" yaml:"tags" toml:"tags"`
}

// Wheels defines the running config.wheels structure.
type Wheels struct {
	Bucket          string `json:"bucket" yaml:"bucket" toml:"bucket"`
	StorageURL      string `mapstructure:"storage_url" json:"storage_url" yaml:"storage_url" toml:"storage_url"`
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file" yaml:"credentials_file" toml:"credentials_file"`
	TargetsDir      string `mapstructure:"targets_dir" json:"targets_dir" yaml:"targets_dir" toml:"targets_dir"`
	OutputDir       string `mapstructure:"output_dir" json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	WorkflowID      string `mapstructure:"workflow_id" json:"workflow_id" yaml:"workflow_id" toml:"workflow_id"`
	PythonVersion   string `mapstructure:"python_version" json:"python_version" yaml:"python_version" toml:"python_version"`
}

// Config defines the running config structure.
type Config struct {
	Listen   []string `json:"listen" yaml:"listen" toml:"listen"`
	Log      Log      `json:"log" yaml:"log" toml:"log"`
	Checks   Checks   `json:"checks" yaml:"checks" toml:"checks"`
	Wheels   Wheels   `json:"wheels" yaml:"wheels" toml:"wheels"`
	Debug    bool     `json:"debug" yaml:"debug" toml:"debug"`
	DebugCGM bool     `mapstructure:"debug_cgm" json:"debug_cgm" yaml:"debug_cgm" toml:"debug_cgm"`
}

// NOTE: adding a Key* MUST be reflected in the Config structures above.
const (
	// KeyDebug enables debug messages.
	KeyDebug = "debug"

	// KeyDebugCGM enables debug messages for the circonus-gometrics aggregator.
	KeyDebugCGM = "debug_cgm"

	// KeyListen primary address and port to listen on.
	KeyListen = "listen"

	// KeyLogLevel logging level (panic, fatal, error, warn, info, debug, disabled).
	KeyLogLevel = "log.level"

	// KeyLogPretty output formatted log lines (for running in foreground).
	KeyLogPretty = "log.pretty"

	// KeyChecksConfDir directory holding one <type>.(json|toml|yaml) file per integration.
	KeyChecksConfDir = "checks.conf_dir"

	// KeyChecksEnabled restricts the integrations loaded from conf_dir (empty = all found).
	KeyChecksEnabled = "checks.enabled"

	// KeyChecksTimeout default per-run deadline for instances not setting `timeout`.
	KeyChecksTimeout = "checks.timeout"

	// KeyCheckTags comma separated list of key:value tags added to every emission.
	KeyCheckTags = "checks.tags"

	// KeyWheelsBucket object storage bucket holding the wheel index.
	KeyWheelsBucket = "wheels.bucket"

	// KeyWheelsStorageURL public base URL the bucket is served from.
	KeyWheelsStorageURL = "wheels.storage_url"

	// KeyWheelsCredentialsFile optional service account credentials for the bucket.
	KeyWheelsCredentialsFile = "wheels.credentials_file"

	// KeyWheelsTargetsDir directory of per platform build outputs.
	KeyWheelsTargetsDir = "wheels.targets_dir"

	// KeyWheelsOutputDir directory receiving lock files and metadata.json.
	KeyWheelsOutputDir = "wheels.output_dir"

	// KeyWheelsWorkflowID build workflow identifier used to tag built wheels.
	KeyWheelsWorkflowID = "wheels.workflow_id"

	// KeyWheelsPythonVersion major.minor python version embedded in lock file names.
	KeyWheelsPythonVersion = "wheels.python_version"

	// KeyShowConfig - show configuration and exit.
	KeyShowConfig = "show-config"

	// KeyShowVersion - show version information and exit.
	KeyShowVersion = "version"
)

// Validate verifies the required portions of the configuration.
func Validate() error {
	if spec := viper.GetString(KeyChecksTimeout); spec != "" {
		d, err := time.ParseDuration(spec)
		if err != nil {
			return &InvalidError{Key: KeyChecksTimeout, Reason: "unparsable duration", Err: err}
		}
		if d <= 0 {
			return Invalid(KeyChecksTimeout, "must be greater than zero")
		}
	}

	if file := viper.GetString(KeyWheelsCredentialsFile); file != "" {
		abs, err := verifyFile(file)
		if err != nil {
			return &InvalidError{Key: KeyWheelsCredentialsFile, Reason: "unusable file", Err: err}
		}
		viper.Set(KeyWheelsCredentialsFile, abs)
	}

	for _, addr := range viper.GetStringSlice(KeyListen) {
		if _, err := ParseListen(addr); err != nil {
			return &InvalidError{Key: KeyListen, Reason: addr, Err: err}
		}
	}

	return nil
}

// StatConfig adds the running config to the app stats.
func StatConfig() error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	if cfg.Wheels.CredentialsFile != "" {
		cfg.Wheels.CredentialsFile = "..."
	}

	expvar.Publish("config", expvar.Func(func() interface{} {
		return &cfg
	}))

	return nil
}

// getConfig dumps the current configuration and returns it.
func getConfig() (*Config, error) {
	var cfg *Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	if cfg == nil {
		cfg = &Config{}
	}

	return cfg, nil
}

// ShowConfig prints the running configuration.
func ShowConfig(w io.Writer) error {
	var cfg *Config
	var err error
	var data []byte

	cfg, err = getConfig()
	if err != nil {
		return err
	}

	format := viper.GetString(KeyShowConfig)

	switch format {
	case "json":
		data, err = json.MarshalIndent(cfg, " ", "  ")
	case "yaml":
		data, err = yaml.Marshal(cfg)
	case "toml":
		data, err = toml.Marshal(*cfg)
	default:
		return errors.Errorf("unknown config format '%s'", format)
	}

	if err != nil {
		return errors.Wrapf(err, "formatting config (%s)", format)
	}

	fmt.Fprintf(w, "%s v%s running config:\n%s\n", release.NAME, release.VERSION, data)
	return nil
}
