// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package cmd defines the CLI for the checks runner
package cmd

import (
	"fmt"
	stdlog "log"
	"os"
	"runtime"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/agent"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/config/defaults"
	"github.com/circonus-labs/circonus-checks/internal/release"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   release.NAME,
	Short: "Circonus Integration Checks",
	Long: `The Circonus checks daemon runs integration checks (databases,
proxies, directories, processes, containers and remote endpoints)
on request and exposes the aggregated results over HTTP in JSON
format.`,
	PersistentPreRunE: initLogging,
	Run: func(cmd *cobra.Command, args []string) {
		//
		// show version and exit
		//
		if viper.GetBool(config.KeyShowVersion) {
			fmt.Printf("%s v%s - commit: %s, date: %s, tag: %s\n", release.NAME, release.VERSION, release.COMMIT, release.DATE, release.TAG)
			return
		}

		//
		// show configuration and exit
		//
		if viper.GetString(config.KeyShowConfig) != "" {
			if err := config.ShowConfig(os.Stdout); err != nil {
				log.Fatal().Err(err).Msg("show-config")
			}
			return
		}

		log.Info().
			Int("pid", os.Getpid()).
			Str("name", release.NAME).
			Str("ver", release.VERSION).Msg("Starting")

		a, err := agent.New()
		if err != nil {
			log.Fatal().Err(err).Msg("initializing")
		}

		if err := config.StatConfig(); err != nil {
			log.Fatal().Err(err).Msg("initializing internal stats")
		}

		if err := a.Start(); err != nil {
			log.Fatal().Err(err).Msg("starting agent")
		}
	},
}

func bindFlagError(flag string, err error) {
	log.Fatal().Err(err).Str("flag", flag).Msg("binding flag")
}
func bindEnvError(envVar string, err error) {
	log.Fatal().Err(err).Str("var", envVar).Msg("binding env var")
}

func desc(desc, env string) string {
	return fmt.Sprintf("[ENV: %s] %s", env, desc)
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zlog := zerolog.New(zerolog.SyncWriter(os.Stderr)).With().Timestamp().Logger()
	log.Logger = zlog

	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog)

	cobra.OnInitialize(initConfig)

	//
	// Basic
	//
	{
		var (
			longOpt     = "config"
			shortOpt    = "c"
			description = "config file (default is " + defaults.EtcPath + "/" + release.NAME + ".(json|toml|yaml)"
		)
		RootCmd.PersistentFlags().StringVarP(&cfgFile, longOpt, shortOpt, "", description)
	}

	{
		var (
			key         = config.KeyListen
			longOpt     = "listen"
			shortOpt    = "l"
			envVar      = release.ENVPREFIX + "_LISTEN"
			description = "Listen spec e.g. :2609, [::1], [::1]:2609, 127.0.0.1, 127.0.0.1:2609, foo.bar.baz, foo.bar.baz:2609 " + `(default "` + defaults.Listen + `")`
		)

		RootCmd.Flags().StringSliceP(longOpt, shortOpt, []string{}, desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.Flags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
	}

	//
	// Checks
	//
	{
		var (
			key         = config.KeyChecksConfDir
			longOpt     = "checks-conf-dir"
			envVar      = release.ENVPREFIX + "_CHECKS_CONF_DIR"
			description = "Integration configuration directory, one <type>.(json|toml|yaml) per integration"
		)

		RootCmd.PersistentFlags().String(longOpt, defaults.ConfDPath, desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
		viper.SetDefault(key, defaults.ConfDPath)
	}

	{
		const (
			key         = config.KeyChecksEnabled
			longOpt     = "checks-enabled"
			envVar      = release.ENVPREFIX + "_CHECKS_ENABLED"
			description = "List of integrations to load (default all configured)"
		)

		RootCmd.PersistentFlags().StringSlice(longOpt, []string{}, desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
	}

	{
		const (
			key          = config.KeyChecksTimeout
			longOpt      = "checks-timeout"
			envVar       = release.ENVPREFIX + "_CHECKS_TIMEOUT"
			description  = "Default deadline for a single instance run"
			defaultValue = defaults.CheckTimeout
		)

		RootCmd.PersistentFlags().String(longOpt, defaultValue, desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
		viper.SetDefault(key, defaultValue)
	}

	{
		const (
			key         = config.KeyCheckTags
			longOpt     = "checks-tags"
			envVar      = release.ENVPREFIX + "_CHECKS_TAGS"
			description = "Tags added to every emission, comma separated list of key:value pairs"
		)

		RootCmd.PersistentFlags().String(longOpt, "", desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
	}

	//
	// Miscellenous
	//
	{
		const (
			key          = config.KeyDebug
			longOpt      = "debug"
			shortOpt     = "d"
			envVar       = release.ENVPREFIX + "_DEBUG"
			description  = "Enable debug messages"
			defaultValue = defaults.Debug
		)

		RootCmd.PersistentFlags().BoolP(longOpt, shortOpt, defaultValue, desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
		viper.SetDefault(key, defaultValue)
	}

	{
		const (
			key          = config.KeyDebugCGM
			longOpt      = "debug-cgm"
			envVar       = release.ENVPREFIX + "_DEBUG_CGM"
			description  = "Enable CGM debug messages"
			defaultValue = false
		)

		RootCmd.PersistentFlags().Bool(longOpt, defaultValue, desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
		viper.SetDefault(key, defaultValue)
	}

	{
		const (
			key          = config.KeyLogLevel
			longOpt      = "log-level"
			envVar       = release.ENVPREFIX + "_LOG_LEVEL"
			description  = "Log level [(panic|fatal|error|warn|info|debug|disabled)]"
			defaultValue = defaults.LogLevel
		)

		RootCmd.PersistentFlags().String(longOpt, defaultValue, desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
		viper.SetDefault(key, defaultValue)
	}

	{
		const (
			key          = config.KeyLogPretty
			longOpt      = "log-pretty"
			envVar       = release.ENVPREFIX + "_LOG_PRETTY"
			description  = "Output formatted/colored log lines [ignored on windows]"
			defaultValue = defaults.LogPretty
		)

		RootCmd.PersistentFlags().Bool(longOpt, defaultValue, desc(description, envVar))
		if err := viper.BindPFlag(key, RootCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
		viper.SetDefault(key, defaultValue)
	}

	{
		const (
			key          = config.KeyShowVersion
			longOpt      = "version"
			shortOpt     = "V"
			defaultValue = false
			description  = "Show version and exit"
		)
		RootCmd.Flags().BoolP(longOpt, shortOpt, defaultValue, description)
		if err := viper.BindPFlag(key, RootCmd.Flags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
	}

	{
		const (
			key         = config.KeyShowConfig
			longOpt     = "show-config"
			description = "Show config (json|toml|yaml) and exit"
		)

		RootCmd.Flags().String(longOpt, "", description)
		if err := viper.BindPFlag(key, RootCmd.Flags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
	}
}

// initLogging initializes zerolog
func initLogging(cmd *cobra.Command, args []string) error {
	//
	// Enable formatted output
	//
	if viper.GetBool(config.KeyLogPretty) {
		if runtime.GOOS != "windows" {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		} else {
			log.Warn().Msg("log-pretty not applicable on this platform")
		}
	}

	//
	// Enable debug logging, if requested
	// otherwise, default to info level and set custom level, if specified
	//
	if viper.GetBool(config.KeyDebug) {
		viper.Set(config.KeyLogLevel, "debug")
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Debug().Msg("--debug flag, forcing debug log level")
	} else if viper.IsSet(config.KeyLogLevel) {
		level := viper.GetString(config.KeyLogLevel)

		switch level {
		case "panic":
			zerolog.SetGlobalLevel(zerolog.PanicLevel)
		case "fatal":
			zerolog.SetGlobalLevel(zerolog.FatalLevel)
		case "error":
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		case "warn":
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		case "info":
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		case "debug":
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		case "disabled":
			zerolog.SetGlobalLevel(zerolog.Disabled)
		default:
			return errors.Errorf("Unknown log level (%s)", level)
		}

		log.Debug().Str("log-level", level).Msg("Logging level")
	}

	return nil
}

// initConfig reads in config file and/or ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(defaults.EtcPath)
		viper.AddConfigPath(".")
		viper.SetConfigName(release.NAME)
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		f := viper.ConfigFileUsed()
		if f != "" {
			log.Fatal().Err(err).Str("config_file", f).Msg("Unable to load config file")
		}
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal().
			Err(err).
			Msg("Unable to start")
	}
}
