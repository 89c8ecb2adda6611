// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/config/defaults"
	"github.com/circonus-labs/circonus-checks/internal/release"
	"github.com/circonus-labs/circonus-checks/internal/wheels"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var wheelsCmd = &cobra.Command{
	Use:   "wheels",
	Short: "Publish python dependency wheels and produce lock files",
}

var wheelsUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload built and external wheels and rebuild the simple index",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		b, closer, err := wheelsBuilder(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("wheels")
		}
		defer closer()

		sum, err := b.Upload(ctx, viper.GetString(config.KeyWheelsTargetsDir))
		if err != nil {
			log.Fatal().Err(err).Msg("upload")
		}
		log.Info().Int("uploaded", len(sum.Uploaded)).Int("skipped", len(sum.Skipped)).Msg("upload complete")
	},
}

var wheelsLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Resolve frozen requirements to published wheels and write lock files",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		outDir := viper.GetString(config.KeyWheelsOutputDir)
		if outDir == "" {
			log.Fatal().Msg("--output-dir is required")
		}

		b, closer, err := wheelsBuilder(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("wheels")
		}
		defer closer()

		if err := b.Lock(ctx, viper.GetString(config.KeyWheelsTargetsDir), outDir); err != nil {
			log.Fatal().Err(err).Msg("lock")
		}
		log.Info().Str("dir", outDir).Msg("lock files written")
	},
}

func init() {
	{
		const (
			key         = config.KeyWheelsTargetsDir
			longOpt     = "targets-dir"
			envVar      = release.ENVPREFIX + "_WHEELS_TARGETS_DIR"
			description = "Directory of per target build outputs (<target>/py*/...)"
		)

		wheelsCmd.PersistentFlags().String(longOpt, "", desc(description, envVar))
		if err := viper.BindPFlag(key, wheelsCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
	}

	{
		const (
			key          = config.KeyWheelsBucket
			longOpt      = "bucket"
			envVar       = release.ENVPREFIX + "_WHEELS_BUCKET"
			description  = "Storage bucket holding the wheel index"
			defaultValue = defaults.WheelsBucket
		)

		wheelsCmd.PersistentFlags().String(longOpt, defaultValue, desc(description, envVar))
		if err := viper.BindPFlag(key, wheelsCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
		viper.SetDefault(key, defaultValue)
	}

	{
		const (
			key         = config.KeyWheelsStorageURL
			longOpt     = "storage-url"
			envVar      = release.ENVPREFIX + "_WHEELS_STORAGE_URL"
			description = "Public URL the bucket is served from (default https://storage.googleapis.com/<bucket>)"
		)

		wheelsCmd.PersistentFlags().String(longOpt, "", desc(description, envVar))
		if err := viper.BindPFlag(key, wheelsCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
	}

	{
		const (
			key         = config.KeyWheelsCredentialsFile
			longOpt     = "credentials-file"
			envVar      = release.ENVPREFIX + "_WHEELS_CREDENTIALS_FILE"
			description = "Service account credentials (default application default credentials)"
		)

		wheelsCmd.PersistentFlags().String(longOpt, "", desc(description, envVar))
		if err := viper.BindPFlag(key, wheelsCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
	}

	{
		const (
			key         = config.KeyWheelsWorkflowID
			longOpt     = "workflow-id"
			envVar      = release.ENVPREFIX + "_WHEELS_WORKFLOW_ID"
			description = "Build workflow id used to tag built wheels"
		)

		wheelsCmd.PersistentFlags().String(longOpt, "", desc(description, envVar))
		if err := viper.BindPFlag(key, wheelsCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
	}

	{
		const (
			key          = config.KeyWheelsPythonVersion
			longOpt      = "python-version"
			envVar       = release.ENVPREFIX + "_WHEELS_PYTHON_VERSION"
			description  = "Python major.minor embedded in lock file names"
			defaultValue = defaults.WheelsPythonVersion
		)

		wheelsCmd.PersistentFlags().String(longOpt, defaultValue, desc(description, envVar))
		if err := viper.BindPFlag(key, wheelsCmd.PersistentFlags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
		viper.SetDefault(key, defaultValue)
	}

	{
		const (
			key         = config.KeyWheelsOutputDir
			longOpt     = "output-dir"
			envVar      = release.ENVPREFIX + "_WHEELS_OUTPUT_DIR"
			description = "Directory receiving resolved lock files and metadata.json"
		)

		wheelsLockCmd.Flags().String(longOpt, "", desc(description, envVar))
		if err := viper.BindPFlag(key, wheelsLockCmd.Flags().Lookup(longOpt)); err != nil {
			bindFlagError(longOpt, err)
		}
		if err := viper.BindEnv(key, envVar); err != nil {
			bindEnvError(envVar, err)
		}
	}

	wheelsCmd.AddCommand(wheelsUploadCmd)
	wheelsCmd.AddCommand(wheelsLockCmd)
	RootCmd.AddCommand(wheelsCmd)
}

// wheelsBuilder opens the configured bucket and returns a builder for the
// configured workflow. The returned func releases the bucket client.
func wheelsBuilder(ctx context.Context) (*wheels.Builder, func(), error) {
	if err := config.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "config")
	}
	if viper.GetString(config.KeyWheelsTargetsDir) == "" {
		return nil, nil, errors.New("--targets-dir is required")
	}

	bucket, err := wheels.NewGCSBucket(ctx,
		viper.GetString(config.KeyWheelsBucket),
		viper.GetString(config.KeyWheelsStorageURL),
		viper.GetString(config.KeyWheelsCredentialsFile))
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := bucket.Close(); err != nil {
			log.Warn().Err(err).Msg("closing bucket client")
		}
	}

	b, err := wheels.New(bucket, viper.GetString(config.KeyWheelsWorkflowID), log.With().Str("pkg", "wheels").Logger())
	if err != nil {
		closer()
		return nil, nil, err
	}
	b.SetPythonVersion(viper.GetString(config.KeyWheelsPythonVersion))

	return b, closer, nil
}
