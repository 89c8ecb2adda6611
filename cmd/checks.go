// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/circonus-labs/circonus-checks/api"
	"github.com/circonus-labs/circonus-checks/internal/checks"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/config/defaults"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	checkID  string
	agentURL string
)

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Inspect and run the configured integration checks",
}

var checksRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run checks once and print the emissions as JSON",
	Long: `Runs every configured instance (or only those matching --id, an
instance id such as mysql:primary or a check type such as mysql)
once and prints the metrics, service checks and events emitted.`,
	Run: func(cmd *cobra.Command, args []string) {
		c, err := loadChecks()
		if err != nil {
			log.Fatal().Err(err).Msg("loading checks")
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		runErr := runChecks(ctx, c, checkID, os.Stdout)
		if errors.Is(runErr, checks.ErrUnknownInstance) {
			log.Fatal().Str("id", checkID).Msg("unknown check")
		}
		if runErr != nil {
			log.Error().Err(runErr).Msg("run")
			_ = c.Close()
			os.Exit(1)
		}
	},
}

var checksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured check instance ids",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := loadChecks()
		if err != nil {
			log.Fatal().Err(err).Msg("loading checks")
		}
		defer c.Close()

		for _, id := range c.IDs() {
			fmt.Println(id)
		}
	},
}

var checksStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the check inventory of a running agent",
	Run: func(cmd *cobra.Command, args []string) {
		client, err := api.New(agentURL)
		if err != nil {
			log.Fatal().Err(err).Msg("agent client")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		inv, err := client.Inventory(ctx)
		if err != nil {
			log.Fatal().Err(err).Str("agent", agentURL).Msg("inventory")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(inv); err != nil {
			log.Fatal().Err(err).Msg("encoding inventory")
		}
	},
}

func init() {
	checksRunCmd.Flags().StringVar(&checkID, "id", "", "Instance id or check type to run (default all)")
	checksStatusCmd.Flags().StringVar(&agentURL, "agent-url", "http://127.0.0.1"+defaults.Listen+"/", "URL of the running agent")

	checksCmd.AddCommand(checksRunCmd)
	checksCmd.AddCommand(checksListCmd)
	checksCmd.AddCommand(checksStatusCmd)
	RootCmd.AddCommand(checksCmd)
}

// loadChecks builds the check manager from the running configuration.
func loadChecks() (*checks.Checks, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	opts, err := checks.OptionsFromConfig()
	if err != nil {
		return nil, err
	}
	return checks.New(checks.Default(), opts)
}

// runChecks runs id once, recording everything emitted, and writes the
// recording to w. The recording is written even when some instances fail.
func runChecks(ctx context.Context, c *checks.Checks, id string, w io.Writer) error {
	rec := sink.NewRecorder()
	runErr := c.Run(ctx, id, rec)
	if errors.Is(runErr, checks.ErrUnknownInstance) {
		return runErr
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec.Snapshot()); err != nil {
		return errors.Wrap(err, "encoding emissions")
	}

	return runErr
}
