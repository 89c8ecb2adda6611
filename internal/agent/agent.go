// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package agent runs the checks behind the http listener
package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/circonus-labs/circonus-checks/internal/checks"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/release"
	"github.com/circonus-labs/circonus-checks/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Agent holds the main circonus-checks process.
type Agent struct {
	group        *errgroup.Group
	groupCtx     context.Context
	groupCancel  context.CancelFunc
	checks       *checks.Checks
	listenServer *server.Server
	signalCh     chan os.Signal
	logger       zerolog.Logger
}

// New returns a new agent instance.
func New() (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	a := Agent{
		group:       g,
		groupCtx:    gctx,
		groupCancel: cancel,
		signalCh:    make(chan os.Signal, 10),
		logger:      log.With().Str("pkg", "agent").Logger(),
	}

	if err := config.Validate(); err != nil {
		cancel()
		return nil, fmt.Errorf("config validate: %w", err)
	}

	opts, err := checks.OptionsFromConfig()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("checks options: %w", err)
	}

	a.checks, err = checks.New(checks.Default(), opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("init checks: %w", err)
	}

	a.listenServer, err = server.New(a.groupCtx, a.checks)
	if err != nil {
		_ = a.checks.Close()
		cancel()
		return nil, fmt.Errorf("init server: %w", err)
	}

	a.signalNotifySetup()

	return &a, nil
}

// Start the agent, blocks until it is stopped.
func (a *Agent) Start() error {
	a.group.Go(a.handleSignals)
	a.group.Go(a.listenServer.Start)

	a.logger.Debug().
		Int("pid", os.Getpid()).
		Str("name", release.NAME).
		Str("ver", release.VERSION).Msg("Starting wait")

	err := a.group.Wait()

	if cerr := a.checks.Close(); cerr != nil {
		a.logger.Warn().Err(cerr).Msg("closing checks")
	}

	if err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	return nil
}

// Stop cleans up and shuts down the Agent.
func (a *Agent) Stop() {
	a.stopSignalHandler()
	a.groupCancel()

	a.logger.Debug().
		Int("pid", os.Getpid()).
		Str("name", release.NAME).
		Str("ver", release.VERSION).Msg("Stopped")
}

// stopSignalHandler disables the signal handler.
func (a *Agent) stopSignalHandler() {
	signal.Stop(a.signalCh)
	signal.Reset() // so a second ctrl-c will force immediate stop
}

// logInventory writes the state of every instance to the log.
func (a *Agent) logInventory() {
	for _, inv := range a.checks.Inventory() {
		a.logger.Info().
			Str("id", inv.ID).
			Str("state", inv.State.String()).
			Uint64("runs", inv.Runs).
			Uint64("errors", inv.Errors).
			Str("last_error", inv.LastError).
			Msg("inventory")
	}
}
