// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package server exposes the checks over http
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/checks"
	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/circonus-labs/circonus-checks/internal/config/defaults"
	cgm "github.com/circonus-labs/circonus-gometrics/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

type httpServer struct {
	address *net.TCPAddr
	server  *http.Server
}

// Server defines the listening servers.
type Server struct {
	checks   *checks.Checks
	group    *errgroup.Group
	svrHTTP  []*httpServer
	groupCtx context.Context
	logger   zerolog.Logger
}

type previousMetrics struct {
	ts      time.Time
	metrics *cgm.Metrics
}

var (
	runPathRx       = regexp.MustCompile(`^/(run(/[a-zA-Z0-9_:.-]*)?)?$`)
	inventoryPathRx = regexp.MustCompile("^/inventory/?$")
	statsPathRx     = regexp.MustCompile("^/stats/?$")
	promPathRx      = regexp.MustCompile("^/prom/?$")
	lastMetrics     = &previousMetrics{}
	lastMetricsmu   sync.Mutex
)

// New creates a new instance of the listening servers.
func New(ctx context.Context, c *checks.Checks) (*Server, error) {
	if c == nil {
		return nil, errors.New("invalid checks (nil)")
	}

	g, gctx := errgroup.WithContext(ctx)
	s := Server{
		checks:   c,
		group:    g,
		groupCtx: gctx,
		logger:   log.With().Str("pkg", "server").Logger(),
	}

	serverList := viper.GetStringSlice(config.KeyListen)
	if len(serverList) == 0 {
		serverList = []string{defaults.Listen}
	}
	for idx, addr := range serverList {
		ta, err := config.ParseListen(addr)
		if err != nil {
			s.logger.Error().Err(err).Int("id", idx).Str("addr", addr).Msg("resolving address")
			return nil, fmt.Errorf("HTTP Server: %w", err)
		}

		svr := httpServer{
			address: ta,
			server: &http.Server{
				Addr:              ta.String(),
				Handler:           http.HandlerFunc(s.router),
				ReadHeaderTimeout: 10 * time.Second,
			},
		}
		svr.server.SetKeepAlivesEnabled(false)

		s.svrHTTP = append(s.svrHTTP, &svr)
	}

	return &s, nil
}

// Start main listening server(s), blocks until they stop or the context is done.
func (s *Server) Start() error {
	if len(s.svrHTTP) == 0 {
		return errors.New("no servers defined")
	}

	for _, svrHTTP := range s.svrHTTP {
		svr := svrHTTP
		s.group.Go(func() error {
			return s.startHTTP(svr)
		})
	}

	go func() {
		<-s.groupCtx.Done()
		s.Stop()
	}()

	return s.group.Wait() //nolint:wrapcheck
}

// Stop the servers in an orderly, graceful fashion.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, svrHTTP := range s.svrHTTP {
		s.logger.Info().Str("listen", svrHTTP.address.String()).Msg("stopping HTTP server")
		if err := svrHTTP.server.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("closing HTTP server")
		}
	}
}

func (s *Server) startHTTP(svr *httpServer) error {
	if svr == nil || svr.address == nil || svr.server == nil {
		s.logger.Debug().Msg("listen not configured, skipping server")
		return nil
	}

	s.logger.Info().Str("listen", svr.address.String()).Msg("Starting")
	if err := svr.server.ListenAndServe(); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP Server, stopping")
			return fmt.Errorf("HTTP server: %w", err)
		}
	}
	return nil
}

func (s *Server) router(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Msg("request")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case runPathRx.MatchString(r.URL.Path):
		s.run(w, r)
	case inventoryPathRx.MatchString(r.URL.Path):
		s.inventory(w, r)
	case statsPathRx.MatchString(r.URL.Path):
		s.stats(w, r)
	case promPathRx.MatchString(r.URL.Path):
		s.promOutput(w, r)
	default:
		s.logger.Warn().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Msg("Not found")
		http.NotFound(w, r)
	}
}
