// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	cgm "github.com/circonus-labs/circonus-gometrics/v3"
	appstats "github.com/maier/go-appstats"
)

// run handles requests to execute checks and return the metrics emitted
// handles /, /run, or /run/<type|instance id>
func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/run"), "/")

	if id != "" && !s.checks.IsCheck(id) {
		appstats.IncrementInt("requests_bad")
		s.logger.Warn().Str("id", id).Msg("unknown item requested")
		http.NotFound(w, r)
		return
	}

	// NOTE: errors from Run are already logged per instance and reported
	//       as CRITICAL service checks, they are not exposed to callers
	if err := s.checks.Run(r.Context(), id); err != nil {
		s.logger.Debug().Err(err).Str("id", id).Msg("run")
	}

	metrics := cgm.Metrics{}
	if m := s.checks.Flush(); m != nil {
		for name, metric := range *m {
			metrics[name] = metric
		}
	}
	if id == "" {
		s.agentStats(metrics, []string{"source:circonus-checks"})
	}

	lastMetricsmu.Lock()
	lastMetrics.metrics = &metrics
	lastMetrics.ts = time.Now()
	lastMetricsmu.Unlock()

	s.encodeResponse(&metrics, w, r)
}

// encodeResponse takes care of encoding the response to an HTTP request for metrics.
// The broker does not handle chunk encoded data correctly, the response is
// gzip compressed when the Accept-Encoding header allows it.
func (s *Server) encodeResponse(m *cgm.Metrics, w http.ResponseWriter, r *http.Request) {
	// basically, turn off chunking
	w.Header().Set("Transfer-Encoding", "identity")
	w.Header().Set("Content-Type", "application/json")

	acceptedEncodings := r.Header.Get("Accept-Encoding")
	useGzip := strings.Contains(acceptedEncodings, "*") || strings.Contains(acceptedEncodings, "gzip")

	jsonData, err := json.Marshal(m)
	if err != nil {
		// log the error and respond with empty metrics
		s.logger.Error().Err(err).Msg("encoding metrics to JSON for response")
		jsonData = []byte("{}")
	}
	data := jsonData

	if useGzip {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err := gz.Write(jsonData)
		gz.Close()
		if err != nil {
			s.logger.Error().Err(err).Msg("compressing metrics")
		} else {
			w.Header().Set("Content-Encoding", "gzip")
			data = buf.Bytes()
		}
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		s.logger.Error().Err(err).Msg("writing metrics to response")
		return
	}

	s.logger.Info().Msgf("sent %d metrics", len(*m))
}

// inventory returns the configured instances and their last run stats
func (s *Server) inventory(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(s.checks.Inventory())
	if err != nil {
		s.logger.Error().Err(err).Msg("encoding inventory")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		s.logger.Error().Err(err).Msg("writing inventory")
	}
}

// stats returns the expvar application stats
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	expvar.Handler().ServeHTTP(w, r)
}

// promOutput returns the last metrics in prom format
func (s *Server) promOutput(w http.ResponseWriter, r *http.Request) {
	lastMetricsmu.Lock()
	metrics := lastMetrics.metrics
	ms := lastMetrics.ts.UnixNano() / int64(time.Millisecond)
	lastMetricsmu.Unlock()

	if metrics == nil || len(*metrics) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	names := make([]string, 0, len(*metrics))
	for name := range *metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	for _, name := range names {
		s.metricToPromFormat(w, name, ms, (*metrics)[name])
	}
}

func (s *Server) metricToPromFormat(w io.Writer, name string, ts int64, metric cgm.Metric) {
	l := s.logger.With().Str("op", "prom export").Logger()
	sv := fmt.Sprintf("%v", metric.Value)
	var line string
	switch metric.Type {
	case "i", "I", "l", "L":
		v, err := strconv.ParseInt(sv, 10, 64)
		if err != nil {
			l.Error().Err(err).Str("metric", name).Msg("conv int64")
			return
		}
		line = fmt.Sprintf("%s %d %d\n", name, v, ts)
	case "n":
		v, err := strconv.ParseFloat(sv, 64)
		if err != nil {
			l.Error().Err(err).Str("metric", name).Msg("conv float64")
			return
		}
		line = fmt.Sprintf("%s %f %d\n", name, v, ts)
	case "h", "H":
		l.Debug().Str("metric", name).Msg("histogram != [prom]histogram(percentile), skipping")
		return
	default:
		l.Warn().Str("type", metric.Type).Str("metric", name).Msg("unsupported metric type")
		return
	}
	if _, err := io.WriteString(w, line); err != nil {
		l.Error().Err(err).Msg("writing prom output")
	}
}
