// Copyright © 2018 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package api is a client for the circonus-checks HTTP interface.
package api

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
)

// Client defines the circonus-checks api client configuration.
type Client struct {
	agentURL *url.URL
	idVal    *regexp.Regexp
	client   *http.Client
}

// Metric defines an individual metric.
type Metric struct {
	Value interface{} `json:"_value"`
	Type  string      `json:"_type"`
}

// Metrics holds the aggregated metrics keyed by stream tagged name.
type Metrics map[string]Metric

// Inventory defines the list of configured check instances.
type Inventory []Check

// Check defines a configured check instance.
type Check struct {
	ID              string `json:"id"` // <type>:<name> or <type>:<index>
	Type            string `json:"type"`
	State           string `json:"state"`
	ServiceCheck    string `json:"service_check"`
	LastError       string `json:"last_error"`
	LastMetrics     int    `json:"last_metrics"`
	LastRunDuration string `json:"last_run_duration"`
	LastRunEnd      string `json:"last_run_end"`
	LastRunStart    string `json:"last_run_start"`
	Runs            uint64 `json:"runs"`
	Errors          uint64 `json:"errors"`
}

var (
	errInvalidAgentURL     = fmt.Errorf("invalid agent URL (empty)")
	errInvalidRequestPath  = fmt.Errorf("invalid request path (empty)")
	errInvalidHTTPResponse = fmt.Errorf("invalid HTTP response")
	errInvalidCheckID      = fmt.Errorf("invalid check ID")
)

// New creates a new circonus-checks api client.
func New(agentURL string) (*Client, error) {
	if agentURL == "" {
		return nil, errInvalidAgentURL
	}

	u, err := url.Parse(agentURL)
	if err != nil {
		return nil, fmt.Errorf("url parse: %w", err)
	}
	iv := regexp.MustCompile(`^[a-zA-Z0-9_:.-]+$`) // e.g. mysql or mysql:primary

	// no client timeout, requests are bounded by ctx
	return &Client{agentURL: u, idVal: iv, client: &http.Client{}}, nil
}
