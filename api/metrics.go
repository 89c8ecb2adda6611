// Copyright © 2018 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// Run triggers one or all checks and returns the metrics aggregated since
// the previous run.
// NOTE: the agent treats this like any other client (e.g. a broker), the
//
//	metrics returned are no longer available to the next caller.
func (c *Client) Run(ctx context.Context, checkID string) (*Metrics, error) {
	rpath := "/run"
	if checkID != "" {
		if !c.idVal.MatchString(checkID) {
			return nil, fmt.Errorf("%s: %w", checkID, errInvalidCheckID)
		}
		rpath += "/" + checkID
	}

	data, err := c.get(ctx, rpath)
	if err != nil {
		return nil, err
	}

	var v Metrics
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("json parse - metrics: %w", err)
	}

	return &v, nil
}
