// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package postgres

import (
	"context"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

const closeTimeout = 5 * time.Second

// pgxClient is a single server connection.
type pgxClient struct {
	cfg  *pgx.ConnConfig
	conn *pgx.Conn
}

func newPgxClient(cfg *pgx.ConnConfig) check.Client {
	return &pgxClient{cfg: cfg}
}

func (c *pgxClient) Connect(ctx context.Context) error {
	conn, err := pgx.ConnectConfig(ctx, c.cfg)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *pgxClient) Execute(ctx context.Context, query string) check.Outcome {
	if c.conn == nil {
		return check.Fault(errors.New("not connected"))
	}
	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return check.Fault(err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return check.Fault(err)
	}
	out := make([]mapping.Row, 0, len(maps))
	for _, m := range maps {
		row := make(mapping.Row, len(m))
		for k, v := range m {
			row[k] = plain(v)
		}
		out = append(out, row)
	}
	return check.RowsOf(out)
}

func (c *pgxClient) Close() error {
	if c.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := c.conn.Close(ctx)
	c.conn = nil
	return err
}

// plain converts pgtype numerics to float64, everything else is kept.
func plain(v interface{}) interface{} {
	fv, ok := v.(pgtype.Float64Valuer)
	if !ok {
		return v
	}
	f, err := fv.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}
