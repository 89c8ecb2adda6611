// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// Explainer runs execution plan queries on the connection of a client.
type Explainer interface {
	UseSchema(ctx context.Context, schema string) error
	Explain(ctx context.Context, strategy Strategy, procedure, statement string) (string, error)
}

// sqlClient is a single server connection. Every query of a run goes
// through the same connection so USE affects the explain that follows.
type sqlClient struct {
	cfg  *driver.Config
	db   *sql.DB
	conn *sql.Conn
}

func newSQLClient(cfg *driver.Config) check.Client {
	return &sqlClient{cfg: cfg}
}

func (c *sqlClient) Connect(ctx context.Context) error {
	connector, err := driver.NewConnector(c.cfg)
	if err != nil {
		return errors.Wrap(err, "creating connector")
	}
	c.db = sql.OpenDB(connector)
	c.db.SetMaxOpenConns(1)

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return err
	}
	c.conn = conn
	return nil
}

func (c *sqlClient) Execute(ctx context.Context, query string) check.Outcome {
	if c.conn == nil {
		return check.Fault(errors.New("not connected"))
	}
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return check.Fault(err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return check.Fault(err)
	}
	return check.RowsOf(out)
}

func (c *sqlClient) UseSchema(ctx context.Context, schema string) error {
	_, err := c.conn.ExecContext(ctx, "USE `"+strings.ReplaceAll(schema, "`", "``")+"`")
	return err
}

func (c *sqlClient) Explain(ctx context.Context, strategy Strategy, procedure, statement string) (string, error) {
	var plan sql.NullString
	var err error
	switch strategy {
	case StrategyStatement:
		err = c.conn.QueryRowContext(ctx, "EXPLAIN FORMAT=json "+statement).Scan(&plan)
	default:
		err = c.conn.QueryRowContext(ctx, "CALL "+procedure+"(?)", statement).Scan(&plan)
	}
	if err != nil {
		return "", err
	}
	return plan.String, nil
}

func (c *sqlClient) Close() error {
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	if c.db != nil {
		if cerr := c.db.Close(); err == nil {
			err = cerr
		}
		c.db = nil
	}
	return err
}

// scanRows reads every row into a column name keyed map. Byte slices are
// converted to strings.
func scanRows(rows *sql.Rows) ([]mapping.Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []mapping.Row{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(mapping.Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = vals[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// fold turns name/value rows (SHOW STATUS, SHOW VARIABLES) into one row.
func fold(rows []mapping.Row, into mapping.Row) {
	for _, r := range rows {
		var name, value interface{}
		for k, v := range r {
			switch strings.ToLower(k) {
			case "variable_name":
				name = v
			case "value":
				value = v
			}
		}
		if s, ok := name.(string); ok && s != "" {
			into[s] = value
		}
	}
}
