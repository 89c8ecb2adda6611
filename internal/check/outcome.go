// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package check

import "github.com/circonus-labs/circonus-checks/internal/mapping"

type outcomeKind int

const (
	kindEmpty outcomeKind = iota
	kindRows
	kindFault
)

// Outcome is the result of a source client query: Empty, Rows or Fault.
// The zero value is Empty.
type Outcome struct {
	kind outcomeKind
	rows []mapping.Row
	err  error
}

// Empty is a successful query that returned nothing.
func Empty() Outcome {
	return Outcome{kind: kindEmpty}
}

// RowsOf is a successful query result. No rows is Empty.
func RowsOf(rows []mapping.Row) Outcome {
	if len(rows) == 0 {
		return Empty()
	}
	return Outcome{kind: kindRows, rows: rows}
}

// Fault is a failed query. A nil err is Empty.
func Fault(err error) Outcome {
	if err == nil {
		return Empty()
	}
	return Outcome{kind: kindFault, err: err}
}

// IsEmpty reports a successful query without rows.
func (o Outcome) IsEmpty() bool { return o.kind == kindEmpty }

// IsFault reports a failed query.
func (o Outcome) IsFault() bool { return o.kind == kindFault }

// Rows returns the rows, nil unless the outcome holds rows.
func (o Outcome) Rows() []mapping.Row { return o.rows }

// Err returns the failure, nil unless the outcome is a fault.
func (o Outcome) Err() error { return o.err }

// First returns the first row, false when there is none.
func (o Outcome) First() (mapping.Row, bool) {
	if len(o.rows) == 0 {
		return nil, false
	}
	return o.rows[0], true
}

func (o Outcome) String() string {
	switch o.kind {
	case kindRows:
		return "rows"
	case kindFault:
		return "fault"
	}
	return "empty"
}
