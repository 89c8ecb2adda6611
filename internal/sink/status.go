// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package sink

import (
	"strings"

	"github.com/pkg/errors"
)

// Status of a service check. The numeric values are the wire values.
type Status int

// Service check statuses.
const (
	OK       Status = 0
	Warning  Status = 1
	Critical Status = 2
	Unknown  Status = 3
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus maps a status name (any case) to a Status.
func ParseStatus(name string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "OK":
		return OK, nil
	case "WARNING", "WARN":
		return Warning, nil
	case "CRITICAL", "CRIT":
		return Critical, nil
	case "UNKNOWN":
		return Unknown, nil
	}
	return Unknown, errors.Errorf("unknown status (%s)", name)
}

// Severity orders statuses OK < UNKNOWN < WARNING < CRITICAL.
func (s Status) Severity() int {
	switch s {
	case OK:
		return 0
	case Warning:
		return 2
	case Critical:
		return 3
	}
	return 1
}

// Worse returns the more severe of a and b, a on ties.
func Worse(a, b Status) Status {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// StatusMap translates raw source states to statuses. Lookups are case
// insensitive and anything not in the table is UNKNOWN.
type StatusMap map[string]Status

// NewStatusMap builds a StatusMap from a table of raw states.
func NewStatusMap(table map[string]Status) StatusMap {
	sm := make(StatusMap, len(table))
	for k, v := range table {
		sm[strings.ToLower(k)] = v
	}
	return sm
}

// Lookup returns the status for raw, UNKNOWN when raw is not mapped.
func (sm StatusMap) Lookup(raw string) Status {
	if s, ok := sm[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return Unknown
}
