// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package check

// State of an instance.
type State int

// Instance states. CONFIGURED moves to COLLECTING for each run and back to
// IDLE when it ends. TEARDOWN is terminal.
const (
	Uninitialized State = iota
	Configured
	Collecting
	Idle
	Teardown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Collecting:
		return "collecting"
	case Idle:
		return "idle"
	case Teardown:
		return "teardown"
	}
	return "invalid"
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// canTransition reports whether from -> to is allowed.
func canTransition(from, to State) bool {
	switch to {
	case Configured:
		return from == Uninitialized
	case Collecting:
		return from == Configured || from == Idle
	case Idle:
		return from == Collecting
	case Teardown:
		return from != Teardown
	}
	return false
}
