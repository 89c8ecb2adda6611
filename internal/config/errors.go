// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is matched (errors.Is) by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// InvalidError names the offending option of a rejected configuration.
// Configuration errors are raised before any I/O and are never retried.
type InvalidError struct {
	Key    string
	Reason string
	Err    error
}

// Invalid returns a configuration error for key.
func Invalid(key, reason string) error {
	return &InvalidError{Key: key, Reason: reason}
}

// Invalidf returns a configuration error for key with a formatted reason.
func Invalidf(key, format string, args ...interface{}) error {
	return &InvalidError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

func (e *InvalidError) Error() string {
	msg := fmt.Sprintf("invalid configuration (%s)", e.Key)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports InvalidError as an ErrInvalid.
func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalid
}

func (e *InvalidError) Unwrap() error {
	return e.Err
}
