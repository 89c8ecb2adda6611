// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package check defines the integration check contract: construction from
// configuration, bounded collection runs and the terminal service check
// reported for every monitored target.
package check

import (
	"context"
	"errors"

	"github.com/circonus-labs/circonus-checks/internal/ttlcache"
	"github.com/rs/zerolog"
)

// Check is one configured integration instance.
//
// Collect performs a single collection, emitting through r. It must honor
// ctx for every blocking call. Returning an error marks the run as a hard
// failure: the instance target is reported CRITICAL and the error is
// returned to the caller. Wrap the error with Soft to only log it.
//
// Close releases anything the check holds across runs (e.g. a persistent
// connection). It is called once, at teardown.
type Check interface {
	Collect(ctx context.Context, r *Reporter) error
	Close() error
}

// Targeter is implemented by checks naming their terminal service check.
// Checks that don't implement it report `<type>.can_connect`.
type Targeter interface {
	ServiceCheckName() string
}

// Deps carries the process wide resources handed to every factory. Shared
// registries are owned by the manager: created at start, cleared at teardown.
type Deps struct {
	Logger       zerolog.Logger
	BaseTags     []string
	AccessDenied *ttlcache.Cache // pids the agent may not inspect, shared across instances
}

var (
	// ErrAlreadyRunning a run of the instance is still in progress.
	ErrAlreadyRunning = errors.New("already running")

	// ErrTornDown the instance has been closed.
	ErrTornDown = errors.New("instance torn down")

	// ErrTimeout the run did not complete within the instance timeout.
	ErrTimeout = errors.New("run timed out")

	// ErrUnknownType no factory is registered for the check type.
	ErrUnknownType = errors.New("unknown check type")
)

// SoftError is a failure that is logged without failing the run.
type SoftError struct {
	Err error
}

func (e *SoftError) Error() string {
	return e.Err.Error()
}

func (e *SoftError) Unwrap() error {
	return e.Err
}

// Soft marks err as a soft failure. Soft(nil) is nil.
func Soft(err error) error {
	if err == nil {
		return nil
	}
	return &SoftError{Err: err}
}

// IsSoft reports whether err was marked with Soft.
func IsSoft(err error) bool {
	var se *SoftError
	return errors.As(err, &se)
}

// ConnectError is returned when a source client cannot be reached.
type ConnectError struct {
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Target == "" {
		return "connect: " + e.Err.Error()
	}
	return "connect " + e.Target + ": " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsConnect reports whether err is (or wraps) a ConnectError.
func IsConnect(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}
