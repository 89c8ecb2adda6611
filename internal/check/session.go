// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package check

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client is a source client: the adapter between a check and the service
// it polls. Clients never retry on their own.
type Client interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, query string) Outcome
	Close() error
}

// Session owns the client of one instance. A persistent session keeps the
// client connected across runs until Invalidate, a failed run or Close.
// Otherwise every Do opens, uses and closes a fresh client.
type Session struct {
	open       func() Client
	persistent bool
	client     Client
	logger     zerolog.Logger
	sync.Mutex
}

// NewSession returns a session creating clients with open.
func NewSession(open func() Client, persistent bool, logger zerolog.Logger) *Session {
	return &Session{open: open, persistent: persistent, logger: logger}
}

// Do runs fn with a connected client. Connection failures are returned as
// *ConnectError. The client is closed on every exit path unless the
// session is persistent and fn succeeded.
func (s *Session) Do(ctx context.Context, fn func(c Client) error) error {
	s.Lock()
	defer s.Unlock()

	c := s.client
	if c == nil {
		c = s.open()
		if err := c.Connect(ctx); err != nil {
			if cerr := c.Close(); cerr != nil {
				s.logger.Debug().Err(cerr).Msg("closing client after failed connect")
			}
			return &ConnectError{Err: err}
		}
		if s.persistent {
			s.client = c
		}
	}

	err := fn(c)

	if !s.persistent || err != nil {
		if s.persistent {
			s.logger.Debug().Err(err).Msg("invalidating persistent client")
		}
		s.client = nil
		if cerr := c.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("closing client")
		}
	}

	return err
}

// Query runs a single query. Connection failures become a Fault.
func (s *Session) Query(ctx context.Context, query string) Outcome {
	var out Outcome
	err := s.Do(ctx, func(c Client) error {
		out = c.Execute(ctx, query)
		return out.Err()
	})
	if err != nil && !out.IsFault() {
		return Fault(err)
	}
	return out
}

// Invalidate drops a persistent client, it is reconnected on the next Do.
func (s *Session) Invalidate() {
	s.Lock()
	defer s.Unlock()
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("closing client")
	}
	s.client = nil
}

// Connected reports whether a persistent client is held.
func (s *Session) Connected() bool {
	s.Lock()
	defer s.Unlock()
	return s.client != nil
}

// Close releases a persistent client.
func (s *Session) Close() error {
	s.Lock()
	defer s.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	if err != nil {
		return errors.Wrap(err, "closing client")
	}
	return nil
}
