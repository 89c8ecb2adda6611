// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	driver "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

func newTestSampler() *sampler {
	return newSampler(samplesOptions{Enabled: true, CollectionInterval: time.Hour}, zerolog.Nop())
}

func TestCanExplain(t *testing.T) {
	t.Log("Testing canExplain")

	tt := []struct {
		statement string
		expected  bool
	}{
		{"SELECT * FROM t", true},
		{"  with x as (select 1) select * from x", true},
		{"update t set a = 1", true},
		{"CREATE TABLE t (a int)", false},
		{"", false},
	}

	for _, tst := range tt {
		t.Logf("\t%q", tst.statement)
		if canExplain(tst.statement) != tst.expected {
			t.Fatalf("expected %v", tst.expected)
		}
	}
}

func TestExplainStrategies(t *testing.T) {
	t.Log("Testing explain strategy selection")
	zerolog.SetGlobalLevel(zerolog.Disabled)
	ctx := context.Background()

	t.Log("\tfalls back and caches the working strategy")
	{
		s := newTestSampler()
		fc := newFakeClient()
		fc.explainErr[StrategyProcedure] = &driver.MySQLError{Number: 1305, Message: "PROCEDURE app.explain_statement does not exist"}
		fc.plans[StrategyFQProcedure] = `{"query_block":{}}`

		plan, states, err := s.explain(ctx, fc, "SELECT * FROM t", "app", "sig1")
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if plan == "" || len(states) != 0 {
			t.Fatalf("expected plan without error states, got %q %v", plan, states)
		}
		if got := s.cachedState("explain_state:app"); got.Strategy != StrategyFQProcedure {
			t.Fatalf("expected cached FQ_PROCEDURE, got %v", got)
		}

		fc.explains = nil
		if _, _, err := s.explain(ctx, fc, "SELECT * FROM u", "app", "sig2"); err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(fc.explains) != 1 || fc.explains[0] != StrategyFQProcedure {
			t.Fatalf("expected cached strategy tried first, got %v", fc.explains)
		}
	}

	t.Log("\tno schema skips PROCEDURE")
	{
		s := newTestSampler()
		fc := newFakeClient()
		fc.plans[StrategyStatement] = `{"query_block":{}}`
		fc.explainErr[StrategyFQProcedure] = &driver.MySQLError{Number: 1370, Message: "denied"}

		plan, _, err := s.explain(ctx, fc, "SELECT 1", "", "sig")
		if err != nil || plan == "" {
			t.Fatalf("expected plan, got %q (%v)", plan, err)
		}
		if len(fc.uses) != 0 {
			t.Fatalf("expected no USE, got %v", fc.uses)
		}
		for _, st := range fc.explains {
			if st == StrategyProcedure {
				t.Fatal("expected PROCEDURE to be skipped")
			}
		}
	}

	t.Log("\tnon-retryable use schema error is cached")
	{
		s := newTestSampler()
		fc := newFakeClient()
		fc.useErr["gone"] = &driver.MySQLError{Number: 1049, Message: "Unknown database 'gone'"}

		for i := 0; i < 2; i++ {
			_, states, err := s.explain(ctx, fc, "SELECT 1", "gone", "sig")
			if err != nil {
				t.Fatalf("expected no error, got (%s)", err)
			}
			if len(states) != 1 || states[0].Code != CodeUseSchemaError {
				t.Fatalf("expected use_schema_error, got %v", states)
			}
		}
		if len(fc.uses) != 1 {
			t.Fatalf("expected one USE attempt, got %d", len(fc.uses))
		}
		if len(fc.explains) != 0 {
			t.Fatalf("expected no explain attempts, got %v", fc.explains)
		}
	}

	t.Log("\tfailures cached once the optimal strategy is known")
	{
		s := newTestSampler()
		fc := newFakeClient()
		_ = s.strategies.Set("explain_state:app", ExplainState{Strategy: StrategyProcedure}, time.Minute)
		for _, st := range []Strategy{StrategyProcedure, StrategyFQProcedure, StrategyStatement} {
			fc.explainErr[st] = &driver.MySQLError{Number: 1064, Message: "syntax"}
		}

		_, states, err := s.explain(ctx, fc, "SELECT broken", "app", "sig")
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if len(states) != 3 {
			t.Fatalf("expected 3 error states, got %v", states)
		}
		fc.explains = nil
		_, states, _ = s.explain(ctx, fc, "SELECT broken", "app", "sig")
		if len(states) != 3 || len(fc.explains) != 0 {
			t.Fatalf("expected cached error states without explains, got %v %v", states, fc.explains)
		}
	}

	t.Log("\tunexplainable and truncated statements")
	{
		s := newTestSampler()
		fc := newFakeClient()
		_, states, _ := s.explain(ctx, fc, "CREATE TABLE t (a int)", "app", "sig")
		if len(states) != 1 || states[0].Code != CodeNoPlansPossible {
			t.Fatalf("expected no_plans_possible, got %v", states)
		}
		_, states, _ = s.explain(ctx, fc, "SELECT "+strings.Repeat("a", maxStatementLength), "app", "sig")
		if len(states) != 1 || states[0].Code != CodeQueryTruncated {
			t.Fatalf("expected query_truncated, got %v", states)
		}
	}

	t.Log("\tother errors are returned")
	{
		s := newTestSampler()
		fc := newFakeClient()
		fc.explainErr[StrategyProcedure] = errors.New("driver: bad connection")
		if _, _, err := s.explain(ctx, fc, "SELECT 1", "app", "sig"); err == nil {
			t.Fatal("expected error")
		}
	}
}

func TestSamplerCollect(t *testing.T) {
	t.Log("Testing sampler collect")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	fc := newFakeClient()
	fc.plans[StrategyProcedure] = `{"query_block":{"select_id":1}}`
	fc.results[eventsStatementsQuery] = check.RowsOf([]mapping.Row{
		{"current_schema": "app", "sql_text": "SELECT * FROM users WHERE id = 1", "digest_text": "SELECT * FROM users WHERE id = ?"},
		{"current_schema": "app", "sql_text": "SELECT * FROM users WHERE id = 2", "digest_text": "SELECT * FROM users WHERE id = ?"},
		{"current_schema": "app", "sql_text": "CREATE TABLE x (a int)", "digest_text": "CREATE TABLE x (a int)"},
	})

	s := newTestSampler()
	rec := sink.NewRecorder()
	r := check.NewReporter(rec, serviceCheckName, nil, zerolog.Nop())
	s.collect(context.Background(), fc, r, nil)

	t.Log("\tone plan per signature")
	{
		events := rec.Events()
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Text != `{"query_block":{"select_id":1}}` || events[0].SourceType != "mysql" {
			t.Fatalf("unexpected event %v", events[0])
		}
	}

	t.Log("\terror counted")
	{
		errs := rec.Metrics("mysql.statement_samples.error")
		if len(errs) != 1 {
			t.Fatalf("expected 1 error count, got %d", len(errs))
		}
	}

	t.Log("\trate limited")
	{
		rec.Reset()
		s.collect(context.Background(), fc, check.NewReporter(rec, serviceCheckName, nil, zerolog.Nop()), nil)
		if len(rec.Metrics()) != 0 || len(rec.Events()) != 0 {
			t.Fatal("expected nothing while rate limited")
		}
	}
}
