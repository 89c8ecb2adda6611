// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package mysql

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/check"
	"github.com/circonus-labs/circonus-checks/internal/mapping"
	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/ttlcache"
	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Strategy is a way of obtaining an execution plan.
type Strategy string

// Explain strategies, in default preference order.
const (
	StrategyProcedure   Strategy = "PROCEDURE"
	StrategyFQProcedure Strategy = "FQ_PROCEDURE"
	StrategyStatement   Strategy = "STATEMENT"
)

// ErrorCode classifies why no plan was collected.
type ErrorCode string

// Explain error codes.
const (
	CodeDatabaseError   ErrorCode = "database_error"
	CodeNoPlansPossible ErrorCode = "no_plans_possible"
	CodeUseSchemaError  ErrorCode = "use_schema_error"
	CodeQueryTruncated  ErrorCode = "query_truncated"
)

// ExplainState is the outcome of an explain attempt. A state without a code
// records a working strategy.
type ExplainState struct {
	Strategy Strategy
	Code     ErrorCode
	Message  string
}

const (
	eventsStatementsTable = "events_statements_current"

	eventsStatementsQuery = "SELECT current_schema, sql_text, digest, digest_text, timer_wait / 1000 AS timer_wait_ns " +
		"FROM performance_schema.events_statements_current " +
		"WHERE sql_text IS NOT NULL AND event_name LIKE 'statement/%' " +
		"AND digest_text IS NOT NULL AND digest_text NOT LIKE 'EXPLAIN %' " +
		"ORDER BY timer_wait DESC"

	// statements cut at this length by performance_schema can't be explained
	maxStatementLength = 4096

	minStrategyTTL = 60 * time.Second
	maxStrategyTTL = 3600 * time.Second
)

var explainable = map[string]bool{
	"select":  true,
	"table":   true,
	"delete":  true,
	"insert":  true,
	"replace": true,
	"update":  true,
	"with":    true,
}

// errors after which a schema is not retried until the strategy cache expires
var nonRetryable = map[uint16]bool{
	1044: true, // access denied on database
	1046: true, // no database selected
	1049: true, // unknown database
	1305: true, // procedure does not exist
	1370: true, // no execute on procedure
}

type samplesOptions struct {
	Enabled                         bool          `json:"enabled"`
	CollectionInterval              time.Duration `json:"collection_interval"`
	ExplainProcedure                string        `json:"explain_procedure"`
	FullyQualifiedExplainProcedure  string        `json:"fully_qualified_explain_procedure"`
	CollectionStrategyCacheTTL      time.Duration `json:"collection_strategy_cache_ttl"`
	ExplainErrorsCacheTTL           time.Duration `json:"explain_errors_cache_ttl"`
	ExplainedQueriesPerHourPerQuery int           `json:"explained_queries_per_hour_per_query"`
}

// sampler collects execution plans for the statements currently running.
type sampler struct {
	procedure   string
	fqProcedure string
	strategyTTL time.Duration
	errorsTTL   time.Duration
	queryTTL    time.Duration
	strategies  *ttlcache.Cache // explain_state:<schema> -> ExplainState
	errorStates *ttlcache.Cache // <schema>|<signature> -> []ExplainState
	explained   *ttlcache.Cache // <schema>|<signature> recently explained
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

func newSampler(opts samplesOptions, logger zerolog.Logger) *sampler {
	if opts.CollectionInterval <= 0 {
		opts.CollectionInterval = time.Second
	}
	if opts.ExplainProcedure == "" {
		opts.ExplainProcedure = "explain_statement"
	}
	if opts.FullyQualifiedExplainProcedure == "" {
		opts.FullyQualifiedExplainProcedure = "circonus.explain_statement"
	}
	if opts.CollectionStrategyCacheTTL == 0 {
		opts.CollectionStrategyCacheTTL = 300 * time.Second
	}
	if opts.ExplainErrorsCacheTTL <= 0 {
		opts.ExplainErrorsCacheTTL = 2 * time.Hour
	}
	if opts.ExplainedQueriesPerHourPerQuery <= 0 {
		opts.ExplainedQueriesPerHourPerQuery = 60
	}

	return &sampler{
		procedure:   opts.ExplainProcedure,
		fqProcedure: opts.FullyQualifiedExplainProcedure,
		strategyTTL: ttlcache.Clamp("collection_strategy_cache_ttl", opts.CollectionStrategyCacheTTL, minStrategyTTL, maxStrategyTTL, logger),
		errorsTTL:   opts.ExplainErrorsCacheTTL,
		queryTTL:    45 * time.Minute / time.Duration(opts.ExplainedQueriesPerHourPerQuery),
		strategies:  ttlcache.New(),
		errorStates: ttlcache.New(),
		explained:   ttlcache.New(),
		limiter:     rate.NewLimiter(rate.Every(opts.CollectionInterval), 1),
		logger:      logger,
	}
}

// signature identifies a normalized statement.
func signature(digestText string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.Join(strings.Fields(digestText), " "))))
	return hex.EncodeToString(sum[:8])
}

func canExplain(statement string) bool {
	first := strings.SplitN(strings.TrimSpace(statement), " ", 2)[0]
	return explainable[strings.ToLower(first)]
}

// collect samples the running statements when the rate limiter allows it.
// Failures are logged and never fail the run.
func (s *sampler) collect(ctx context.Context, c check.Client, r *check.Reporter, tl []string) {
	if !s.limiter.Allow() {
		return
	}

	ex, ok := c.(Explainer)
	if !ok {
		s.logger.Warn().Msg("client cannot explain statements")
		return
	}

	start := time.Now()
	out := c.Execute(ctx, eventsStatementsQuery)
	if out.IsFault() {
		s.logger.Warn().Err(out.Err()).Msg("reading " + eventsStatementsTable)
		return
	}

	stl := append(append([]string(nil), tl...), "events_statements_table:"+eventsStatementsTable)
	submitted := 0
	for _, row := range out.Rows() {
		if ctx.Err() != nil {
			break
		}
		if s.sample(ctx, ex, row, r, tl) {
			submitted++
		}
	}

	r.Timing("mysql.statement_samples.collect.time", time.Since(start), stl...)
	r.Count("mysql.statement_samples.events_submitted", float64(submitted), stl...)
	r.Gauge("mysql.statement_samples.explained_statements_cache.len", float64(s.explained.Len()), stl...)
	r.Gauge("mysql.statement_samples.collection_strategy_cache.len", float64(s.strategies.Len()), stl...)
}

func str(row mapping.Row, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// sample explains one statement, emitting the plan as an event.
func (s *sampler) sample(ctx context.Context, ex Explainer, row mapping.Row, r *check.Reporter, tl []string) bool {
	statement := str(row, "sql_text")
	schema := str(row, "current_schema")
	digest := str(row, "digest_text")
	if statement == "" || digest == "" {
		return false
	}

	sig := signature(digest)
	key := schema + "|" + sig
	if _, seen := s.explained.Get(key); seen {
		return false
	}
	_ = s.explained.Set(key, true, s.queryTTL)

	plan, states, err := s.explain(ctx, ex, statement, schema, sig)
	if err != nil {
		s.logger.Warn().Err(err).Str("schema", schema).Msg("explaining statement")
		return false
	}

	for _, st := range states {
		r.Count("mysql.statement_samples.error", 1, append(append([]string(nil), tl...), fmt.Sprintf("error:explain-%s-%s", st.Code, st.Message))...)
	}
	if plan == "" {
		return false
	}

	r.Event(sink.Event{
		Title:          "MySQL execution plan",
		Text:           plan,
		AlertType:      sink.AlertInfo,
		SourceType:     "mysql",
		AggregationKey: sig,
		Tags:           mapping.EntityTags(tl, "schema", schema, "query_signature", sig),
	})

	return true
}

// explain tries the strategies in preference order: a strategy that worked
// for the schema before goes first. Errors which are not database errors
// are returned.
func (s *sampler) explain(ctx context.Context, ex Explainer, statement, schema, sig string) (string, []ExplainState, error) {
	if len(statement) >= maxStatementLength {
		return "", []ExplainState{{Code: CodeQueryTruncated, Message: fmt.Sprintf("truncated length: %d", len(statement))}}, nil
	}
	if !canExplain(statement) {
		return "", []ExplainState{{Code: CodeNoPlansPossible}}, nil
	}

	stateKey := "explain_state:" + schema
	queryKey := schema + "|" + sig

	st, err := s.useSchema(ctx, ex, schema, stateKey)
	if err != nil {
		return "", nil, err
	}
	if st != nil {
		return "", []ExplainState{*st}, nil
	}

	strategies := []Strategy{StrategyProcedure, StrategyFQProcedure, StrategyStatement}
	cached := s.cachedState(stateKey)
	if cached.Strategy != "" && cached.Code == "" {
		strategies = preferred(strategies, cached.Strategy)
	}

	optimal := StrategyFQProcedure
	if schema != "" {
		optimal = StrategyProcedure
	}
	optimalCached := cached.Strategy == optimal && cached.Code == ""
	if optimalCached {
		// the schema is set up, failures are specific to the statement
		if v, ok := s.errorStates.Get(queryKey); ok {
			return "", v.([]ExplainState), nil
		}
	}

	start := time.Now()
	states := []ExplainState{}
	for _, strategy := range strategies {
		if schema == "" && strategy == StrategyProcedure {
			continue
		}
		proc := s.procedure
		if strategy == StrategyFQProcedure {
			proc = s.fqProcedure
		}
		plan, err := ex.Explain(ctx, strategy, proc, statement)
		if err != nil {
			var merr *driver.MySQLError
			if !errors.As(err, &merr) {
				return "", nil, errors.Wrapf(err, "explain strategy %s", strategy)
			}
			states = append(states, ExplainState{Strategy: strategy, Code: CodeDatabaseError, Message: fmt.Sprintf("%d", merr.Number)})
			s.logger.Debug().Str("strategy", string(strategy)).Str("schema", schema).Uint16("code", merr.Number).Msg("explain failed")
			continue
		}
		if plan == "" {
			continue
		}
		_ = s.strategies.Set(stateKey, ExplainState{Strategy: strategy}, s.strategyTTL)
		s.logger.Debug().Str("strategy", string(strategy)).Str("schema", schema).Dur("took", time.Since(start)).Msg("collected execution plan")
		return plan, nil, nil
	}

	if optimalCached && len(states) > 0 {
		_ = s.errorStates.Set(queryKey, states, s.errorsTTL)
	}

	return "", states, nil
}

// useSchema switches the connection to schema. Non-retryable failures are
// cached for the schema.
func (s *sampler) useSchema(ctx context.Context, ex Explainer, schema, stateKey string) (*ExplainState, error) {
	if cached := s.cachedState(stateKey); cached.Code != "" {
		return &cached, nil
	}
	if schema == "" {
		return nil, nil
	}
	err := ex.UseSchema(ctx, schema)
	if err == nil {
		return nil, nil
	}
	var merr *driver.MySQLError
	if !errors.As(err, &merr) {
		return nil, errors.Wrapf(err, "use schema %s", schema)
	}
	st := ExplainState{Code: CodeUseSchemaError, Message: fmt.Sprintf("%d", merr.Number)}
	if nonRetryable[merr.Number] {
		_ = s.strategies.Set(stateKey, st, s.strategyTTL)
	}
	return &st, nil
}

func (s *sampler) cachedState(key string) ExplainState {
	if v, ok := s.strategies.Get(key); ok {
		return v.(ExplainState)
	}
	return ExplainState{}
}

func preferred(list []Strategy, first Strategy) []Strategy {
	out := []Strategy{first}
	for _, s := range list {
		if s != first {
			out = append(out, s)
		}
	}
	return out
}
