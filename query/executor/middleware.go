package executor

import (
	"context"
	"log/slog"
	"time"
)

// QueryEvent describes one query execution.
type QueryEvent struct {
	Query    string
	Args     []any
	Rows     int
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware intercepts a query. It must call next exactly once to run the
// rest of the chain and the query itself.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// run executes exec through the middleware chain.
func (e *Executor) run(ctx context.Context, query string, args []any, exec func(*QueryEvent) error) error {
	event := &QueryEvent{
		Query: query,
		Args:  args,
		Start: time.Now(),
	}

	index := 0
	var next func() error
	next = func() error {
		if index >= len(e.middlewares) {
			err := exec(event)
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}
		mw := e.middlewares[index]
		index++
		return mw(ctx, event, next)
	}
	return next()
}

// LoggingMiddleware logs each query at debug level and failures at error
// level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		logger.DebugContext(ctx, "executing query", "sql", event.Query, "args", len(event.Args))
		err := next()
		if err != nil {
			logger.ErrorContext(ctx, "query failed", "sql", event.Query, "error", err)
		} else {
			logger.DebugContext(ctx, "query completed", "duration", event.Duration)
		}
		return err
	}
}

// TimingMiddleware reports the duration of every query.
func TimingMiddleware(onTiming func(query string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Query, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware reports failed queries.
func ErrorMiddleware(onError func(query string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Query, err)
		}
		return err
	}
}
