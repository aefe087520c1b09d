// Package scheduler runs winner resolution on a daily schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dailyshot/internal/contest"
	"dailyshot/internal/middleware"
	"dailyshot/internal/service"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 2 * time.Minute

// Resolver resolves a single contest day.
type Resolver interface {
	Resolve(ctx context.Context, day time.Time) (*service.Resolution, error)
}

// DailyResolver resolves the previous contest day on a cron schedule evaluated in the
// contest timezone.
type DailyResolver struct {
	resolver Resolver
	calendar *contest.Calendar
	cron     *cron.Cron
	entry    cron.EntryID
}

// NewDailyResolver parses schedule, a standard five-field cron expression.
func NewDailyResolver(resolver Resolver, calendar *contest.Calendar, schedule string) (*DailyResolver, error) {
	logger := cronLogger{l: middleware.Logger.With(slog.String("component", "scheduler"))}
	d := &DailyResolver{
		resolver: resolver,
		calendar: calendar,
		cron: cron.New(
			cron.WithLocation(calendar.Location()),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
			cron.WithLogger(logger),
		),
	}

	id, err := d.cron.AddFunc(schedule, func() {
		if _, err := d.ResolveYesterday(context.Background()); err != nil {
			logger.Error(err, "scheduled resolution failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid resolve schedule %q: %w", schedule, err)
	}
	d.entry = id
	return d, nil
}

// ResolveYesterday resolves the contest day that ended most recently.
func (d *DailyResolver) ResolveYesterday(ctx context.Context) (*service.Resolution, error) {
	return d.ResolveDay(ctx, d.calendar.Yesterday())
}

// ResolveDay resolves day with a bounded timeout and logs the outcome.
func (d *DailyResolver) ResolveDay(ctx context.Context, day time.Time) (*service.Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	res, err := d.resolver.Resolve(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", contest.Format(day), err)
	}

	attrs := []any{slog.String("date", res.Date), slog.String("status", string(res.Status))}
	if res.Winner != nil {
		attrs = append(attrs, slog.Uint64("post_id", uint64(res.Winner.ID)))
	}
	middleware.Logger.InfoContext(ctx, "contest day resolved", attrs...)
	return res, nil
}

// Start resolves yesterday immediately, then runs on schedule until Stop.
func (d *DailyResolver) Start(ctx context.Context) {
	if _, err := d.ResolveYesterday(ctx); err != nil {
		middleware.Logger.ErrorContext(ctx, "startup resolution failed", slog.String("error", err.Error()))
	}
	d.cron.Start()
	middleware.Logger.InfoContext(ctx, "resolver scheduled", slog.Time("next_run", d.NextRun()))
}

// NextRun reports when the job fires next. Zero before Start.
func (d *DailyResolver) NextRun() time.Time {
	return d.cron.Entry(d.entry).Next
}

// Stop halts scheduling and waits for a running job to finish or ctx to expire.
func (d *DailyResolver) Stop(ctx context.Context) error {
	done := d.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
