// Command resolver crowns finished contest days outside the API process.
//
// With -date it resolves that single day and exits. Without it, it resolves yesterday
// and then keeps running on RESOLVE_CRON until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dailyshot/internal/cache"
	"dailyshot/internal/config"
	"dailyshot/internal/contest"
	"dailyshot/internal/database"
	"dailyshot/internal/middleware"
	"dailyshot/internal/notifications"
	"dailyshot/internal/repository"
	"dailyshot/internal/scheduler"
	"dailyshot/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	date := flag.String("date", "", "resolve a single contest day (YYYY-MM-DD) and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, os.Stdout)

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	rdb := cache.InitRedis(cfg.RedisURL)
	var queue *notifications.QueuePublisher
	if cfg.RabbitMQURL != "" {
		if queue, err = notifications.DialQueue(cfg.RabbitMQURL, ""); err != nil {
			middleware.Logger.Warn("winners queue unavailable", slog.String("error", err.Error()))
		} else {
			defer func() { _ = queue.Close() }()
		}
	}

	var notifier *notifications.Notifier
	if rdb != nil {
		notifier = notifications.NewNotifier(rdb)
	}
	var events service.EventPublisher
	if queue != nil {
		events = notifications.NewDispatcher(notifier, nil, queue)
	} else {
		events = notifications.NewDispatcher(notifier, nil, nil)
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("contest timezone: %w", err)
	}
	cal := contest.NewCalendar(loc)
	winners := service.NewWinnerService(repository.NewPostRepository(db), cal, service.PolicyFromConfig(cfg), events)
	resolver, err := scheduler.NewDailyResolver(winners, cal, cfg.ResolveCron)
	if err != nil {
		return err
	}

	if *date != "" {
		day, err := cal.Parse(*date)
		if err != nil {
			return err
		}
		if !day.Before(cal.Today()) {
			return fmt.Errorf("contest day %s has not finished yet", contest.Format(day))
		}
		res, err := resolver.ResolveDay(context.Background(), day)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", res.Date, res.Status)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver.Start(ctx)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return resolver.Stop(shutdownCtx)
}
