// Package service implements the contest's business rules on top of the repositories.
package service

import (
	"context"
	"time"

	"dailyshot/internal/config"
	"dailyshot/internal/repository"
)

// Event types published on the live feed.
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventVoteToggled    = "vote_toggled"
	EventWinnerResolved = "winner_resolved"
	EventWinnerMarked   = "winner_marked"
)

// EventPublisher receives domain events after they have been committed.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) {}

func orNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// Policy carries the contest rules configured for a deployment.
type Policy struct {
	MinVotes     int64
	TieBreak     string
	FallbackDays int
	ListingTTL   time.Duration
}

// DefaultPolicy is used when no configuration is supplied.
func DefaultPolicy() Policy {
	return Policy{
		MinVotes:     1,
		TieBreak:     config.TieBreakEarliest,
		FallbackDays: 7,
	}
}

// PolicyFromConfig reads the contest rules out of cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := Policy{
		MinVotes:     cfg.WinnerMinVotes,
		TieBreak:     cfg.WinnerTieBreak,
		FallbackDays: cfg.WinnerFallbackDays,
		ListingTTL:   cfg.ListingCacheTTL(),
	}
	if p.MinVotes < 1 {
		p.MinVotes = 1
	}
	if p.FallbackDays < 1 {
		p.FallbackDays = 7
	}
	return p
}

// TopOrder is the ranking used for candidate lists and resolution.
func (p Policy) TopOrder() repository.PostOrder {
	if p.TieBreak == config.TieBreakLatest {
		return repository.OrderTopLatest
	}
	return repository.OrderTopEarliest
}
