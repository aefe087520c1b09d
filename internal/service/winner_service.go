package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dailyshot/internal/cache"
	"dailyshot/internal/contest"
	"dailyshot/internal/middleware"
	"dailyshot/internal/models"
	"dailyshot/internal/observability"
	"dailyshot/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ResolutionStatus is the outcome of resolving a contest day.
type ResolutionStatus string

const (
	StatusResolved        ResolutionStatus = "resolved"
	StatusAlreadyResolved ResolutionStatus = "already_resolved"
	StatusNoPosts         ResolutionStatus = "no_posts"
	StatusNoEligible      ResolutionStatus = "no_eligible_winner"
)

var statusMessages = map[ResolutionStatus]string{
	StatusResolved:        "Winner determined successfully",
	StatusAlreadyResolved: "A winner has already been determined for this date",
	StatusNoPosts:         "No posts found for this date",
	StatusNoEligible:      "No posts with votes found for this date",
}

// Resolution reports what Resolve found or changed for a day.
type Resolution struct {
	Status    ResolutionStatus `json:"status"`
	Message   string           `json:"message"`
	Date      string           `json:"date"`
	Winner    *models.Post     `json:"winner,omitempty"`
	Candidate *models.Post     `json:"candidate,omitempty"`
}

// Winners listing modes.
const (
	ModeWinners  = "winners"
	ModeTopVoted = "top_voted"
)

// DefaultWinnersPage is the page size of the cached first winners page.
const DefaultWinnersPage = 20

// maxClaimAttempts bounds re-ranking when the leading post disappears before it is claimed.
const maxClaimAttempts = 3

// WinnersListing is the public hall of fame. Mode is ModeTopVoted when no winners exist yet
// and the posts are the most voted entry of each recent day.
type WinnersListing struct {
	Mode  string         `json:"mode"`
	Posts []*models.Post `json:"posts"`
}

// DaySummary is the admin view of one contest day.
type DaySummary struct {
	Date     string         `json:"date"`
	WinnerID *uint          `json:"winner_id"`
	Posts    []*models.Post `json:"posts"`
}

type WinnerService struct {
	postRepo repository.PostRepository
	calendar *contest.Calendar
	policy   Policy
	events   EventPublisher
}

func NewWinnerService(
	postRepo repository.PostRepository,
	calendar *contest.Calendar,
	policy Policy,
	events EventPublisher,
) *WinnerService {
	return &WinnerService{
		postRepo: postRepo,
		calendar: calendar,
		policy:   policy,
		events:   orNop(events),
	}
}

// Resolve crowns the most voted post of day. Once a day has a winner, later calls return it
// without writing, whatever votes arrived since.
func (s *WinnerService) Resolve(ctx context.Context, day time.Time) (*Resolution, error) {
	rg := contest.DayRange(day)
	span, ctx := observability.StartSpan(ctx, "winner.resolve",
		attribute.String("contest.date", contest.Format(rg.From)))
	defer span.End()

	res, err := s.resolve(ctx, rg)
	if err != nil {
		span.SetError(err)
		observability.WinnerResolutions.WithLabelValues("error").Inc()
		return nil, err
	}

	res.Message = statusMessages[res.Status]
	res.Date = contest.Format(rg.From)
	span.AddAttributes(attribute.String("winner.status", string(res.Status)))
	observability.WinnerResolutions.WithLabelValues(string(res.Status)).Inc()

	if res.Status == StatusResolved {
		cache.Invalidate(ctx, cache.DayPostsKey(rg.From), cache.WinnersKey())
		s.events.Publish(ctx, EventWinnerResolved, res)
		middleware.Logger.InfoContext(ctx, "winner resolved",
			slog.String("date", res.Date),
			slog.Uint64("post_id", uint64(res.Winner.ID)),
			slog.Int64("votes", res.Winner.VoteCount),
		)
	}
	return res, nil
}

func (s *WinnerService) resolve(ctx context.Context, rg contest.Range) (*Resolution, error) {
	existing, err := s.postRepo.FindWinner(ctx, rg)
	if err != nil {
		return nil, fmt.Errorf("find winner: %w", err)
	}
	if existing != nil {
		return &Resolution{Status: StatusAlreadyResolved, Winner: existing}, nil
	}

	for attempt := 1; ; attempt++ {
		candidates, err := s.postRepo.ListByRange(ctx, rg, s.policy.TopOrder(), 1)
		if err != nil {
			return nil, fmt.Errorf("rank posts: %w", err)
		}
		if len(candidates) == 0 {
			return &Resolution{Status: StatusNoPosts}, nil
		}

		top := candidates[0]
		if top.VoteCount < s.policy.MinVotes {
			return &Resolution{Status: StatusNoEligible, Candidate: top}, nil
		}

		err = s.postRepo.ClaimWinner(ctx, top.ID, rg)
		switch {
		case err == nil:
			top.IsWinner = true
			return &Resolution{Status: StatusResolved, Winner: top}, nil
		case errors.Is(err, repository.ErrWinnerExists):
			stored, ferr := s.postRepo.FindWinner(ctx, rg)
			if ferr != nil {
				return nil, fmt.Errorf("find winner: %w", ferr)
			}
			return &Resolution{Status: StatusAlreadyResolved, Winner: stored}, nil
		case repository.IsNotFound(err) && attempt < maxClaimAttempts:
			// The candidate was deleted after ranking.
			continue
		default:
			return nil, fmt.Errorf("claim winner: %w", err)
		}
	}
}

// Lookup returns the stored winner of day without resolving it, or nil when there is none.
func (s *WinnerService) Lookup(ctx context.Context, day time.Time) (*Resolution, error) {
	rg := contest.DayRange(day)
	winner, err := s.postRepo.FindWinner(ctx, rg)
	if err != nil {
		return nil, fmt.Errorf("find winner: %w", err)
	}
	if winner == nil {
		return nil, nil
	}
	return &Resolution{
		Status:  StatusAlreadyResolved,
		Message: statusMessages[StatusAlreadyResolved],
		Date:    contest.Format(rg.From),
		Winner:  winner,
	}, nil
}

// MarkWinner toggles a post's winner flag. Setting it clears any other winner of that day.
func (s *WinnerService) MarkWinner(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, fmt.Errorf("load post: %w", err)
	}

	flag := !post.IsWinner
	if err := s.postRepo.SetWinner(ctx, post.ID, contest.DayRange(post.Date), flag); err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, fmt.Errorf("set winner: %w", err)
	}
	post.IsWinner = flag

	cache.Invalidate(ctx, cache.DayPostsKey(post.Date), cache.WinnersKey())
	s.events.Publish(ctx, EventWinnerMarked, map[string]any{
		"post_id":   post.ID,
		"is_winner": flag,
		"date":      contest.Format(post.Date),
	})
	return post, nil
}

// ListWinners pages through crowned posts, newest day first. When no day in the fallback
// window has a winner, the first page lists the top voted post of each of those days instead.
// The fallback never writes.
func (s *WinnerService) ListWinners(ctx context.Context, limit, offset int) (*WinnersListing, error) {
	if limit <= 0 {
		limit = DefaultWinnersPage
	}
	if offset < 0 {
		offset = 0
	}

	if offset == 0 && limit == DefaultWinnersPage {
		var listing WinnersListing
		err := cache.Aside(ctx, cache.WinnersKey(), &listing, cache.WinnersTTL, func() error {
			l, ferr := s.listWinners(ctx, limit, offset)
			if ferr != nil {
				return ferr
			}
			listing = *l
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &listing, nil
	}
	return s.listWinners(ctx, limit, offset)
}

func (s *WinnerService) listWinners(ctx context.Context, limit, offset int) (*WinnersListing, error) {
	if offset == 0 {
		recent, err := s.postRepo.FindWinner(ctx, contest.LastDays(s.calendar.Today(), s.policy.FallbackDays))
		if err != nil {
			return nil, fmt.Errorf("find recent winner: %w", err)
		}
		if recent == nil {
			top, err := s.topVotedPerDay(ctx)
			if err != nil {
				return nil, err
			}
			if len(top) > 0 {
				return &WinnersListing{Mode: ModeTopVoted, Posts: top}, nil
			}
		}
	}

	winners, err := s.postRepo.ListWinners(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	return &WinnersListing{Mode: ModeWinners, Posts: winners}, nil
}

// topVotedPerDay ranks each day of the fallback window. Days whose leader is below the
// minimum vote count are left out, matching what Resolve would crown.
func (s *WinnerService) topVotedPerDay(ctx context.Context) ([]*models.Post, error) {
	out := []*models.Post{}
	today := s.calendar.Today()
	for i := 0; i < s.policy.FallbackDays; i++ {
		day := today.AddDate(0, 0, -i)
		posts, err := s.postRepo.ListByRange(ctx, contest.DayRange(day), s.policy.TopOrder(), 1)
		if err != nil {
			return nil, fmt.Errorf("rank posts for %s: %w", contest.Format(day), err)
		}
		if len(posts) == 1 && posts[0].VoteCount >= s.policy.MinVotes {
			out = append(out, posts[0])
		}
	}
	return out, nil
}

// DaySummaries returns, for each of the last days days that has posts, its ranked posts and
// current winner.
func (s *WinnerService) DaySummaries(ctx context.Context, days int) ([]DaySummary, error) {
	if days < 1 {
		return nil, models.NewValidationError("days must be at least 1")
	}
	if days > 31 {
		return nil, models.NewValidationError("days must be at most 31")
	}

	out := []DaySummary{}
	today := s.calendar.Today()
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)
		posts, err := s.postRepo.ListByRange(ctx, contest.DayRange(day), s.policy.TopOrder(), 0)
		if err != nil {
			return nil, fmt.Errorf("rank posts for %s: %w", contest.Format(day), err)
		}
		if len(posts) == 0 {
			continue
		}
		summary := DaySummary{Date: contest.Format(day), Posts: posts}
		for _, p := range posts {
			if p.IsWinner {
				id := p.ID
				summary.WinnerID = &id
				break
			}
		}
		out = append(out, summary)
	}
	return out, nil
}
