// Package seed fills a database with demo contest days. It is meant for development
// environments and tests.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dailyshot/internal/contest"
	"dailyshot/internal/middleware"
	"dailyshot/internal/models"
	"dailyshot/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "DailyShot123!"

// Options controls how much data is generated.
type Options struct {
	Users int
	// Days is the number of contest days to fill, ending today.
	Days int
	// PostRate is the chance that a user enters on a given day.
	PostRate        float64
	MaxVotesPerPost int
	// Seed makes the output reproducible. Zero picks a random seed.
	Seed       int64
	SkipBcrypt bool
}

// DefaultOptions is a week of activity for a small community.
func DefaultOptions() Options {
	return Options{
		Users:           25,
		Days:            7,
		PostRate:        0.6,
		MaxVotesPerPost: 12,
	}
}

// Resolver crowns a finished day.
type Resolver interface {
	Resolve(ctx context.Context, day time.Time) (*service.Resolution, error)
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Votes    int
	Resolved int
}

type Seeder struct {
	db       *gorm.DB
	calendar *contest.Calendar
	faker    *gofakeit.Faker
	opts     Options
}

func NewSeeder(db *gorm.DB, calendar *contest.Calendar, opts Options) *Seeder {
	return &Seeder{
		db:       db,
		calendar: calendar,
		faker:    gofakeit.New(opts.Seed),
		opts:     opts,
	}
}

// ClearAll removes every vote, post and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.InfoContext(ctx, "clearing existing data")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Vote{}, &models.Post{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Run creates users, their daily posts and votes, then resolves every finished day when
// resolver is non-nil.
func (s *Seeder) Run(ctx context.Context, resolver Resolver) (*Summary, error) {
	if s.opts.Users < 2 {
		return nil, errors.New("seed: at least two users are needed for voting")
	}
	if s.opts.Days < 1 {
		return nil, errors.New("seed: days must be at least 1")
	}

	middleware.Logger.InfoContext(ctx, "seeding contest data",
		slog.Int("users", s.opts.Users),
		slog.Int("days", s.opts.Days),
	)

	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	summary := &Summary{Users: len(users)}

	today := s.calendar.Today()
	for i := s.opts.Days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		posts, votes, err := s.fillDay(ctx, day, users)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", contest.Format(day), err)
		}
		summary.Posts += posts
		summary.Votes += votes

		if resolver == nil || !day.Before(today) || posts == 0 {
			continue
		}
		res, err := resolver.Resolve(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", contest.Format(day), err)
		}
		if res.Status == service.StatusResolved {
			summary.Resolved++
		}
	}

	middleware.Logger.InfoContext(ctx, "seeding complete",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
		slog.Int("votes", summary.Votes),
		slog.Int("resolved", summary.Resolved),
	)
	return summary, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.User, error) {
	password := DefaultPassword
	if !s.opts.SkipBcrypt {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		password = string(hashed)
	}

	users := make([]*models.User, s.opts.Users)
	for i := range users {
		first, last := s.faker.FirstName(), s.faker.LastName()
		hash := password
		users[i] = &models.User{
			Name:     first + " " + last,
			Email:    fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i+1),
			Image:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", s.faker.UUID()),
			Password: &hash,
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// fillDay has a random share of users post on day and hands out votes from the others.
func (s *Seeder) fillDay(ctx context.Context, day time.Time, users []*models.User) (int, int, error) {
	now := s.calendar.Now()
	var posts []*models.Post
	for _, u := range users {
		if s.faker.Float64() >= s.opts.PostRate {
			continue
		}
		createdAt := s.instantOn(day)
		if createdAt.After(now) {
			createdAt = now
		}
		posts = append(posts, &models.Post{
			Title:       s.title(),
			Description: s.faker.Sentence(s.faker.Number(6, 14)),
			ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/800/800", s.faker.UUID()),
			Date:        day,
			AuthorID:    u.ID,
			CreatedAt:   createdAt.UTC(),
			UpdatedAt:   createdAt.UTC(),
		})
	}
	if len(posts) == 0 {
		return 0, 0, nil
	}

	db := s.db.WithContext(ctx)
	if err := db.CreateInBatches(posts, 100).Error; err != nil {
		return 0, 0, err
	}

	var votes []*models.Vote
	for _, p := range posts {
		for _, voter := range s.pickVoters(users, p.AuthorID) {
			votes = append(votes, &models.Vote{UserID: voter, PostID: p.ID, CreatedAt: p.CreatedAt})
		}
	}
	if len(votes) > 0 {
		if err := db.CreateInBatches(votes, 500).Error; err != nil {
			return 0, 0, err
		}
	}
	return len(posts), len(votes), nil
}

// pickVoters returns up to MaxVotesPerPost distinct user ids other than author.
func (s *Seeder) pickVoters(users []*models.User, author uint) []uint {
	limit := s.opts.MaxVotesPerPost
	if limit > len(users)-1 {
		limit = len(users) - 1
	}
	if limit <= 0 {
		return nil
	}
	n := s.faker.Number(0, limit)

	ids := make([]uint, 0, len(users)-1)
	for _, u := range users {
		if u.ID != author {
			ids = append(ids, u.ID)
		}
	}
	s.faker.ShuffleAnySlice(ids)
	return ids[:n]
}

// instantOn returns a random instant inside day in the contest timezone.
func (s *Seeder) instantOn(day time.Time) time.Time {
	loc := s.calendar.Location()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return start.Add(time.Duration(s.faker.Number(0, 24*60*60-1)) * time.Second)
}

func (s *Seeder) title() string {
	return fmt.Sprintf("%s %s in %s", s.faker.Adjective(), s.faker.Noun(), s.faker.City())
}
