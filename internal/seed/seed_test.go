package seed

import (
	"context"
	"testing"
	"time"

	"dailyshot/internal/contest"
	"dailyshot/internal/models"
	"dailyshot/internal/repository"
	"dailyshot/internal/service"
	"dailyshot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedNow = time.Date(2024, 3, 16, 15, 0, 0, 0, time.UTC)

func newSeeder(t *testing.T, opts Options) (*Seeder, *service.WinnerService) {
	t.Helper()
	db := testutil.NewDB(t)
	cal := contest.NewCalendar(time.UTC).WithClock(func() time.Time { return seedNow })
	winners := service.NewWinnerService(repository.NewPostRepository(db), cal, service.DefaultPolicy(), nil)
	return NewSeeder(db, cal, opts), winners
}

func TestSeeder_Run(t *testing.T) {
	s, winners := newSeeder(t, Options{
		Users:           6,
		Days:            3,
		PostRate:        1,
		MaxVotesPerPost: 5,
		Seed:            42,
		SkipBcrypt:      true,
	})
	ctx := context.Background()

	summary, err := s.Run(ctx, winners)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Users)
	assert.Equal(t, 18, summary.Posts)

	var posts []models.Post
	require.NoError(t, s.db.Find(&posts).Error)
	require.Len(t, posts, 18)

	today := testutil.Day(2024, 3, 16)
	perDay := map[string]map[uint]bool{}
	winnersPerDay := map[string]int{}
	for _, p := range posts {
		key := contest.Format(p.Date)
		if perDay[key] == nil {
			perDay[key] = map[uint]bool{}
		}
		assert.False(t, perDay[key][p.AuthorID], "one post per author per day")
		perDay[key][p.AuthorID] = true
		assert.False(t, p.CreatedAt.After(seedNow), "no post from the future")
		if p.IsWinner {
			winnersPerDay[key]++
		}
	}
	assert.Len(t, perDay, 3)
	assert.Zero(t, winnersPerDay[contest.Format(today)], "today is still open")
	for day, n := range winnersPerDay {
		assert.Equal(t, 1, n, day)
	}

	var selfVotes int64
	require.NoError(t, s.db.Model(&models.Vote{}).
		Joins("JOIN posts ON posts.id = votes.post_id").
		Where("posts.author_id = votes.user_id").
		Count(&selfVotes).Error)
	assert.Zero(t, selfVotes)

	var votes int64
	require.NoError(t, s.db.Model(&models.Vote{}).Count(&votes).Error)
	assert.Equal(t, int64(summary.Votes), votes)
	assert.LessOrEqual(t, summary.Votes, 18*5)
	assert.Equal(t, len(winnersPerDay), summary.Resolved)
}

func TestSeeder_RunWithoutResolver(t *testing.T) {
	s, _ := newSeeder(t, Options{Users: 3, Days: 2, PostRate: 1, MaxVotesPerPost: 2, Seed: 7, SkipBcrypt: true})

	summary, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Resolved)

	var crowned int64
	require.NoError(t, s.db.Model(&models.Post{}).Where("is_winner = ?", true).Count(&crowned).Error)
	assert.Zero(t, crowned)
}

func TestSeeder_RejectsBadOptions(t *testing.T) {
	s, _ := newSeeder(t, Options{Users: 1, Days: 1})
	_, err := s.Run(context.Background(), nil)
	assert.Error(t, err)

	s, _ = newSeeder(t, Options{Users: 4, Days: 0})
	_, err = s.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestSeeder_ClearAll(t *testing.T) {
	s, _ := newSeeder(t, Options{Users: 4, Days: 2, PostRate: 1, MaxVotesPerPost: 3, Seed: 1, SkipBcrypt: true})
	ctx := context.Background()
	_, err := s.Run(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))
	for _, model := range []any{&models.User{}, &models.Post{}, &models.Vote{}} {
		var n int64
		require.NoError(t, s.db.Unscoped().Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}
}
