package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"dailyshot/internal/contest"
	"dailyshot/internal/models"
	"dailyshot/internal/repository"
	"dailyshot/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var contestDay = testutil.Day(2024, 3, 15)

func at(hour, minute int) time.Time {
	return contestDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// fixedCalendar returns a UTC calendar whose clock reads now.
func fixedCalendar(now time.Time) *contest.Calendar {
	return contest.NewCalendar(time.UTC).WithClock(func() time.Time { return now })
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn       func(context.Context, *models.Post) error
	getByIDFn      func(context.Context, uint) (*models.Post, error)
	listByRangeFn  func(context.Context, contest.Range, repository.PostOrder, int) ([]*models.Post, error)
	listByAuthorFn func(context.Context, uint) ([]*models.Post, error)
	findWinnerFn   func(context.Context, contest.Range) (*models.Post, error)
	listWinnersFn  func(context.Context, int, int) ([]*models.Post, error)
	claimWinnerFn  func(context.Context, uint, contest.Range) error
	setWinnerFn    func(context.Context, uint, contest.Range, bool) error
	deleteFn       func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) ListByRange(ctx context.Context, rg contest.Range, order repository.PostOrder, limit int) ([]*models.Post, error) {
	return s.listByRangeFn(ctx, rg, order, limit)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID uint) ([]*models.Post, error) {
	return s.listByAuthorFn(ctx, authorID)
}
func (s *postRepoStub) FindWinner(ctx context.Context, rg contest.Range) (*models.Post, error) {
	return s.findWinnerFn(ctx, rg)
}
func (s *postRepoStub) ListWinners(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.listWinnersFn(ctx, limit, offset)
}
func (s *postRepoStub) ClaimWinner(ctx context.Context, postID uint, rg contest.Range) error {
	return s.claimWinnerFn(ctx, postID, rg)
}
func (s *postRepoStub) SetWinner(ctx context.Context, postID uint, rg contest.Range, winner bool) error {
	return s.setWinnerFn(ctx, postID, rg, winner)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listByRangeFn: func(_ context.Context, _ contest.Range, _ repository.PostOrder, _ int) ([]*models.Post, error) {
			return []*models.Post{}, nil
		},
		listByAuthorFn: func(_ context.Context, _ uint) ([]*models.Post, error) { return []*models.Post{}, nil },
		findWinnerFn:   func(_ context.Context, _ contest.Range) (*models.Post, error) { return nil, nil },
		listWinnersFn:  func(_ context.Context, _, _ int) ([]*models.Post, error) { return []*models.Post{}, nil },
		claimWinnerFn:  func(_ context.Context, _ uint, _ contest.Range) error { return nil },
		setWinnerFn:    func(_ context.Context, _ uint, _ contest.Range, _ bool) error { return nil },
		deleteFn:       func(_ context.Context, _ uint) error { return nil },
	}
}

// countingPostRepo counts winner writes made through a real repository.
type countingPostRepo struct {
	repository.PostRepository
	mu     sync.Mutex
	writes int
}

func (r *countingPostRepo) ClaimWinner(ctx context.Context, postID uint, rg contest.Range) error {
	r.mu.Lock()
	r.writes++
	r.mu.Unlock()
	return r.PostRepository.ClaimWinner(ctx, postID, rg)
}

func (r *countingPostRepo) SetWinner(ctx context.Context, postID uint, rg contest.Range, winner bool) error {
	r.mu.Lock()
	r.writes++
	r.mu.Unlock()
	return r.PostRepository.SetWinner(ctx, postID, rg, winner)
}

func (r *countingPostRepo) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type publishedEvent struct {
	Type    string
	Payload any
}

// eventRecorder captures published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *eventRecorder) Publish(_ context.Context, eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{Type: eventType, Payload: payload})
}

func (r *eventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func voteCount(t *testing.T, db *gorm.DB, postID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Vote{}).Where("post_id = ?", postID).Count(&n).Error)
	return n
}

func isWinner(t *testing.T, db *gorm.DB, postID uint) bool {
	t.Helper()
	var p models.Post
	require.NoError(t, db.First(&p, postID).Error)
	return p.IsWinner
}
