package service

import (
	"context"
	"testing"

	"dailyshot/internal/contest"
	"dailyshot/internal/models"
	"dailyshot/internal/repository"
	"dailyshot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newVoteFixture(t *testing.T) (*VoteService, *gorm.DB, *testutil.Fixtures, *eventRecorder) {
	t.Helper()
	db := testutil.NewDB(t)
	events := &eventRecorder{}
	svc := NewVoteService(repository.NewVoteRepository(db), repository.NewPostRepository(db), events)
	return svc, db, testutil.NewFixtures(t, db), events
}

func TestVoteService_ToggleRoundTrip(t *testing.T) {
	t.Parallel()
	svc, db, fx, events := newVoteFixture(t)
	ctx := context.Background()

	post := fx.Post(fx.User("author"), contestDay, at(8, 0))
	fx.Votes(post, fx.Voters(2)...)
	voter := fx.User("voter")
	before := voteCount(t, db, post.ID)

	added, err := svc.ToggleVote(ctx, voter.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VoteAdded, added.State)
	assert.Equal(t, before+1, added.Votes)
	assert.Equal(t, post.ID, added.PostID)

	removed, err := svc.ToggleVote(ctx, voter.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VoteRemoved, removed.State)
	assert.Equal(t, before, removed.Votes)
	assert.Equal(t, before, voteCount(t, db, post.ID))

	assert.Equal(t, []string{EventVoteToggled, EventVoteToggled}, events.Types())
}

func TestVoteService_CannotVoteOwnPost(t *testing.T) {
	t.Parallel()
	svc, db, fx, events := newVoteFixture(t)
	author := fx.User("author")
	post := fx.Post(author, contestDay, at(8, 0))

	_, err := svc.ToggleVote(context.Background(), author.ID, post.ID)
	appErr := assertAppError(t, err, models.CodeForbidden)
	assert.Equal(t, ErrOwnPost, appErr.Message)
	assert.Zero(t, voteCount(t, db, post.ID))
	assert.Empty(t, events.Types())
}

func TestVoteService_UnknownPost(t *testing.T) {
	t.Parallel()
	svc, _, fx, _ := newVoteFixture(t)
	ctx := context.Background()

	_, err := svc.ToggleVote(ctx, fx.User("v").ID, 404)
	assertAppError(t, err, models.CodeNotFound)

	_, err = svc.CountForPost(ctx, 404)
	assertAppError(t, err, models.CodeNotFound)
}

func TestVoteService_DuplicateInsertMapsToDuplicate(t *testing.T) {
	t.Parallel()
	posts := noopPostRepo()
	posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1}, nil
	}
	svc := NewVoteService(&voteRepoStub{
		toggleFn: func(_ context.Context, _, _ uint) (models.VoteState, error) {
			return "", repository.ErrDuplicate
		},
	}, posts, nil)

	_, err := svc.ToggleVote(context.Background(), 2, 10)
	assertAppError(t, err, models.CodeDuplicate)
}

func TestVoteService_CountAndListForUser(t *testing.T) {
	t.Parallel()
	svc, _, fx, _ := newVoteFixture(t)
	ctx := context.Background()

	voter := fx.User("voter")
	today := fx.Post(fx.User("a"), contestDay, at(8, 0))
	yesterday := fx.Post(fx.User("b"), contestDay.AddDate(0, 0, -1), at(-8, 0))
	fx.Votes(today, voter)
	fx.Votes(yesterday, voter)

	n, err := svc.CountForPost(ctx, today.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ids, err := svc.ListForUser(ctx, voter.ID, contest.DayRange(contestDay))
	require.NoError(t, err)
	assert.Equal(t, []uint{today.ID}, ids)
}

type voteRepoStub struct {
	toggleFn func(context.Context, uint, uint) (models.VoteState, error)
}

func (s *voteRepoStub) Toggle(ctx context.Context, userID, postID uint) (models.VoteState, error) {
	return s.toggleFn(ctx, userID, postID)
}
func (s *voteRepoStub) CountForPost(context.Context, uint) (int64, error) { return 0, nil }
func (s *voteRepoStub) PostIDsForUser(context.Context, uint, contest.Range) ([]uint, error) {
	return []uint{}, nil
}
