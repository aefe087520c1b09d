package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"dailyshot/internal/contest"
	"dailyshot/internal/models"
	"dailyshot/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var day = testutil.Day(2024, 3, 15)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestPostRepository_CreateDuplicateDay(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := fx.User("alice")
	first := &models.Post{Title: "sunrise", ImageURL: "/a.jpg", Date: day, AuthorID: alice.ID}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotZero(t, first.ID)

	second := &models.Post{Title: "sunset", ImageURL: "/b.jpg", Date: day, AuthorID: alice.ID}
	err := repo.Create(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicate)

	tomorrow := &models.Post{Title: "dawn", ImageURL: "/c.jpg", Date: day.AddDate(0, 0, 1), AuthorID: alice.ID}
	assert.NoError(t, repo.Create(ctx, tomorrow))
}

func TestPostRepository_ListByRange(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewPostRepository(db)
	ctx := context.Background()

	a, b, c := fx.User("a"), fx.User("b"), fx.User("c")
	voters := fx.Voters(3)

	pa := fx.Post(a, day, at(9, 0))
	pb := fx.Post(b, day, at(10, 0))
	pc := fx.Post(c, day, at(11, 0))
	fx.Post(a, day.AddDate(0, 0, -1), at(-2, 0))

	fx.Votes(pa, voters[0], voters[1])
	fx.Votes(pb, voters[0], voters[1])
	fx.Votes(pc, voters[2])

	newest, err := repo.ListByRange(ctx, contest.DayRange(day), OrderNewest, 0)
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, []uint{pc.ID, pb.ID, pa.ID}, ids(newest))
	assert.Equal(t, int64(1), newest[0].VoteCount)
	require.NotNil(t, newest[0].Author)
	assert.Equal(t, "c", newest[0].Author.Name)
	assert.Empty(t, newest[0].Author.Email, "author summary omits email")

	top, err := repo.ListByRange(ctx, contest.DayRange(day), OrderTopEarliest, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{pa.ID, pb.ID, pc.ID}, ids(top))

	topLatest, err := repo.ListByRange(ctx, contest.DayRange(day), OrderTopLatest, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{pb.ID}, ids(topLatest))

	empty, err := repo.ListByRange(ctx, contest.DayRange(day.AddDate(0, 0, 5)), OrderNewest, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestPostRepository_GetByIDAndAuthor(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := fx.User("alice")
	older := fx.Post(alice, day.AddDate(0, 0, -1), at(-20, 0))
	newer := fx.Post(alice, day, at(8, 0))
	fx.Votes(newer, fx.Voters(2)...)

	got, err := repo.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.VoteCount)
	assert.Equal(t, alice.ID, got.Author.ID)

	_, err = repo.GetByID(ctx, 9999)
	assert.True(t, IsNotFound(err))

	mine, err := repo.ListByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{newer.ID, older.ID}, ids(mine))
}

func TestPostRepository_ClaimWinner(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewPostRepository(db)
	ctx := context.Background()
	rg := contest.DayRange(day)

	p1 := fx.Post(fx.User("a"), day, at(9, 0))
	p2 := fx.Post(fx.User("b"), day, at(10, 0))
	other := fx.Post(fx.User("c"), day.AddDate(0, 0, 1), at(30, 0))

	winner, err := repo.FindWinner(ctx, rg)
	require.NoError(t, err)
	assert.Nil(t, winner)

	require.NoError(t, repo.ClaimWinner(ctx, p1.ID, rg))
	assert.ErrorIs(t, repo.ClaimWinner(ctx, p2.ID, rg), ErrWinnerExists)

	// A post outside the range cannot be claimed for it.
	err = repo.ClaimWinner(ctx, other.ID, contest.DayRange(day.AddDate(0, 0, 2)))
	assert.True(t, IsNotFound(err))

	winner, err = repo.FindWinner(ctx, rg)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, p1.ID, winner.ID)
	assert.True(t, winner.IsWinner)
}

func TestPostRepository_SetWinnerClearsOthers(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewPostRepository(db)
	ctx := context.Background()
	rg := contest.DayRange(day)

	p1 := fx.Post(fx.User("a"), day, at(9, 0))
	p2 := fx.Post(fx.User("b"), day, at(10, 0))
	prev := fx.Post(fx.User("c"), day.AddDate(0, 0, -1), at(-5, 0))
	require.NoError(t, repo.SetWinner(ctx, prev.ID, contest.DayRange(prev.Date), true))

	require.NoError(t, repo.SetWinner(ctx, p1.ID, rg, true))
	require.NoError(t, repo.SetWinner(ctx, p2.ID, rg, true))

	winners, err := repo.ListWinners(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{p2.ID, prev.ID}, ids(winners), "one winner per day, newest day first")

	require.NoError(t, repo.SetWinner(ctx, p2.ID, rg, false))
	w, err := repo.FindWinner(ctx, rg)
	require.NoError(t, err)
	assert.Nil(t, w)

	assert.True(t, IsNotFound(repo.SetWinner(ctx, 4242, rg, true)))
}

func TestPostRepository_DeleteRemovesVotes(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewPostRepository(db)
	ctx := context.Background()

	p := fx.Post(fx.User("a"), day, at(9, 0))
	keep := fx.Post(fx.User("b"), day, at(9, 30))
	voters := fx.Voters(2)
	fx.Votes(p, voters...)
	fx.Votes(keep, voters[0])

	require.NoError(t, repo.Delete(ctx, p.ID))

	var remaining int64
	require.NoError(t, db.Model(&models.Vote{}).Where("post_id = ?", p.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
	require.NoError(t, db.Model(&models.Vote{}).Where("post_id = ?", keep.ID).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)

	assert.True(t, IsNotFound(repo.Delete(ctx, p.ID)))
}

func TestPostRepository_DeleteRollsBackOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "votes" WHERE post_id = $1`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts" WHERE "posts"."id" = $1`)).
		WithArgs(7).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 7)
	assert.EqualError(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ClaimWinnerRaceMapsToWinnerExists(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	rg := contest.DayRange(day)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "is_winner"=$1`)).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_posts_winner_date" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	err := repo.ClaimWinner(context.Background(), 3, rg)
	assert.ErrorIs(t, err, ErrWinnerExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ids(posts []*models.Post) []uint {
	out := make([]uint, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}
