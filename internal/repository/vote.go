package repository

import (
	"context"

	"dailyshot/internal/contest"
	"dailyshot/internal/models"

	"gorm.io/gorm"
)

// VoteRepository defines the interface for vote data operations
type VoteRepository interface {
	Toggle(ctx context.Context, userID, postID uint) (models.VoteState, error)
	CountForPost(ctx context.Context, postID uint) (int64, error)
	PostIDsForUser(ctx context.Context, userID uint, r contest.Range) ([]uint, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Toggle removes the user's vote if present, otherwise records one. Both branches run in one
// transaction; a concurrent duplicate insert surfaces as ErrDuplicate.
func (r *voteRepository) Toggle(ctx context.Context, userID, postID uint) (models.VoteState, error) {
	var state models.VoteState
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Vote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			state = models.VoteRemoved
			return nil
		}

		if err := tx.Create(&models.Vote{UserID: userID, PostID: postID}).Error; err != nil {
			return err
		}
		state = models.VoteAdded
		return nil
	})
	if err != nil {
		return "", translate(err)
	}
	return state, nil
}

func (r *voteRepository) CountForPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Vote{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// PostIDsForUser lists the posts dated inside rg that userID voted for.
func (r *voteRepository) PostIDsForUser(ctx context.Context, userID uint, rg contest.Range) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Joins("JOIN posts ON posts.id = votes.post_id").
		Where("votes.user_id = ? AND posts.date >= ? AND posts.date < ?", userID, rg.From, rg.To).
		Order("votes.post_id ASC").
		Pluck("votes.post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
