package repository

import (
	"context"
	"errors"

	"dailyshot/internal/contest"
	"dailyshot/internal/models"

	"gorm.io/gorm"
)

// PostOrder selects how a day's posts are ranked.
type PostOrder string

const (
	// OrderNewest lists newest submissions first.
	OrderNewest PostOrder = "new"
	// OrderTopEarliest ranks by votes, breaking ties by earliest submission.
	OrderTopEarliest PostOrder = "top"
	// OrderTopLatest ranks by votes, breaking ties by latest submission.
	OrderTopLatest PostOrder = "top_latest"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByRange(ctx context.Context, r contest.Range, order PostOrder, limit int) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]*models.Post, error)
	FindWinner(ctx context.Context, r contest.Range) (*models.Post, error)
	ListWinners(ctx context.Context, limit, offset int) ([]*models.Post, error)
	ClaimWinner(ctx context.Context, postID uint, r contest.Range) error
	SetWinner(ctx context.Context, postID uint, r contest.Range, winner bool) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return translate(r.db.WithContext(ctx).Create(post).Error)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.withDetails(ctx).First(&post, "posts.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListByRange(ctx context.Context, rg contest.Range, order PostOrder, limit int) ([]*models.Post, error) {
	posts := []*models.Post{}
	q := applyOrder(r.withDetails(ctx).Where("posts.date >= ? AND posts.date < ?", rg.From, rg.To), order)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := r.withDetails(ctx).
		Where("posts.author_id = ?", authorID).
		Order("posts.created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// FindWinner returns the flagged winner inside r, or nil when there is none.
func (r *postRepository) FindWinner(ctx context.Context, rg contest.Range) (*models.Post, error) {
	var post models.Post
	err := r.withDetails(ctx).
		Where("posts.date >= ? AND posts.date < ? AND posts.is_winner = ?", rg.From, rg.To, true).
		Order("posts.id ASC").
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListWinners(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := r.withDetails(ctx).
		Where("posts.is_winner = ?", true).
		Order("posts.date DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ClaimWinner flags postID as the winner of r unless the range already has one.
// Concurrent claims are serialised by the per-day partial unique index.
func (r *postRepository) ClaimWinner(ctx context.Context, postID uint, rg contest.Range) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Post{}).
			Where("date >= ? AND date < ? AND is_winner = ?", rg.From, rg.To, true).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrWinnerExists
		}

		res := tx.Model(&models.Post{}).
			Where("id = ? AND date >= ? AND date < ?", postID, rg.From, rg.To).
			Update("is_winner", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if isUniqueViolation(err) {
		return ErrWinnerExists
	}
	return err
}

// SetWinner sets or clears the winner flag on postID. Setting it clears every other winner in r
// in the same transaction.
func (r *postRepository) SetWinner(ctx context.Context, postID uint, rg contest.Range, winner bool) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if winner {
			if err := tx.Model(&models.Post{}).
				Where("date >= ? AND date < ? AND is_winner = ? AND id <> ?", rg.From, rg.To, true, postID).
				Update("is_winner", false).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&models.Post{}).Where("id = ?", postID).Update("is_winner", winner)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

// Delete removes a post and its votes atomically.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// withDetails selects the vote count alongside each post and preloads the author summary.
func (r *postRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("posts.*, (SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id) AS vote_count").
		Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "image")
		})
}

// applyOrder appends the ORDER BY for order. vote_count is the alias selected by withDetails.
func applyOrder(db *gorm.DB, order PostOrder) *gorm.DB {
	switch order {
	case OrderTopEarliest:
		return db.Order("vote_count DESC").Order("posts.created_at ASC").Order("posts.id ASC")
	case OrderTopLatest:
		return db.Order("vote_count DESC").Order("posts.created_at DESC").Order("posts.id DESC")
	default:
		return db.Order("posts.created_at DESC").Order("posts.id DESC")
	}
}
