package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dailyshot/internal/cache"
	"dailyshot/internal/contest"
	"dailyshot/internal/models"
	"dailyshot/internal/observability"
	"dailyshot/internal/repository"
	"dailyshot/internal/validation"
)

// Listing sort modes accepted by ListPostsByDate.
const (
	SortNew = "new"
	SortTop = "top"
)

// ErrAlreadyPosted is the message returned when an author submits twice on one day.
const ErrAlreadyPosted = "You have already posted today"

type PostService struct {
	postRepo repository.PostRepository
	calendar *contest.Calendar
	policy   Policy
	events   EventPublisher
}

type CreatePostInput struct {
	UserID      uint   `json:"-"`
	Title       string `json:"title" validate:"required,max=300"`
	Description string `json:"description" validate:"max=5000"`
	ImageURL    string `json:"image_url" validate:"required,max=2048,imageref"`
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	calendar *contest.Calendar,
	policy Policy,
	events EventPublisher,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		calendar: calendar,
		policy:   policy,
		events:   orNop(events),
	}
}

// CreatePost submits the caller's entry for the current contest day.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Date:        s.calendar.Today(),
		AuthorID:    in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewDuplicateError(ErrAlreadyPosted, err)
		}
		return nil, fmt.Errorf("create post: %w", err)
	}

	created, err := s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("reload post: %w", err)
	}

	observability.PostsCreated.Inc()
	cache.InvalidateDay(ctx, created.Date)
	s.events.Publish(ctx, EventPostCreated, created)
	return created, nil
}

// ListPostsByDate lists a contest day's posts. SortNew is the listing order and is served
// through the cache; SortTop ranks by votes with the configured tie-break.
func (s *PostService) ListPostsByDate(ctx context.Context, day time.Time, sort string) ([]*models.Post, error) {
	rg := contest.DayRange(day)
	switch sort {
	case "", SortNew:
		var posts []*models.Post
		err := cache.Aside(ctx, cache.DayPostsKey(rg.From), &posts, s.policy.ListingTTL, func() error {
			var ferr error
			posts, ferr = s.postRepo.ListByRange(ctx, rg, repository.OrderNewest, 0)
			return ferr
		})
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		if posts == nil {
			posts = []*models.Post{}
		}
		return posts, nil
	case SortTop:
		posts, err := s.postRepo.ListByRange(ctx, rg, s.policy.TopOrder(), 0)
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		return posts, nil
	default:
		return nil, models.NewValidationError("sort must be one of: new, top")
	}
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// DeletePost removes the caller's own post together with its votes.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.GetPost(ctx, in.PostID)
	if err != nil {
		return err
	}
	if post.AuthorID != in.UserID {
		return models.NewForbiddenError("You can only delete your own posts")
	}

	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		if repository.IsNotFound(err) {
			return models.NewNotFoundError("Post", post.ID)
		}
		return fmt.Errorf("delete post: %w", err)
	}

	observability.PostsDeleted.Inc()
	cache.InvalidateDay(ctx, post.Date)
	if post.IsWinner {
		cache.InvalidateWinners(ctx)
	}
	s.events.Publish(ctx, EventPostDeleted, map[string]any{"post_id": post.ID, "date": contest.Format(post.Date)})
	return nil
}

// GetUserPosts lists the caller's posts, newest first.
func (s *PostService) GetUserPosts(ctx context.Context, userID uint) ([]*models.Post, error) {
	posts, err := s.postRepo.ListByAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user posts: %w", err)
	}
	return posts, nil
}
