package service

import (
	"context"
	"errors"
	"fmt"

	"dailyshot/internal/cache"
	"dailyshot/internal/contest"
	"dailyshot/internal/models"
	"dailyshot/internal/observability"
	"dailyshot/internal/repository"
)

// ErrOwnPost is the message returned when an author votes for their own post.
const ErrOwnPost = "Cannot vote on your own post"

type VoteService struct {
	voteRepo repository.VoteRepository
	postRepo repository.PostRepository
	events   EventPublisher
}

// VoteResult is the outcome of a toggle together with the post's new total.
type VoteResult struct {
	State  models.VoteState `json:"state"`
	PostID uint             `json:"post_id"`
	Votes  int64            `json:"votes"`
}

func NewVoteService(
	voteRepo repository.VoteRepository,
	postRepo repository.PostRepository,
	events EventPublisher,
) *VoteService {
	return &VoteService{
		voteRepo: voteRepo,
		postRepo: postRepo,
		events:   orNop(events),
	}
}

// ToggleVote flips the caller's vote on a post.
func (s *VoteService) ToggleVote(ctx context.Context, userID, postID uint) (*VoteResult, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, fmt.Errorf("load post: %w", err)
	}
	if post.AuthorID == userID {
		return nil, models.NewForbiddenError(ErrOwnPost)
	}

	state, err := s.voteRepo.Toggle(ctx, userID, postID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewDuplicateError("Vote already recorded", err)
		}
		return nil, fmt.Errorf("toggle vote: %w", err)
	}

	count, err := s.voteRepo.CountForPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}

	observability.VoteToggles.WithLabelValues(string(state)).Inc()
	cache.InvalidateDay(ctx, post.Date)

	result := &VoteResult{State: state, PostID: postID, Votes: count}
	s.events.Publish(ctx, EventVoteToggled, map[string]any{
		"post_id": postID,
		"votes":   count,
		"date":    contest.Format(post.Date),
	})
	return result, nil
}

// CountForPost returns the number of votes on a post.
func (s *VoteService) CountForPost(ctx context.Context, postID uint) (int64, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		if repository.IsNotFound(err) {
			return 0, models.NewNotFoundError("Post", postID)
		}
		return 0, fmt.Errorf("load post: %w", err)
	}
	count, err := s.voteRepo.CountForPost(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

// ListForUser returns the ids of posts dated inside rg that userID voted for.
func (s *VoteService) ListForUser(ctx context.Context, userID uint, rg contest.Range) ([]uint, error) {
	ids, err := s.voteRepo.PostIDsForUser(ctx, userID, rg)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return ids, nil
}
