package server

import (
	"strings"

	"dailyshot/internal/contest"
	"dailyshot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	// Older clients send camelCase.
	LegacyImageURL string `json:"imageUrl"`
}

// GetPosts lists one contest day. ?date defaults to today, ?sort is new (default) or top.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	day, err := s.parseDay(c, c.Query("date"), s.calendar.Today())
	if err != nil {
		return nil
	}
	sort := strings.ToLower(strings.TrimSpace(c.Query("sort", service.SortNew)))

	posts, err := s.postService.ListPostsByDate(c.UserContext(), day, sort)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"date":  contest.Format(day),
		"sort":  sort,
		"posts": posts,
	})
}

func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// CreatePost submits the caller's entry for today.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return nil
	}

	var req createPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	imageURL := req.ImageURL
	if imageURL == "" {
		imageURL = req.LegacyImageURL
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    imageURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return nil
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: userID,
		PostID: id,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// GetMyPosts lists the caller's own entries across all days.
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return nil
	}

	posts, err := s.postService.GetUserPosts(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}
