package server

import (
	"dailyshot/internal/contest"

	"github.com/gofiber/fiber/v2"
)

// ToggleVote adds the caller's vote, or removes it when already present.
func (s *Server) ToggleVote(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return nil
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.voteService.ToggleVote(c.UserContext(), userID, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) GetVoteCount(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	votes, err := s.voteService.CountForPost(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"post_id": id, "votes": votes})
}

// GetMyVotes returns the ids of posts dated on ?date (default today) the caller voted for.
func (s *Server) GetMyVotes(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return nil
	}
	day, err := s.parseDay(c, c.Query("date"), s.calendar.Today())
	if err != nil {
		return nil
	}

	ids, err := s.voteService.ListForUser(c.UserContext(), userID, contest.DayRange(day))
	if err != nil {
		return respondServiceError(c, err)
	}
	if ids == nil {
		ids = []uint{}
	}
	return c.JSON(fiber.Map{
		"date":     contest.Format(day),
		"post_ids": ids,
	})
}
