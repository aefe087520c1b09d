package server

import (
	"crypto/subtle"
	"log/slog"

	"dailyshot/internal/middleware"
	"dailyshot/internal/models"
	"dailyshot/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CronSecretHeader authenticates the external scheduler on POST /api/winner.
const CronSecretHeader = "X-Cron-Secret"

const defaultSummaryDays = 7

// GetWinner resolves ?date (default yesterday) and returns the outcome. Only finished days
// are resolved here; an open day only reports a winner that is already stored.
func (s *Server) GetWinner(c *fiber.Ctx) error {
	day, err := s.parseDay(c, c.Query("date"), s.calendar.Yesterday())
	if err != nil {
		return nil
	}
	if !day.Before(s.calendar.Today()) {
		// An open day can still carry a winner marked by an administrator.
		res, err := s.winnerService.Lookup(c.UserContext(), day)
		if err != nil {
			return respondServiceError(c, err)
		}
		if res != nil {
			return c.JSON(res)
		}
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("A winner can only be determined once the day is over"))
	}

	res, err := s.winnerService.Resolve(c.UserContext(), day)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}

// ResolveWinner lets an administrator or the scheduler resolve any day.
func (s *Server) ResolveWinner(c *fiber.Ctx) error {
	if err := s.authorizeResolve(c); err != nil {
		return nil
	}

	var req struct {
		Date string `json:"date"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	day, err := s.parseDay(c, req.Date, s.calendar.Yesterday())
	if err != nil {
		return nil
	}

	res, err := s.winnerService.Resolve(c.UserContext(), day)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}

// authorizeResolve accepts a matching cron secret or an admin session. On failure it writes
// the response and returns errResponseWritten.
func (s *Server) authorizeResolve(c *fiber.Ctx) error {
	if secret := c.Get(CronSecretHeader); secret != "" && s.config.CronSecret != "" {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.CronSecret)) == 1 {
			return nil
		}
		middleware.Logger.WarnContext(c.UserContext(), "rejected cron secret", slog.String("ip", c.IP()))
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid cron secret"))
		return errResponseWritten
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
		return errResponseWritten
	}
	admin, err := s.userService.IsAdmin(c.UserContext(), userID)
	if err != nil {
		_ = respondServiceError(c, err)
		return errResponseWritten
	}
	if !admin {
		_ = models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Admin access required"))
		return errResponseWritten
	}
	return nil
}

// GetWinners pages through past winners, or recent top voted posts when there are none.
func (s *Server) GetWinners(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultWinnersPage)

	listing, err := s.winnerService.ListWinners(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(listing)
}

// MarkWinner toggles a post's winner flag.
func (s *Server) MarkWinner(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.winnerService.MarkWinner(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	adminID, _ := middleware.UserID(c)
	middleware.Logger.InfoContext(c.UserContext(), "winner flag changed",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.Bool("is_winner", post.IsWinner),
		slog.Uint64("admin_id", uint64(adminID)),
	)
	return c.JSON(fiber.Map{
		"post_id":   post.ID,
		"is_winner": post.IsWinner,
		"post":      post,
	})
}

// GetDaySummaries is the admin overview of recent days.
func (s *Server) GetDaySummaries(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultSummaryDays)

	summaries, err := s.winnerService.DaySummaries(c.UserContext(), days)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(summaries)
}
