package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chronoflow/chronoflow/internal/auth"
	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// maxListDays bounds GET /items ranges.
const maxListDays = 366

// CreateItemRequest is the request body for POST /api/v1/items.
type CreateItemRequest struct {
	Type        schedule.ItemType `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Date        string            `json:"date"`
	StartTime   string            `json:"startTime"`
	EndTime     string            `json:"endTime"`
	Color       string            `json:"color"`
	Icon        string            `json:"icon"`
	Recurrence  string            `json:"recurrence"`
}

// CompleteRequest is the request body for POST /api/v1/items/:id/complete.
type CompleteRequest struct {
	Completed *bool `json:"completed"`
}

func (s *Server) handleListItems(c echo.Context) error {
	rng, err := dateutil.NewDateRange(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return err
	}
	if err := rng.Check(maxListDays); err != nil {
		return err
	}

	items, err := s.items.ListItemsByDateRange(c.Request().Context(), auth.UserID(c), rng.Start, rng.End)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(items))
}

func (s *Server) handleListUnscheduled(c echo.Context) error {
	items, err := s.items.ListUnscheduled(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orEmpty(items))
}

func (s *Server) handleCreateItem(c echo.Context) error {
	var req CreateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Type == "" {
		req.Type = schedule.TypeTask
	}

	it, err := schedule.New(auth.UserID(c), req.Type, req.Title, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return err
	}
	rule := strings.TrimSpace(req.Recurrence)
	if err := recur.Validate(rule); err != nil {
		return err
	}
	it.Description = req.Description
	it.Color = req.Color
	it.Icon = req.Icon
	it.Recurrence = rule
	it.Source = schedule.SourceWeb

	if err := s.items.CreateItem(c.Request().Context(), it); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, it)
}

func (s *Server) handleGetItem(c echo.Context) error {
	it, err := s.items.GetItem(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (s *Server) handleUpdateItem(c echo.Context) error {
	var patch schedule.Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if patch.Empty() {
		return errNothingToPatch
	}

	ctx := c.Request().Context()
	it, err := s.items.GetItem(ctx, auth.UserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	if err := it.Apply(patch); err != nil {
		return err
	}
	if err := recur.Validate(it.Recurrence); err != nil {
		return err
	}
	if err := s.items.UpdateItem(ctx, it); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (s *Server) handleDeleteItem(c echo.Context) error {
	if err := s.items.DeleteItem(c.Request().Context(), auth.UserID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCompleteItem(c echo.Context) error {
	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	done := true
	if req.Completed != nil {
		done = *req.Completed
	}

	ctx := c.Request().Context()
	userID := auth.UserID(c)
	if err := s.items.SetCompleted(ctx, userID, c.Param("id"), done); err != nil {
		return err
	}
	it, err := s.items.GetItem(ctx, userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func orEmpty(items []*schedule.Item) []*schedule.Item {
	if items == nil {
		return []*schedule.Item{}
	}
	return items
}
