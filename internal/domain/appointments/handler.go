package appointments

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ozonelife/clinic/pkg/listparams"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments/:id/status", h.SetStatus)
	g.GET("/appointments/calendar", h.Calendar)
	g.GET("/appointments/calendar/day", h.Day)
	g.POST("/appointments/sweep", h.Sweep)
	g.GET("/appointments/statuses", h.ListStatuses)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	a, err := h.svc.SetStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a.View())
}

// Calendar serves the month grid; month defaults to the current one.
func (h *Handler) Calendar(c echo.Context) error {
	year, month, _ := h.svc.opts.Now().In(h.svc.opts.Location).Date()
	if raw := c.QueryParam("month"); raw != "" {
		var err error
		if year, month, err = ParseMonth(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	cal, err := h.svc.Calendar(c.Request().Context(), year, month)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cal)
}

func (h *Handler) Day(c echo.Context) error {
	raw := c.QueryParam("date")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	date, err := ParseDate(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := h.svc.Day(c.Request().Context(), date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listparams.NewResponse(items, len(items)))
}

func (h *Handler) Sweep(c echo.Context) error {
	n, err := h.svc.Sweep(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"updated":  n,
		"swept_at": h.svc.opts.Now().UTC().Format(time.RFC3339),
	})
}

type statusOption struct {
	Value Status `json:"value"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// ListStatuses serves the status menu of the back-office.
func (h *Handler) ListStatuses(c echo.Context) error {
	out := make([]statusOption, 0, len(Statuses))
	for _, s := range Statuses {
		out = append(out, statusOption{Value: s, Label: s.Label(), Color: s.Color()})
	}
	return c.JSON(http.StatusOK, out)
}
