package sales

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/sales/revenue", h.Revenue)
	g.GET("/sales/export.csv", h.Export)
}

func (h *Handler) Revenue(c echo.Context) error {
	rev, err := h.svc.Revenue(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rev)
}

func (h *Handler) Export(c echo.Context) error {
	data, err := h.svc.ExportCSV(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, "vendas.csv"))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}
