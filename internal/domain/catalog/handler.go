package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ozonelife/clinic/internal/platform/store"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(c *Catalog) *Handler {
	return &Handler{catalog: c}
}

// RegisterPublicRoutes mounts the unauthenticated catalog used by the public
// site.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/public/services", h.ListPublicServices)
	g.GET("/public/services/:id", h.GetPublicService)
	g.GET("/public/products", h.ListPublicProducts)
}

func (h *Handler) ListPublicServices(c echo.Context) error {
	items, err := h.catalog.ActiveServices(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]Listing, 0, len(items))
	for _, s := range items {
		out = append(out, s.Listing())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetPublicService(c echo.Context) error {
	s, err := h.catalog.GetService(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !s.Ativo {
		return store.NotFound("services.get", s.ID)
	}
	return c.JSON(http.StatusOK, s.Listing())
}

func (h *Handler) ListPublicProducts(c echo.Context) error {
	items, err := h.catalog.ActiveProducts(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]Listing, 0, len(items))
	for _, p := range items {
		out = append(out, p.Listing())
	}
	return c.JSON(http.StatusOK, out)
}
