// Package entities exposes every registered collection through one uniform
// list/filter/create/update/delete surface. Repositories are registered with
// their domain rules already applied, so writes here behave exactly like the
// dedicated endpoints.
package entities

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/ozonelife/clinic/internal/platform/store"
	"github.com/ozonelife/clinic/pkg/listparams"
)

// Registry maps collection names to repositories.
type Registry struct {
	repos map[string]store.EntityRepository
}

func NewRegistry(repos ...store.EntityRepository) *Registry {
	r := &Registry{repos: make(map[string]store.EntityRepository, len(repos))}
	for _, repo := range repos {
		r.repos[repo.Schema().Collection] = repo
	}
	return r
}

func (r *Registry) Lookup(name string) (store.EntityRepository, bool) {
	repo, ok := r.repos[name]
	return repo, ok
}

// Names returns the registered collections in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.repos))
	for n := range r.repos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type Handler struct {
	registry *Registry
	binder   echo.DefaultBinder
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/entities", h.Collections)
	g.GET("/entities/:collection", h.List)
	g.GET("/entities/:collection/:id", h.Get)
	g.POST("/entities/:collection", h.Create)
	g.PATCH("/entities/:collection/:id", h.Update)
	g.DELETE("/entities/:collection/:id", h.Delete)
}

func (h *Handler) repo(c echo.Context) (store.EntityRepository, error) {
	name := c.Param("collection")
	repo, ok := h.registry.Lookup(name)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown collection %s", name))
	}
	return repo, nil
}

func (h *Handler) Collections(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Names())
}

// List serves both list and filter: any query parameter besides order and
// limit becomes an equality criterion.
func (h *Handler) List(c echo.Context) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	params, err := listparams.FromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	var recs []store.Record
	if params.HasCriteria() {
		recs, err = repo.Filter(ctx, store.Record(params.CriteriaMap()), params.Order, params.Limit)
	} else {
		recs, err = repo.List(ctx, params.Order, params.Limit)
	}
	if err != nil {
		return err
	}

	schema := repo.Schema()
	out := make([]store.Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, schema.Render(rec))
	}
	return c.JSON(http.StatusOK, listparams.NewResponse(out, len(out)))
}

func (h *Handler) Get(c echo.Context) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	recs, err := repo.Filter(c.Request().Context(), store.Record{store.FieldID: id}, "", 1)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return store.NotFound(repo.Schema().Collection+".get", id)
	}
	return c.JSON(http.StatusOK, repo.Schema().Render(recs[0]))
}

func (h *Handler) Create(c echo.Context) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	fields, err := h.fields(c)
	if err != nil {
		return err
	}
	rec, err := repo.Create(c.Request().Context(), fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, repo.Schema().Render(rec))
}

func (h *Handler) Update(c echo.Context) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	fields, err := h.fields(c)
	if err != nil {
		return err
	}
	rec, err := repo.Update(c.Request().Context(), c.Param("id"), fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, repo.Schema().Render(rec))
}

func (h *Handler) Delete(c echo.Context) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	if err := repo.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// fields decodes the JSON body only; route and query parameters are never
// treated as record fields.
func (h *Handler) fields(c echo.Context) (store.Record, error) {
	var fields map[string]interface{}
	if err := h.binder.BindBody(c, &fields); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return store.Record(fields), nil
}
