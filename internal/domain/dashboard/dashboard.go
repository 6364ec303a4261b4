// Package dashboard serves the numbers shown on the back-office landing page.
package dashboard

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ozonelife/clinic/internal/domain/appointments"
	"github.com/ozonelife/clinic/internal/domain/catalog"
	"github.com/ozonelife/clinic/internal/domain/patients"
	"github.com/ozonelife/clinic/internal/domain/sales"
)

const recentLimit = 5

type Summary struct {
	Services            int                 `json:"services"`
	Products            int                 `json:"products"`
	Appointments        int                 `json:"appointments"`
	PendingAppointments int                 `json:"pending_appointments"`
	Patients            int                 `json:"patients"`
	Sales               int                 `json:"sales"`
	Revenue             float64             `json:"revenue"`
	Recent              []appointments.View `json:"recent_appointments"`
}

type Service struct {
	catalog      *catalog.Catalog
	patients     *patients.Service
	appointments *appointments.Service
	sales        *sales.Service
}

func NewService(c *catalog.Catalog, p *patients.Service, a *appointments.Service, s *sales.Service) *Service {
	return &Service{catalog: c, patients: p, appointments: a, sales: s}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var out Summary

	svcs, err := s.catalog.ActiveServices(ctx)
	if err != nil {
		return nil, err
	}
	out.Services = len(svcs)

	prods, err := s.catalog.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	out.Products = len(prods)

	if out.Appointments, out.PendingAppointments, err = s.appointments.Counts(ctx); err != nil {
		return nil, err
	}
	if out.Patients, err = s.patients.Count(ctx); err != nil {
		return nil, err
	}

	rev, err := s.sales.Revenue(ctx)
	if err != nil {
		return nil, err
	}
	out.Sales, out.Revenue = rev.Count, rev.Total

	if out.Recent, err = s.appointments.Recent(ctx, recentLimit); err != nil {
		return nil, err
	}
	return &out, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/dashboard", h.Get)
}

func (h *Handler) Get(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}
