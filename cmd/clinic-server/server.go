package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ozonelife/clinic/internal/domain/appointments"
	"github.com/ozonelife/clinic/internal/domain/catalog"
	"github.com/ozonelife/clinic/internal/domain/dashboard"
	"github.com/ozonelife/clinic/internal/domain/entities"
	"github.com/ozonelife/clinic/internal/domain/patients"
	"github.com/ozonelife/clinic/internal/domain/sales"
	"github.com/ozonelife/clinic/internal/platform/auth"
	"github.com/ozonelife/clinic/internal/platform/blobstore"
	"github.com/ozonelife/clinic/internal/platform/db"
	"github.com/ozonelife/clinic/internal/platform/middleware"
	"github.com/ozonelife/clinic/internal/platform/sandbox"
	"github.com/ozonelife/clinic/internal/platform/telemetry"
)

const serviceName = "clinic-server"

// authenticator builds the admin authenticator, hashing ADMIN_PASSWORD when
// no precomputed hash is configured.
func (a *app) authenticator(revoked *auth.TokenRevocationStore) (*auth.Authenticator, error) {
	hash := []byte(a.cfg.AdminPasswordHash)
	if len(hash) == 0 {
		var err error
		if hash, err = auth.HashPassword(a.cfg.AdminPassword, 0); err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
	}
	secret := a.cfg.SessionSecret
	if secret == "" {
		a.logger.Warn().Msg("SESSION_SECRET not set, using an insecure development secret")
		secret = "development-only-session-secret!!"
	}
	return auth.NewAuthenticator(auth.Config{
		Email:        a.cfg.AdminEmail,
		PasswordHash: hash,
		Secret:       []byte(secret),
		TTL:          a.cfg.SessionTTL,
	}, revoked)
}

func (a *app) blobStore() (blobstore.BlobStore, error) {
	if a.cfg.UploadDir == "" {
		return blobstore.NewInMemoryBlobStore(), nil
	}
	return blobstore.NewFSBlobStore(a.cfg.UploadDir)
}

// server builds the HTTP surface.
func (a *app) server(authn *auth.Authenticator, blobs blobstore.BlobStore) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)

	e.Use(a.metrics.Middleware())
	e.Use(telemetry.TracingMiddleware(serviceName))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.SecurityHeaders(a.cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit, a.cfg.UploadLimit, "/api/v1/uploads"))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout, "/api/v1/uploads", "/api/v1/sales/export.csv"))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}
	e.GET("/metrics", a.metrics.Handler())

	blobHandler := blobstore.NewBlobHandler(blobs, a.cfg.PublicBaseURL)
	blobHandler.RegisterPublicRoutes(e)

	api := e.Group("/api/v1", auth.SessionMiddleware(authn))
	catalog.NewHandler(a.catalog).RegisterPublicRoutes(api)
	auth.NewHandler(authn, a.cfg.IsProduction()).RegisterRoutes(api, middleware.RateLimit(middleware.LoginRateLimitConfig()))

	protected := api.Group("", auth.RequireSession())
	blobHandler.RegisterRoutes(protected)
	entities.NewHandler(a.registry).RegisterRoutes(protected)
	patients.NewHandler(a.patients).RegisterRoutes(protected)
	appointments.NewHandler(a.appointments).RegisterRoutes(protected)
	sales.NewHandler(a.sales).RegisterRoutes(protected)
	dashboard.NewHandler(a.dashboard).RegisterRoutes(protected)
	if a.cfg.IsDev() {
		sandbox.NewSeedHandler(a.seedTargets()).RegisterRoutes(protected)
	}

	return e
}
