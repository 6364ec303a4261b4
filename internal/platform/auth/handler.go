package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	auth         *Authenticator
	secureCookie bool
}

func NewHandler(a *Authenticator, secureCookie bool) *Handler {
	return &Handler{auth: a, secureCookie: secureCookie}
}

// RegisterRoutes mounts the login, logout and session endpoints. The group must
// run SessionMiddleware. loginMW applies to the login route only.
func (h *Handler) RegisterRoutes(g *echo.Group, loginMW ...echo.MiddlewareFunc) {
	g.POST("/auth/login", h.Login, loginMW...)
	g.POST("/auth/logout", h.Logout)
	g.GET("/auth/session", h.CurrentSession)
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginResponse struct {
	Token   string   `json:"token"`
	Session *Session `json:"session"`
}

type sessionResponse struct {
	Authenticated bool     `json:"authenticated"`
	Session       *Session `json:"session"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		return err
	}
	c.SetCookie(h.cookie(token, sess.ExpiresAt))
	return c.JSON(http.StatusOK, loginResponse{Token: token, Session: sess})
}

func (h *Handler) Logout(c echo.Context) error {
	if token := TokenFromRequest(c.Request()); token != "" {
		h.auth.Logout(token)
	}
	expired := h.cookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	c.SetCookie(expired)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) CurrentSession(c echo.Context) error {
	sess := SessionFromContext(c.Request().Context())
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: sess != nil, Session: sess})
}

func (h *Handler) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
