package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nishchay-veer/canvas-app/internal/auth"
	"github.com/nishchay-veer/canvas-app/internal/domain"
)

const identityKey = "identity"

type signupRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Photo    string `json:"photo"`
	Password string `json:"password"`
}

type signinRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string             `json:"token"`
	User  domain.UserSummary `json:"user"`
}

func (r *signupRequest) validate() error {
	if len(r.Username) < 3 || len(r.Username) > 20 {
		return errors.New("username must be 3-20 characters")
	}
	if len(r.Name) < 1 || len(r.Name) > 50 {
		return errors.New("name must be 1-50 characters")
	}
	if len(r.Password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

func (s *Server) handleSignup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	user, err := s.repos.Users.Create(c.Request().Context(), req.Username, req.Name, req.Photo, hash)
	if errors.Is(err, domain.ErrUsernameTaken) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "username already taken"})
	}
	if err != nil {
		slog.Error("Failed to create user", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	token, err := s.verifier.Issue(user)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusCreated, authResponse{Token: token, User: user.Summary()})
}

func (s *Server) handleSignin(c echo.Context) error {
	var req signinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	user, err := s.repos.Users.GetByUsername(c.Request().Context(), req.Username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}
	if err != nil {
		slog.Error("Failed to load user", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	token, err := s.verifier.Issue(user)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, authResponse{Token: token, User: user.Summary()})
}

// requireAuth verifies the bearer token and stores the caller's identity in
// the request context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		}

		identity, err := s.verifier.Verify(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}

		c.Set(identityKey, identity)
		return next(c)
	}
}

func identityFrom(c echo.Context) (*auth.Identity, bool) {
	identity, ok := c.Get(identityKey).(*auth.Identity)
	return identity, ok
}
