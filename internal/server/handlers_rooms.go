package server

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type createRoomRequest struct {
	Slug string `json:"slug"`
}

func (s *Server) handleCreateRoom(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Slug) < 3 || len(req.Slug) > 40 || !slugPattern.MatchString(req.Slug) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "slug must be 3-40 lowercase characters, digits or hyphens"})
	}

	room, err := s.repos.Rooms.Create(c.Request().Context(), req.Slug, identity.UserID)
	if errors.Is(err, domain.ErrSlugTaken) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "slug already taken"})
	}
	if err != nil {
		slog.Error("Failed to create room", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusCreated, room)
}

// resolveRoom loads the room named by the :slug path parameter, writing the
// error response itself when the lookup fails.
func (s *Server) resolveRoom(c echo.Context) (*domain.Room, error) {
	room, err := s.repos.Rooms.GetBySlug(c.Request().Context(), c.Param("slug"))
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "room not found"})
	}
	if err != nil {
		slog.Error("Failed to load room", "slug", c.Param("slug"), "error", err)
		return nil, c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return room, nil
}

func (s *Server) handleGetRoom(c echo.Context) error {
	room, err := s.resolveRoom(c)
	if room == nil {
		return err
	}
	return c.JSON(http.StatusOK, room)
}

func (s *Server) handleListShapes(c echo.Context) error {
	room, err := s.resolveRoom(c)
	if room == nil {
		return err
	}

	shapes, err := s.repos.Shapes.ListByRoom(c.Request().Context(), room.ID)
	if err != nil {
		slog.Error("Failed to list shapes", "room_id", room.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, map[string]any{"shapes": shapes})
}

func (s *Server) handleListChats(c echo.Context) error {
	room, err := s.resolveRoom(c)
	if room == nil {
		return err
	}

	chats, err := s.repos.Chats.ListByRoom(c.Request().Context(), room.ID)
	if err != nil {
		slog.Error("Failed to list chats", "room_id", room.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, map[string]any{"chats": chats})
}

// handleClearShapes wipes a room's canvas over HTTP. Only the room admin
// may do this; the purge is announced to connected members like any other
// clear.
func (s *Server) handleClearShapes(c echo.Context) error {
	identity, ok := identityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	room, err := s.resolveRoom(c)
	if room == nil {
		return err
	}
	if room.AdminID != identity.UserID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "only the room admin can clear the canvas"})
	}

	if err := s.repos.Shapes.DeleteAllInRoom(c.Request().Context(), room.ID); err != nil {
		slog.Error("Failed to clear shapes", "room_id", room.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	s.broadcaster.Broadcast(room.ID, domain.NewClearCanvasMessage(room.ID), nil)

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
