package domain

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists registered accounts.
type UserRepository interface {
	Create(ctx context.Context, username, name, photo, passwordHash string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// RoomRepository persists rooms and resolves slugs to integer ids.
type RoomRepository interface {
	Create(ctx context.Context, slug string, adminID uuid.UUID) (*Room, error)
	GetBySlug(ctx context.Context, slug string) (*Room, error)
}

// ShapeRepository is the durable store for canvas shapes. Create stamps the
// draft with userID, roomID and the server timestamp and returns the
// persisted copy. Delete and DeleteAllInRoom are idempotent.
type ShapeRepository interface {
	Create(ctx context.Context, roomID int64, userID uuid.UUID, draft Shape) (*Shape, error)
	ListByRoom(ctx context.Context, roomID int64) ([]Shape, error)
	Delete(ctx context.Context, roomID int64, shapeID string) error
	DeleteAllInRoom(ctx context.Context, roomID int64) error
}

// ChatRepository is the append-only store for room chat.
type ChatRepository interface {
	Create(ctx context.Context, roomID int64, userID uuid.UUID, message string) (*Chat, error)
	ListByRoom(ctx context.Context, roomID int64) ([]Chat, error)
}
