package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

// roomColumns must match the Scan order in scanRoom.
const roomColumns = `id, slug, admin_id, created_at`

// RoomRepo implements domain.RoomRepository backed by PostgreSQL.
type RoomRepo struct {
	pool *pgxpool.Pool
}

// NewRoomRepo creates a RoomRepo from the shared connection pool.
func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var room domain.Room
	err := row.Scan(&room.ID, &room.Slug, &room.AdminID, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepo) Create(ctx context.Context, slug string, adminID uuid.UUID) (*domain.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, `
		INSERT INTO rooms (slug, admin_id)
		VALUES ($1, $2)
		RETURNING `+roomColumns,
		slug, adminID))
	if isUniqueViolation(err) {
		return nil, domain.ErrSlugTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

func (r *RoomRepo) GetBySlug(ctx context.Context, slug string) (*domain.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by slug: %w", err)
	}
	return room, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
