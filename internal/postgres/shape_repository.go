package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

// shapeColumns must match the Scan order in scanShape.
const shapeColumns = `shape_id, room_id, user_id, shape_type, x, y, width, height, points, text, stroke_color, fill_color, stroke_width, created_at`

// ShapeRepo implements domain.ShapeRepository backed by PostgreSQL.
// Freehand points are stored as a JSONB array.
type ShapeRepo struct {
	pool *pgxpool.Pool
}

// NewShapeRepo creates a ShapeRepo from the shared connection pool.
func NewShapeRepo(pool *pgxpool.Pool) *ShapeRepo {
	return &ShapeRepo{pool: pool}
}

func scanShape(row pgx.Row) (*domain.Shape, error) {
	var (
		shape  domain.Shape
		userID uuid.UUID
		points []byte
	)
	err := row.Scan(
		&shape.ID, &shape.RoomID, &userID, &shape.Type,
		&shape.X, &shape.Y, &shape.Width, &shape.Height,
		&points, &shape.Text, &shape.StrokeColor, &shape.FillColor,
		&shape.StrokeWidth, &shape.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	shape.UserID = userID.String()
	if len(points) > 0 {
		if err := json.Unmarshal(points, &shape.Points); err != nil {
			return nil, fmt.Errorf("failed to decode shape points: %w", err)
		}
	}
	return &shape, nil
}

func encodePoints(points []domain.Point) ([]byte, error) {
	if points == nil {
		return nil, nil
	}
	return json.Marshal(points)
}

// Create persists a client-drawn shape, stamping it with the author, the
// room and the server timestamp. A duplicate shape id within the room
// yields domain.ErrShapeIDTaken.
func (r *ShapeRepo) Create(ctx context.Context, roomID int64, userID uuid.UUID, draft domain.Shape) (*domain.Shape, error) {
	points, err := encodePoints(draft.Points)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shape points: %w", err)
	}

	shape, err := scanShape(r.pool.QueryRow(ctx, `
		INSERT INTO shapes (room_id, shape_id, user_id, shape_type, x, y, width, height, points, text, stroke_color, fill_color, stroke_width)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+shapeColumns,
		roomID, draft.ID, userID, draft.Type,
		draft.X, draft.Y, draft.Width, draft.Height,
		points, draft.Text, draft.StrokeColor, draft.FillColor, draft.StrokeWidth))
	if isUniqueViolation(err) {
		return nil, domain.ErrShapeIDTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create shape: %w", err)
	}
	return shape, nil
}

func (r *ShapeRepo) ListByRoom(ctx context.Context, roomID int64) ([]domain.Shape, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+shapeColumns+` FROM shapes WHERE room_id = $1 ORDER BY created_at, shape_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shapes: %w", err)
	}
	defer rows.Close()

	shapes := make([]domain.Shape, 0)
	for rows.Next() {
		shape, err := scanShape(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shape: %w", err)
		}
		shapes = append(shapes, *shape)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list shapes: %w", err)
	}
	return shapes, nil
}

// Delete removes a shape by id. Deleting an unknown id is a no-op.
func (r *ShapeRepo) Delete(ctx context.Context, roomID int64, shapeID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM shapes WHERE room_id = $1 AND shape_id = $2`, roomID, shapeID)
	if err != nil {
		return fmt.Errorf("failed to delete shape: %w", err)
	}
	return nil
}

// DeleteAllInRoom purges the room's canvas. An empty canvas is a no-op.
func (r *ShapeRepo) DeleteAllInRoom(ctx context.Context, roomID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM shapes WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("failed to clear shapes: %w", err)
	}
	return nil
}
