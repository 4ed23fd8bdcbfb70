package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

// chatColumns must match the Scan order in scanChat; the trailing columns
// carry the author summary joined from users.
const chatColumns = `c.id, c.room_id, c.user_id, c.message, c.created_at, u.id, u.username, u.name`

// ChatRepo implements domain.ChatRepository backed by PostgreSQL.
type ChatRepo struct {
	pool *pgxpool.Pool
}

// NewChatRepo creates a ChatRepo from the shared connection pool.
func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var chat domain.Chat
	err := row.Scan(
		&chat.ID, &chat.RoomID, &chat.UserID, &chat.Message, &chat.CreatedAt,
		&chat.User.ID, &chat.User.Username, &chat.User.Name,
	)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepo) Create(ctx context.Context, roomID int64, userID uuid.UUID, message string) (*domain.Chat, error) {
	chat, err := scanChat(r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO chats (room_id, user_id, message)
			VALUES ($1, $2, $3)
			RETURNING id, room_id, user_id, message, created_at
		)
		SELECT `+chatColumns+`
		FROM inserted c
		JOIN users u ON u.id = c.user_id`,
		roomID, userID, message))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (r *ChatRepo) ListByRoom(ctx context.Context, roomID int64) ([]domain.Chat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+chatColumns+`
		FROM chats c
		JOIN users u ON u.id = c.user_id
		WHERE c.room_id = $1
		ORDER BY c.created_at, c.id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]domain.Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}
