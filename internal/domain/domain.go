package domain

import (
	"time"

	"github.com/google/uuid"
)

// ShapeType is the discriminant for the fixed set of drawable primitives.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeEllipse   ShapeType = "ellipse"
	ShapeDiamond   ShapeType = "diamond"
	ShapeLine      ShapeType = "line"
	ShapeArrow     ShapeType = "arrow"
	ShapePencil    ShapeType = "pencil"
	ShapeText      ShapeType = "text"
)

var shapeTypes = map[ShapeType]bool{
	ShapeRectangle: true,
	ShapeEllipse:   true,
	ShapeDiamond:   true,
	ShapeLine:      true,
	ShapeArrow:     true,
	ShapePencil:    true,
	ShapeText:      true,
}

// Valid reports whether t is one of the known shape discriminants.
func (t ShapeType) Valid() bool {
	return shapeTypes[t]
}

// Point is a single vertex of a freehand stroke.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is one drawable element on a room's canvas. The id is generated by
// the drawing client and must be unique within the room; UserID, RoomID and
// CreatedAt are stamped by the server when the shape is persisted.
type Shape struct {
	ID          string    `json:"id"`
	Type        ShapeType `json:"type"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Points      []Point   `json:"points,omitempty"`
	Text        string    `json:"text,omitempty"`
	StrokeColor string    `json:"strokeColor"`
	FillColor   string    `json:"fillColor"`
	StrokeWidth float64   `json:"strokeWidth"`
	UserID      string    `json:"user_id,omitempty"`
	RoomID      int64     `json:"room_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Clone returns a deep copy of the shape, including the points slice.
func (s Shape) Clone() Shape {
	c := s
	if s.Points != nil {
		c.Points = make([]Point, len(s.Points))
		copy(c.Points, s.Points)
	}
	return c
}

// Chat is a single persisted chat line in a room. Chats are append-only.
type Chat struct {
	ID        int64       `json:"id"`
	RoomID    int64       `json:"room_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	User      UserSummary `json:"user"`
}

// Room is a named canvas identified by its integer id. The websocket layer
// never materializes rooms; they exist here only for the HTTP API.
type Room struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	AdminID   uuid.UUID `json:"admin_id"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Photo        string    `json:"photo,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the author view embedded in chat messages and listings.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
}

// Summary returns the public view of a user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Name: u.Name}
}
