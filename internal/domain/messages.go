package domain

// MessageType discriminates websocket wire messages in both directions.
type MessageType string

const (
	MsgJoinRoom    MessageType = "join_room"
	MsgLeaveRoom   MessageType = "leave_room"
	MsgShape       MessageType = "shape"
	MsgDeleteShape MessageType = "delete_shape"
	MsgClearCanvas MessageType = "clear_canvas"
	MsgChat        MessageType = "chat"
	MsgUserJoined  MessageType = "user_joined"
	MsgUserLeft    MessageType = "user_left"
	MsgError       MessageType = "error"
)

// ClientMessage is the union of all client→server messages. Which fields are
// required depends on Type; Validate enforces that.
type ClientMessage struct {
	Type    MessageType `json:"type"`
	RoomID  int64       `json:"room_id"`
	Shape   *Shape      `json:"shape,omitempty"`
	ShapeID string      `json:"shape_id,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Validate checks the per-type required fields. It returns a *ProtocolError
// describing the first violation, or nil.
func (m *ClientMessage) Validate() error {
	if m.RoomID <= 0 {
		return NewProtocolError("room_id is required")
	}
	switch m.Type {
	case MsgJoinRoom, MsgLeaveRoom, MsgClearCanvas:
		return nil
	case MsgShape:
		if m.Shape == nil {
			return NewProtocolError("shape is required")
		}
		if m.Shape.ID == "" {
			return NewProtocolError("shape id is required")
		}
		if !m.Shape.Type.Valid() {
			return NewProtocolError("unknown shape type: " + string(m.Shape.Type))
		}
		return nil
	case MsgDeleteShape:
		if m.ShapeID == "" {
			return NewProtocolError("shape_id is required")
		}
		return nil
	case MsgChat:
		if m.Message == "" {
			return NewProtocolError("message is required")
		}
		return nil
	default:
		return NewProtocolError("unknown message type: " + string(m.Type))
	}
}

// ShapeMessage confirms a persisted shape to every member of the room,
// including the sender. Senders reconcile by shape id, not by exclusion.
type ShapeMessage struct {
	Type   MessageType `json:"type"`
	RoomID int64       `json:"room_id"`
	Shape  Shape       `json:"shape"`
}

func NewShapeMessage(roomID int64, shape Shape) ShapeMessage {
	return ShapeMessage{Type: MsgShape, RoomID: roomID, Shape: shape}
}

// DeleteShapeMessage tells room members to drop a shape by id.
type DeleteShapeMessage struct {
	Type    MessageType `json:"type"`
	RoomID  int64       `json:"room_id"`
	ShapeID string      `json:"shape_id"`
}

func NewDeleteShapeMessage(roomID int64, shapeID string) DeleteShapeMessage {
	return DeleteShapeMessage{Type: MsgDeleteShape, RoomID: roomID, ShapeID: shapeID}
}

// ClearCanvasMessage tells room members the whole canvas was purged.
type ClearCanvasMessage struct {
	Type   MessageType `json:"type"`
	RoomID int64       `json:"room_id"`
}

func NewClearCanvasMessage(roomID int64) ClearCanvasMessage {
	return ClearCanvasMessage{Type: MsgClearCanvas, RoomID: roomID}
}

// PresenceMessage announces a member joining or leaving a room.
type PresenceMessage struct {
	Type   MessageType `json:"type"`
	RoomID int64       `json:"room_id"`
	UserID string      `json:"user_id"`
}

func NewUserJoinedMessage(roomID int64, userID string) PresenceMessage {
	return PresenceMessage{Type: MsgUserJoined, RoomID: roomID, UserID: userID}
}

func NewUserLeftMessage(roomID int64, userID string) PresenceMessage {
	return PresenceMessage{Type: MsgUserLeft, RoomID: roomID, UserID: userID}
}

// ChatBroadcast carries a persisted chat line with its author summary.
type ChatBroadcast struct {
	Type    MessageType `json:"type"`
	RoomID  int64       `json:"room_id"`
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

func NewChatBroadcast(roomID int64, message string, user UserSummary) ChatBroadcast {
	return ChatBroadcast{Type: MsgChat, RoomID: roomID, Message: message, User: user}
}

// ErrorMessage is sent to a single peer; it never terminates the connection.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Message: message}
}
