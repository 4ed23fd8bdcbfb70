package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

func ownShape(id, userID string) domain.Shape {
	return domain.Shape{ID: id, Type: domain.ShapeRectangle, UserID: userID, X: 1, Y: 1}
}

func TestHistory_UndoRemovesOwnShapeOnly(t *testing.T) {
	h := NewHistory("me")

	mine := ownShape("s1", "me")
	theirs := ownShape("s2", "other")
	h.RecordAction(Action{Type: ActionAdd, ShapeID: "s1", Shape: mine})

	updated, action, ok := h.Undo([]domain.Shape{mine, theirs})
	require.True(t, ok)
	assert.Equal(t, "s1", action.ShapeID)
	require.Len(t, updated, 1)
	assert.Equal(t, "s2", updated[0].ID)
}

func TestHistory_UndoSparesCollidingIDFromOtherUser(t *testing.T) {
	h := NewHistory("me")

	mine := ownShape("shared-id", "me")
	foreign := ownShape("shared-id", "other")
	h.RecordAction(Action{Type: ActionAdd, ShapeID: "shared-id", Shape: mine})

	updated, _, ok := h.Undo([]domain.Shape{mine, foreign})
	require.True(t, ok)
	// Only the shape matching both id and author goes away.
	require.Len(t, updated, 1)
	assert.Equal(t, "other", updated[0].UserID)
}

func TestHistory_RedoRestoresExactShape(t *testing.T) {
	h := NewHistory("me")

	mine := ownShape("s1", "me")
	mine.Points = []domain.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}
	h.RecordAction(Action{Type: ActionAdd, ShapeID: "s1", Shape: mine})

	afterUndo, _, ok := h.Undo([]domain.Shape{mine})
	require.True(t, ok)
	require.Empty(t, afterUndo)

	afterRedo, action, ok := h.Redo(afterUndo)
	require.True(t, ok)
	assert.Equal(t, "s1", action.ShapeID)
	require.Len(t, afterRedo, 1)
	assert.Equal(t, mine, afterRedo[0])
}

func TestHistory_NewActionTruncatesRedoTail(t *testing.T) {
	h := NewHistory("me")

	first := ownShape("s1", "me")
	h.RecordAction(Action{Type: ActionAdd, ShapeID: "s1", Shape: first})

	_, _, ok := h.Undo([]domain.Shape{first})
	require.True(t, ok)
	require.True(t, h.CanRedo())

	second := ownShape("s2", "me")
	h.RecordAction(Action{Type: ActionAdd, ShapeID: "s2", Shape: second})

	// The undone action is gone for good.
	assert.False(t, h.CanRedo())
	assert.True(t, h.CanUndo())
}

func TestHistory_EmptyLogsAreNoops(t *testing.T) {
	h := NewHistory("me")

	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	_, _, ok := h.Undo(nil)
	assert.False(t, ok)
	_, _, ok = h.Redo(nil)
	assert.False(t, ok)
}

func TestHistory_UndoRedoSequence(t *testing.T) {
	h := NewHistory("me")

	s1 := ownShape("s1", "me")
	s2 := ownShape("s2", "me")
	h.RecordAction(Action{Type: ActionAdd, ShapeID: "s1", Shape: s1})
	h.RecordAction(Action{Type: ActionAdd, ShapeID: "s2", Shape: s2})

	canvas := []domain.Shape{s1, s2}

	canvas, action, ok := h.Undo(canvas)
	require.True(t, ok)
	assert.Equal(t, "s2", action.ShapeID)
	require.Len(t, canvas, 1)

	canvas, action, ok = h.Undo(canvas)
	require.True(t, ok)
	assert.Equal(t, "s1", action.ShapeID)
	assert.Empty(t, canvas)
	assert.False(t, h.CanUndo())

	canvas, action, ok = h.Redo(canvas)
	require.True(t, ok)
	assert.Equal(t, "s1", action.ShapeID)
	require.Len(t, canvas, 1)

	canvas, action, ok = h.Redo(canvas)
	require.True(t, ok)
	assert.Equal(t, "s2", action.ShapeID)
	assert.Len(t, canvas, 2)
	assert.False(t, h.CanRedo())
}
