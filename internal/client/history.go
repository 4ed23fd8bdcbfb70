package client

import "github.com/nishchay-veer/canvas-app/internal/domain"

// ActionType classifies a recorded user action.
type ActionType string

// ActionAdd records that the local user placed a shape on the canvas.
const ActionAdd ActionType = "add"

// Action is one entry in the per-user action log. Undoing an add removes
// the shape; redoing it puts the recorded shape back.
type Action struct {
	Type    ActionType
	ShapeID string
	Shape   domain.Shape
}

// History tracks two parallel records of local edits: whole-canvas
// snapshots and a log of the local user's own actions. Undo and redo walk
// the action log, so a user only ever reverts their own work even when the
// canvas carries shapes from everyone in the room.
type History struct {
	userID string

	snapshots     [][]domain.Shape
	snapshotIndex int

	actions     []Action
	actionIndex int
}

// NewHistory creates an empty history for the given local user. The
// initial snapshot is the empty canvas.
func NewHistory(userID string) *History {
	return &History{
		userID:        userID,
		snapshots:     [][]domain.Shape{{}},
		snapshotIndex: 0,
		actionIndex:   -1,
	}
}

// RecordAction appends a local action. Any actions undone but not yet
// redone are discarded: a new edit starts a fresh future.
func (h *History) RecordAction(a Action) {
	h.actions = h.actions[:h.actionIndex+1]
	h.actions = append(h.actions, a)
	h.actionIndex++
}

// RecordSnapshot stores a copy of the full canvas state. The redo tail of
// the snapshot log is discarded first.
func (h *History) RecordSnapshot(shapes []domain.Shape) {
	h.snapshots = h.snapshots[:h.snapshotIndex+1]
	h.snapshots = append(h.snapshots, cloneShapes(shapes))
	h.snapshotIndex++
}

// CanUndo reports whether an undoable local action exists.
func (h *History) CanUndo() bool {
	return h.actionIndex >= 0
}

// CanRedo reports whether a previously undone action can be replayed.
func (h *History) CanRedo() bool {
	return h.actionIndex < len(h.actions)-1
}

// Undo reverts the most recent local action against the given canvas
// state. It removes only the shape matching both the recorded id and the
// local user id, so a colliding id from another user survives. The second
// return value is the reverted action; callers use it to tell the server
// the shape is gone. Returns ok=false when nothing is undoable.
func (h *History) Undo(current []domain.Shape) ([]domain.Shape, Action, bool) {
	if !h.CanUndo() {
		return nil, Action{}, false
	}

	a := h.actions[h.actionIndex]
	h.actionIndex--

	updated := make([]domain.Shape, 0, len(current))
	for _, s := range current {
		if s.ID == a.ShapeID && s.UserID == h.userID {
			continue
		}
		updated = append(updated, s)
	}

	h.RecordSnapshot(updated)
	return updated, a, true
}

// Redo replays the most recently undone action. The recorded shape is
// restored exactly as it was drawn. Returns ok=false when the redo log is
// empty.
func (h *History) Redo(current []domain.Shape) ([]domain.Shape, Action, bool) {
	if !h.CanRedo() {
		return nil, Action{}, false
	}

	h.actionIndex++
	a := h.actions[h.actionIndex]

	updated := cloneShapes(current)
	updated = append(updated, a.Shape.Clone())

	h.RecordSnapshot(updated)
	return updated, a, true
}

func cloneShapes(shapes []domain.Shape) []domain.Shape {
	out := make([]domain.Shape, 0, len(shapes))
	for _, s := range shapes {
		out = append(out, s.Clone())
	}
	return out
}
