// Package client implements the Go client for the canvas websocket
// protocol: a connection manager with exponential-backoff reconnects, a
// local undo/redo history scoped to the user's own actions, and an
// id-deduplicated canvas state.
package client
