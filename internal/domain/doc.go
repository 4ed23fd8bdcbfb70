// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files: domain.go (Shape, Chat, Room, User), messages.go
// (websocket wire format), errors.go (sentinels + connection-level error
// taxonomy), repository.go (store contracts). No implementation code — just
// contracts, so the websocket, postgres and client packages never import
// each other.
package domain
