// Package ws implements the real-time room synchronization subsystem.
//
// Three components: Registry (connection → user + joined rooms, the single
// owner of membership state), Broadcaster (serialize-once fan-out to a
// room's members, per-peer failure isolation), and Session (per-connection
// protocol handler: parse, validate membership, persist, broadcast).
// Conn wraps the transport with a buffered single-writer goroutine so slow
// peers never block a fan-out.
package ws
