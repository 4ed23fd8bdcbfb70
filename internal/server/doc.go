// Package server wires the HTTP surface: the authenticated REST API for
// accounts, rooms and canvas history, the websocket endpoint that hands
// connections off to the session layer, and health and metrics routes.
package server
