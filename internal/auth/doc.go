// Package auth verifies and issues the bearer credentials used at the
// websocket handshake and on the HTTP API.
//
// Tokens are HS256 JWTs carrying the user id and username, valid 24 hours.
// Verification failures collapse into domain.ErrAuthFailed — the caller only
// needs to know the connection must be refused.
package auth
