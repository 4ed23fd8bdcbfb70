package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by repositories and the auth verifier.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrSlugTaken          = errors.New("room slug already taken")
	ErrShapeIDTaken       = errors.New("shape id already exists in room")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthFailed         = errors.New("invalid or expired token")
)

// ProtocolError marks a malformed or invalid client message. It is
// recoverable: the sender gets an error message and the connection stays
// open.
type ProtocolError struct {
	Reason string
}

func NewProtocolError(reason string) *ProtocolError {
	return &ProtocolError{Reason: reason}
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// StoreError marks a failed persistence call. The triggering action is not
// broadcast, so peers never observe unpersisted state.
type StoreError struct {
	Op    string
	Cause error
}

func NewStoreError(op string, cause error) *StoreError {
	return &StoreError{Op: op, Cause: cause}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
