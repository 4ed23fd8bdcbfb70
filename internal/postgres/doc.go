// Package postgres provides the PostgreSQL-backed repositories for users,
// rooms, shapes and chat, plus connection pooling and embedded schema
// migrations guarded by an advisory lock.
package postgres
