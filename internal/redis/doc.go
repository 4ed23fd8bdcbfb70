// Package redis provides the Redis client wrapper and the cross-instance
// room broadcast relay built on Redis Pub/Sub.
package redis
