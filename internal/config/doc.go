// Package config loads application configuration from environment variables.
//
// DATABASE_URL and JWT_SECRET are required; everything else has a sensible
// default. Validation happens once in Load() so the rest of the code can
// trust the values.
package config
