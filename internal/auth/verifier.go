package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/nishchay-veer/canvas-app/internal/domain"
)

const tokenTTL = 24 * time.Hour

// Identity is the authenticated principal extracted from a bearer token.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Claims is the JWT payload issued at signin and verified at the websocket
// handshake. Field names match the tokens issued by earlier deployments.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier validates bearer credentials and issues new ones.
type Verifier struct {
	secret []byte
	clock  clockwork.Clock
}

func NewVerifier(secret string, clock clockwork.Clock) *Verifier {
	return &Verifier{secret: []byte(secret), clock: clock}
}

// Issue signs a token for the user, valid for 24 hours.
func (v *Verifier) Issue(user *domain.User) (string, error) {
	now := v.clock.Now()
	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token. Any failure maps to
// domain.ErrAuthFailed; callers treat it as fatal to the connection.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, domain.ErrAuthFailed
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.clock.Now))
	if err != nil {
		return nil, errors.Join(domain.ErrAuthFailed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrAuthFailed
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, errors.Join(domain.ErrAuthFailed, err)
	}

	return &Identity{UserID: userID, Username: claims.Username}, nil
}
