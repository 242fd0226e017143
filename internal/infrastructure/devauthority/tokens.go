package devauthority

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pmaschool/authcore/internal/shared/biztime"
)

// Claims identify one server-side session.
type Claims struct {
	UserID    int64  `json:"uid"`
	Username  string `json:"username"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenService issues the session ids handed to clients as HS256 JWTs.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  biztime.Clock
}

func NewTokenService(secret string, ttl time.Duration, clock biztime.Clock) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
	}
}

func (s *TokenService) Issue(userID int64, username, sessionID string) (string, time.Time, error) {
	now := s.clock.Now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		UserID:    userID,
		Username:  username,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and expiry against the service clock.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
