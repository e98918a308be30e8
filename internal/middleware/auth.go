package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenIssuer is the only accepted "iss" claim.
	TokenIssuer = "donasi-api"
	// TokenAudience is the only accepted "aud" claim.
	TokenAudience = "donasi-client"
)

// Locals keys written by the auth middleware.
const (
	LocalUserID   = "userID"
	LocalReauthAt = "reauthAt"
)

// TokenClaims is what the API reads from an access token.
type TokenClaims struct {
	UserID uint
	JTI    string
	// ReauthAt is the last time the holder re-entered a credential. Zero when
	// the token carries no reauth_at claim.
	ReauthAt time.Time
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// ParseToken verifies an HS256 access token and returns its claims.
func ParseToken(secret, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	out := &TokenClaims{UserID: uint(userID)}
	if jti, ok := claims["jti"].(string); ok {
		out.JTI = jti
	}
	// Numeric JSON claims decode as float64.
	if ra, ok := claims["reauth_at"].(float64); ok && ra > 0 {
		out.ReauthAt = time.Unix(int64(ra), 0).UTC()
	}
	return out, nil
}

// IssueToken signs an access token for userID. A non-zero reauthAt is
// embedded as the reauth_at claim.
func IssueToken(secret string, userID uint, reauthAt time.Time, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": TokenIssuer,
		"aud": TokenAudience,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.NewString(),
	}
	if !reauthAt.IsZero() {
		claims["reauth_at"] = reauthAt.Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Reauthenticated reports whether the current request carries a credential
// re-verified within window of now.
func Reauthenticated(c *fiber.Ctx, window time.Duration, now time.Time) bool {
	at, ok := c.Locals(LocalReauthAt).(time.Time)
	if !ok || at.IsZero() {
		return false
	}
	age := now.Sub(at)
	return age >= -time.Minute && age <= window
}

// UserID returns the authenticated user id stored by the auth middleware.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalUserID).(uint)
	return id, ok && id != 0
}
