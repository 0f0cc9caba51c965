package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is the iss claim of every token the relay mints and accepts.
const tokenIssuer = "relay"

// userKey is the fiber Locals key holding the authenticated user.
const userKey = "relay.user"

// ErrInvalidToken is returned for bearer tokens that fail validation.
var ErrInvalidToken = errors.New("invalid token")

// IssueToken creates a signed HS256 JWT naming user as its subject.
func IssueToken(secret, user string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("cannot sign token with an empty secret")
	}
	if user == "" {
		return "", errors.New("cannot issue token for an empty user")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   user,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and validates a JWT, returning its subject.
func ValidateToken(secret, tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// requireAuth rejects requests without a valid bearer token and stores the
// token subject as the calling user.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	tokenStr, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || tokenStr == "" {
		return unauthorized(c, "missing bearer token")
	}

	user, err := ValidateToken(s.config.JWTSecret, tokenStr)
	if err != nil {
		s.logger.Debug("rejected bearer token", "path", c.Path(), "error", err)
		return unauthorized(c, "invalid bearer token")
	}

	c.Locals(userKey, user)
	return c.Next()
}

// userFrom returns the user requireAuth stored on c.
func userFrom(c *fiber.Ctx) string {
	user, _ := c.Locals(userKey).(string)
	return user
}

func unauthorized(c *fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="relay"`)
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: msg, Code: CodeUnauthorized})
}
