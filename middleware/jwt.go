package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Claims is the token payload issued by the auth service: {id, role}.
type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token. The service never issues tokens itself;
// this exists for tooling and tests.
func GenerateToken(secret, id, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:   id,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ValidateToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.ID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}

// JWTMiddleware authenticates a Bearer token or the "token" cookie and sets
// the same locals as UserContextMiddleware.
func JWTMiddleware(secret string, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies("token")
		if bearer := strings.TrimSpace(c.Get("Authorization")); len(bearer) > 7 && strings.EqualFold(bearer[:7], "Bearer ") {
			raw = strings.TrimSpace(bearer[7:])
		}
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "UNAUTHORIZED",
				"message": "authentication token missing",
			})
		}

		claims, err := ValidateToken(secret, raw)
		if err != nil {
			log.WithError(err).WithField("path", c.Path()).Warn("rejected token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "UNAUTHORIZED",
				"message": "invalid authentication token",
			})
		}

		var roles []string
		if claims.Role != "" {
			roles = []string{strings.ToLower(claims.Role)}
		}
		c.Locals(localUserID, claims.ID)
		c.Locals(localUserRoles, roles)
		return c.Next()
	}
}
