package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/sweet-shop/internal/domain/models"
)

var ErrEmptySecret = errors.New("jwt secret is not set")

// NewToken генерирует JWT-токен для указанного пользователя с заданным временем жизни.
// Роль кладётся в claim is_admin, middleware собирает из него models.Caller.
func NewToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(user.ID, 10),
		"email":    user.Email,
		"is_admin": user.IsAdmin,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
