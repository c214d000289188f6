package jwtmiddleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/sweet-shop/internal/domain/models"
)

type contextKey string

const CallerKey contextKey = "caller"

// writeDetail отвечает тем же JSON {"detail": ...}, что и обработчики
func writeDetail(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// NewJWTMiddleware создаёт middleware для проверки JWT и кладёт models.Caller в контекст запроса.
func NewJWTMiddleware(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		panic("jwt secret is not set")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeDetail(w, http.StatusUnauthorized, "missing token")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeDetail(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeDetail(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeDetail(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			sub, ok := claims["sub"].(string)
			if !ok {
				writeDetail(w, http.StatusUnauthorized, "invalid token claims: sub not found")
				return
			}
			userID, err := strconv.ParseInt(sub, 10, 64)
			if err != nil {
				writeDetail(w, http.StatusUnauthorized, "invalid token claims: invalid user id")
				return
			}

			// отсутствующий is_admin читается как обычный пользователь
			isAdmin, _ := claims["is_admin"].(bool)

			caller := models.Caller{UserID: userID, IsAdmin: isAdmin}
			ctx := context.WithValue(r.Context(), CallerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin пропускает дальше только администраторов. Ставится после NewJWTMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := FromContext(r.Context())
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !caller.IsAdmin {
			writeDetail(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext извлекает вызывающего пользователя из контекста.
func FromContext(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(CallerKey).(models.Caller)
	return caller, ok
}
