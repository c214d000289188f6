package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/linemk/sweet-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/sweet-shop/internal/service"
)

// AuthRequest представляет структуру запроса для аутентификации с тегами валидации
type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// TokenResponse представляет структуру ответа с JWT-токеном
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserRole    string `json:"user_role"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
	IsActive bool   `json:"is_active"`
}

// userResponse не отдаёт хэш пароля
func userResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		IsAdmin:  user.IsAdmin,
		IsActive: user.IsActive,
	}
}

func tokenResponse(token string, user *models.User) TokenResponse {
	role := "user"
	if user.IsAdmin {
		role = "admin"
	}
	return TokenResponse{AccessToken: token, TokenType: "bearer", UserRole: role}
}

// RegisterHandler обрабатывает POST /api/auth/register
func RegisterHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req AuthRequest
		if err := decodeAndValidate(r, &req); err != nil {
			logger.Warn("invalid request", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		token, user, err := authService.Register(r.Context(), req.Email, req.Password)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, tokenResponse(token, user))
	}
}

// TokenHandler обрабатывает POST /api/auth/token.
// Принимает OAuth2 форму (username/password) или JSON тело AuthRequest.
func TokenHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TokenHandler"
		logger := log.With(slog.String("op", op))

		var email, password string
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			if err := r.ParseForm(); err != nil {
				writeError(w, logger, http.StatusBadRequest, "invalid request")
				return
			}
			email, password = r.PostForm.Get("username"), r.PostForm.Get("password")
			if email == "" || password == "" {
				writeError(w, logger, http.StatusBadRequest, "validation error")
				return
			}
		} else {
			var req AuthRequest
			if err := decodeAndValidate(r, &req); err != nil {
				logger.Warn("invalid request", slog.Any("error", err))
				writeError(w, logger, http.StatusBadRequest, "validation error")
				return
			}
			email, password = req.Email, req.Password
		}

		token, user, err := authService.Login(r.Context(), email, password)
		if err != nil {
			if status, _ := errorStatus(err); status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, tokenResponse(token, user))
	}
}

// MeHandler обрабатывает GET /api/user/me
func MeHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MeHandler"
		logger := log.With(slog.String("op", op))

		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := authService.Me(r.Context(), caller)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, userResponse(user))
	}
}

// ListUsersHandler обрабатывает GET /api/user/all (только админ)
func ListUsersHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ListUsersHandler"))

		caller, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		users, err := authService.ListUsers(r.Context(), caller)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		resp := make([]UserResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, userResponse(u))
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}
