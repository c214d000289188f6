package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/sweet-shop/internal/domain/models"
	security "github.com/linemk/sweet-shop/internal/jwt-new"
	"github.com/linemk/sweet-shop/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	log       *slog.Logger
	userRepo  storage.UserStorage
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:       log,
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (string, *models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Me(ctx context.Context, caller models.Caller) (*models.User, error)
	ListUsers(ctx context.Context, caller models.Caller) ([]*models.User, error)
}

// Register создаёт пользователя и сразу выдаёт ему токен.
// Первый зарегистрированный пользователь становится администратором.
// Пароль хэшируется через bcrypt, который автоматически добавляет соль.
func (a *AuthService) Register(ctx context.Context, email, password string) (string, *models.User, error) {
	const op = "auth.Register"
	email = strings.ToLower(strings.TrimSpace(email))
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("registering user")

	exists, err := a.userRepo.HasUsers(ctx)
	if err != nil {
		logger.Error("failed to check users", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := a.userRepo.CreateUser(ctx, &models.User{
		Email:    email,
		PassHash: passHash,
		IsAdmin:  !exists,
		IsActive: true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("email already registered")
			return "", nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	token, err := security.NewToken(user, a.jwtSecret, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user registered", slog.Int64("userID", user.ID), slog.Bool("admin", user.IsAdmin))
	return token, user, nil
}

// Login проверяет пароль и выдаёт JWT-токен с ролью пользователя.
func (a *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	const op = "auth.Login"
	email = strings.ToLower(strings.TrimSpace(email))
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if !user.IsActive {
		logger.Warn("inactive user")
		return "", nil, fmt.Errorf("%s: %w", op, ErrInactiveUser)
	}

	token, err := security.NewToken(user, a.jwtSecret, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return token, user, nil
}

// Me возвращает профиль вызывающего пользователя.
func (a *AuthService) Me(ctx context.Context, caller models.Caller) (*models.User, error) {
	const op = "auth.Me"

	user, err := a.userRepo.GetUserByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		a.log.Error("failed to get user", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%s: %w", op, ErrInactiveUser)
	}
	return user, nil
}

// ListUsers отдаёт всех пользователей, только администратору.
func (a *AuthService) ListUsers(ctx context.Context, caller models.Caller) ([]*models.User, error) {
	const op = "auth.ListUsers"
	logger := a.log.With(slog.String("op", op), slog.Int64("userID", caller.UserID))

	if !caller.IsAdmin {
		logger.Warn("user listing denied")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	users, err := a.userRepo.ListUsers(ctx)
	if err != nil {
		logger.Error("failed to list users", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
	}
	return users, nil
}
