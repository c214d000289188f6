package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/sweet-shop/internal/domain/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserStorage interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	// HasUsers нужен для регистрации: первый пользователь становится админом
	HasUsers(ctx context.Context) (bool, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Email, &user.PassHash, &user.IsAdmin, &user.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// получение уже существующего пользователя
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, email, pass_hash, is_admin, is_active FROM users WHERE email = $1", email)
	return scanUser(row)
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, email, pass_hash, is_admin, is_active FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (email, pass_hash, is_admin, is_active) VALUES ($1, $2, $3, $4) RETURNING id",
		user.Email, user.PassHash, user.IsAdmin, user.IsActive,
	).Scan(&id)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return user, nil
}

func (r *userRepository) HasUsers(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM users)").Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check users: %w", err)
	}
	return exists, nil
}

// ListUsers возвращает всех пользователей по порядку регистрации
func (r *userRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, email, pass_hash, is_admin, is_active FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
