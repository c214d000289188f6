package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"
	"github.com/linemk/sweet-shop/internal/domain/models"
)

// SweetStorage описывает методы для работы с каталогом.
type SweetStorage interface {
	CreateSweet(ctx context.Context, sweet *models.Sweet) (*models.Sweet, error)
	GetSweetByID(ctx context.Context, id int64) (*models.Sweet, error)
	ListSweets(ctx context.Context) ([]*models.Sweet, error)
	DeleteSweet(ctx context.Context, id int64) error
	// UpdateSweetTx перезаписывает товар целиком, строка должна быть заблокирована через LockSweetsTx.
	UpdateSweetTx(ctx context.Context, tx *sql.Tx, sweet *models.Sweet) error
	// LockSweetsTx читает товары с блокировкой строк до конца транзакции.
	// Отсутствующие id просто не попадают в результат.
	LockSweetsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Sweet, error)
	// DecrementStockTx условно списывает остаток, не давая ему уйти в минус.
	DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error
}

// sweetRepository — конкретная реализация интерфейса SweetStorage.
type sweetRepository struct {
	db *sql.DB
}

// NewSweetRepository создаёт новый репозиторий каталога.
func NewSweetRepository(db *sql.DB) SweetStorage {
	return &sweetRepository{db: db}
}

func scanSweet(row rowScanner) (*models.Sweet, error) {
	sweet := &models.Sweet{}
	err := row.Scan(&sweet.ID, &sweet.Name, &sweet.Category, &sweet.Description,
		&sweet.Price, &sweet.StockQuantity, &sweet.IsAvailable)
	if err != nil {
		return nil, err
	}
	return sweet, nil
}

func (r *sweetRepository) CreateSweet(ctx context.Context, sweet *models.Sweet) (*models.Sweet, error) {
	query := `INSERT INTO sweets (name, category, description, price, stock_quantity, is_available)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		sweet.Name, sweet.Category, sweet.Description, sweet.Price, sweet.StockQuantity, sweet.IsAvailable,
	).Scan(&sweet.ID)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return nil, ErrSweetExists
		}
		return nil, fmt.Errorf("failed to create sweet: %w", err)
	}
	return sweet, nil
}

// GetSweetByID ищет товар по id без блокировки.
func (r *sweetRepository) GetSweetByID(ctx context.Context, id int64) (*models.Sweet, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, category, description, price, stock_quantity, is_available FROM sweets WHERE id = $1", id)
	sweet, err := scanSweet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSweetNotFound
		}
		return nil, err
	}
	return sweet, nil
}

func (r *sweetRepository) ListSweets(ctx context.Context) ([]*models.Sweet, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, category, description, price, stock_quantity, is_available FROM sweets ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query sweets: %w", err)
	}
	defer rows.Close()

	var sweets []*models.Sweet
	for rows.Next() {
		sweet, err := scanSweet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweet: %w", err)
		}
		sweets = append(sweets, sweet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sweets, nil
}

func (r *sweetRepository) UpdateSweetTx(ctx context.Context, tx *sql.Tx, sweet *models.Sweet) error {
	query := `UPDATE sweets SET name = $1, category = $2, description = $3, price = $4, stock_quantity = $5, is_available = $6
	          WHERE id = $7`
	res, err := tx.ExecContext(ctx, query,
		sweet.Name, sweet.Category, sweet.Description, sweet.Price, sweet.StockQuantity, sweet.IsAvailable, sweet.ID)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return ErrSweetExists
		}
		return fmt.Errorf("failed to update sweet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSweetNotFound
	}
	return nil
}

func (r *sweetRepository) DeleteSweet(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sweets WHERE id = $1", id)
	if err != nil {
		// на товар ссылаются позиции заказов (ON DELETE RESTRICT)
		if pqCode(err) == codeForeignKeyViolation {
			return ErrSweetInUse
		}
		return fmt.Errorf("failed to delete sweet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSweetNotFound
	}
	return nil
}

func (r *sweetRepository) LockSweetsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Sweet, error) {
	// строки блокируются по возрастанию id, чтобы параллельные заказы не ловили deadlock
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	query := `SELECT id, name, category, description, price, stock_quantity, is_available
	          FROM sweets WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, pq.Array(sorted))
	if err != nil {
		if isContention(err) {
			return nil, fmt.Errorf("failed to lock sweets: %w: %w", ErrStockConflict, err)
		}
		return nil, fmt.Errorf("failed to lock sweets: %w", err)
	}
	defer rows.Close()

	catalog := make(map[int64]*models.Sweet, len(sorted))
	for rows.Next() {
		sweet, err := scanSweet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweet: %w", err)
		}
		catalog[sweet.ID] = sweet
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (r *sweetRepository) DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE sweets SET stock_quantity = stock_quantity - $1 WHERE id = $2 AND stock_quantity >= $1",
		quantity, id)
	if err != nil {
		if isContention(err) {
			return fmt.Errorf("failed to decrement stock: %w: %w", ErrStockConflict, err)
		}
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStockConflict
	}
	return nil
}
