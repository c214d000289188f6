package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет заголовок заказа со статусом Pending в рамках транзакции.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, ownerID int64, total decimal.Decimal) (*models.Order, error)
	// CreateOrderItemTx вставляет позицию заказа с зафиксированной ценой.
	CreateOrderItemTx(ctx context.Context, tx *sql.Tx, orderID, sweetID int64, quantity int, price decimal.Decimal) (*models.OrderItem, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// ListOrders возвращает все заказы с email владельца (JOIN с users).
	ListOrders(ctx context.Context) ([]*models.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID int64) ([]*models.Order, error)
	// UpdateOrderStatus перезаписывает статус и возвращает новый updated_at.
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (time.Time, error)
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, ownerID int64, total decimal.Decimal) (*models.Order, error) {
	order := &models.Order{
		OwnerID:    ownerID,
		Status:     models.StatusPending,
		TotalPrice: total,
		Items:      []models.OrderItem{},
	}
	query := `INSERT INTO orders (owner_id, status, total_price, created_at, updated_at)
	          VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query, ownerID, string(models.StatusPending), total).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, orderID, sweetID int64, quantity int, price decimal.Decimal) (*models.OrderItem, error) {
	item := &models.OrderItem{
		OrderID:         orderID,
		SweetID:         sweetID,
		Quantity:        quantity,
		PriceAtPurchase: price,
	}
	query := `INSERT INTO order_items (order_id, sweet_id, quantity, price_at_purchase)
	          VALUES ($1, $2, $3, $4) RETURNING id`
	if err := tx.QueryRowContext(ctx, query, orderID, sweetID, quantity, price).Scan(&item.ID); err != nil {
		return nil, fmt.Errorf("failed to create order item: %w", err)
	}
	return item, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order := &models.Order{}
	var status string
	row := r.db.QueryRowContext(ctx,
		"SELECT id, owner_id, status, total_price, created_at, updated_at FROM orders WHERE id = $1", id)
	if err := row.Scan(&order.ID, &order.OwnerID, &status, &order.TotalPrice, &order.CreatedAt, &order.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	order.Status = models.OrderStatus(status)

	if err := r.attachItems(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) ListOrders(ctx context.Context) ([]*models.Order, error) {
	query := `
		SELECT o.id, o.owner_id, u.email, o.status, o.total_price, o.created_at, o.updated_at
		FROM orders o
		JOIN users u ON o.owner_id = u.id
		ORDER BY o.created_at DESC, o.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		var status string
		if err := rows.Scan(&order.ID, &order.OwnerID, &order.OwnerEmail, &status, &order.TotalPrice, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Status = models.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListOrdersByOwner(ctx context.Context, ownerID int64) ([]*models.Order, error) {
	query := `
		SELECT id, owner_id, status, total_price, created_at, updated_at
		FROM orders
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		var status string
		if err := rows.Scan(&order.ID, &order.OwnerID, &status, &order.TotalPrice, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Status = models.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at",
		string(status), id,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrOrderNotFound
		}
		return time.Time{}, fmt.Errorf("failed to update order status: %w", err)
	}
	return updatedAt, nil
}

// attachItems подгружает позиции одним запросом, имя товара берётся JOIN-ом с sweets
func (r *orderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for _, order := range orders {
		order.Items = []models.OrderItem{}
		ids = append(ids, order.ID)
		byID[order.ID] = order
	}

	query := `
		SELECT oi.id, oi.order_id, oi.sweet_id, s.name, oi.quantity, oi.price_at_purchase
		FROM order_items oi
		JOIN sweets s ON oi.sweet_id = s.id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.SweetID, &item.SweetName, &item.Quantity, &item.PriceAtPurchase); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return rows.Err()
}
