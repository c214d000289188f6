package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

const keyPrefix = "order:"

// OrderCache хранит материализованные заказы в redis в виде JSON.
type OrderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOrderCache(rdb *redis.Client, ttl time.Duration) *OrderCache {
	return &OrderCache{rdb: rdb, ttl: ttl}
}

func orderKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

func (c *OrderCache) Get(ctx context.Context, id int64) (*models.Order, error) {
	raw, err := c.rdb.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to get cached order: %w", err)
	}

	var order models.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to decode cached order: %w", err)
	}
	return &order, nil
}

// encode не кэширует email владельца: он нужен только в админском списке.
func encode(order *models.Order) ([]byte, error) {
	cp := *order
	cp.OwnerEmail = ""
	raw, err := json.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	return raw, nil
}

// Set записывает заказ безусловно. Используется теми, кто только что изменил заказ.
func (c *OrderCache) Set(ctx context.Context, order *models.Order) error {
	raw, err := encode(order)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, orderKey(order.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache order: %w", err)
	}
	return nil
}

// Fill кладёт прочитанный из хранилища заказ, только если ключа ещё нет.
// Запись, сделанная Set после чтения, не затирается устаревшим снимком.
func (c *OrderCache) Fill(ctx context.Context, order *models.Order) error {
	raw, err := encode(order)
	if err != nil {
		return err
	}
	if err := c.rdb.SetNX(ctx, orderKey(order.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to fill cached order: %w", err)
	}
	return nil
}

func (c *OrderCache) Invalidate(ctx context.Context, id int64) error {
	if err := c.rdb.Del(ctx, orderKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate order: %w", err)
	}
	return nil
}

// New создаёт клиента и проверяет соединение.
func New(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
