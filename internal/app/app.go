package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/linemk/sweet-shop/internal/app/handlers"
	"github.com/linemk/sweet-shop/internal/cache"
	"github.com/linemk/sweet-shop/internal/config"
	"github.com/linemk/sweet-shop/internal/events"
	"github.com/linemk/sweet-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/sweet-shop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/sweet-shop/internal/service"
	"github.com/linemk/sweet-shop/internal/storage"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	Redis  *redis.Client
	Events *events.Publisher
	Router http.Handler
}

// Services — всё, что нужно роутеру
type Services struct {
	Auth    service.AuthServiceInterface
	Catalog service.CatalogService
	Orders  service.OrderService
}

// NewApp создаёт новый экземпляр App: БД, кэш заказов, издатель событий и роутер
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	// реализуем подключение к БД через DSN
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	var orderCache service.OrderCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = rdb
		orderCache = cache.NewOrderCache(rdb, cfg.Redis.OrderTTL)
		log.Info("order cache enabled", slog.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("redis address is empty, order cache disabled")
	}

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		app.Events = events.NewPublisher(log, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Service)
		publisher = app.Events
		log.Info("order events enabled", slog.String("topic", cfg.Kafka.Topic))
	}

	app.Router = NewRouter(log, cfg.JWT.Secret, NewServices(log, cfg, db, orderCache, publisher))
	return app, nil
}

// NewServices собирает репозитории и сервисы поверх одного пула соединений
func NewServices(
	log *slog.Logger,
	cfg *config.Config,
	db *sql.DB,
	orderCache service.OrderCache,
	publisher service.EventPublisher,
) Services {
	userRepo := storage.NewUserRepository(db)
	sweetRepo := storage.NewSweetRepository(db)
	orderRepo := storage.NewOrderRepository(db)

	return Services{
		Auth:    service.NewAuthService(log, userRepo, cfg.JWT.Secret, cfg.JWT.TokenTTL),
		Catalog: service.NewCatalogService(log, db, sweetRepo),
		Orders: service.NewOrderService(log, db,
			service.OrderConfig{TxTimeout: cfg.Orders.TxTimeout},
			sweetRepo, orderRepo, orderCache, publisher,
		),
	}
}

// NewRouter настраивает middleware и маршруты
func NewRouter(log *slog.Logger, jwtSecret string, svc Services) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Get("/healthz", handlers.HealthHandler(log))

	// публичные эндпоинты
	router.Post("/api/auth/register", handlers.RegisterHandler(log, svc.Auth))
	router.Post("/api/auth/token", handlers.TokenHandler(log, svc.Auth))
	router.Get("/api/sweets", handlers.ListSweetsHandler(log, svc.Catalog))
	router.Get("/api/sweets/{id}", handlers.GetSweetHandler(log, svc.Catalog))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(jwtSecret))

		r.Get("/api/user/me", handlers.MeHandler(log, svc.Auth))
		r.Post("/api/orders", handlers.CreateOrderHandler(log, svc.Orders))
		r.Get("/api/orders", handlers.ListOrdersHandler(log, svc.Orders))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(log, svc.Orders))

		// только администратор
		r.Group(func(r chi.Router) {
			r.Use(jwtmiddleware.RequireAdmin)
			r.Get("/api/user/all", handlers.ListUsersHandler(log, svc.Auth))
			r.Post("/api/sweets", handlers.CreateSweetHandler(log, svc.Catalog))
			r.Put("/api/sweets/{id}", handlers.UpdateSweetHandler(log, svc.Catalog))
			r.Delete("/api/sweets/{id}", handlers.DeleteSweetHandler(log, svc.Catalog))
			r.Patch("/api/orders/{id}/status", handlers.UpdateOrderStatusHandler(log, svc.Orders))
		})
	})

	return router
}

// Close освобождает соединения в обратном порядке
func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Error("failed to close event publisher", slog.Any("error", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis", slog.Any("error", err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("failed to close database", slog.Any("error", err))
	}
}
