package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/segmentio/kafka-go"
)

// messageWriter — часть kafka.Writer, которая нужна издателю.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher отправляет события заказов в kafka.
type Publisher struct {
	log     *slog.Logger
	w       messageWriter
	service string
	now     func() time.Time
}

// NewPublisher создаёт асинхронного издателя. Ошибки доставки только логируются:
// заказ к этому моменту уже закоммичен.
func NewPublisher(log *slog.Logger, brokers []string, topic, service string) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("failed to deliver order events",
					slog.String("topic", topic),
					slog.Int("count", len(messages)),
					slog.Any("error", err),
				)
			}
		},
	}
	return newPublisher(log, w, service)
}

func newPublisher(log *slog.Logger, w messageWriter, service string) *Publisher {
	return &Publisher{
		log:     log,
		w:       w,
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) OrderPlaced(ctx context.Context, order *models.Order) error {
	payload := OrderPlacedPayload{
		OrderID:    order.ID,
		OwnerID:    order.OwnerID,
		TotalPrice: order.TotalPrice,
		Items:      make([]OrderPlacedItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, OrderPlacedItem{
			SweetID:         item.SweetID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}
	return p.publish(ctx, EventOrderPlaced, order.ID, payload)
}

func (p *Publisher) OrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	return p.publish(ctx, EventOrderStatusChanged, order.ID, OrderStatusChangedPayload{
		OrderID:   order.ID,
		OwnerID:   order.OwnerID,
		From:      string(previous),
		To:        string(order.Status),
		UpdatedAt: order.UpdatedAt,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType string, orderID int64, payload any) error {
	const op = "events.Publisher.publish"

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal payload: %w", op, err)
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    p.now(),
		Producer:      p.service,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       raw,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal envelope: %w", op, err)
	}

	msg := kafka.Message{
		Key:   PartitionKey(orderID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: failed to write message: %w", op, err)
	}

	p.log.Debug("order event queued",
		slog.String("op", op),
		slog.String("event_type", eventType),
		slog.String("event_id", ev.EventID),
		slog.Int64("orderID", orderID),
	)
	return nil
}

// Close дожидается отправки буфера и закрывает writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
