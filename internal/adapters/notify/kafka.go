package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/phenrril/storefront/internal/domain"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEvent is the payload published for every placed order.
type OrderEvent struct {
	Type          string           `json:"type"`
	OrderID       string           `json:"order_id"`
	Holder        string           `json:"holder"`
	PaymentStatus string           `json:"payment_status"`
	GrandTotal    decimal.Decimal  `json:"grand_total"`
	Items         []OrderEventItem `json:"items"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

type OrderEventItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"total_amount"`
}

// DefaultPublishTimeout bounds one publish, retries included.
const DefaultPublishTimeout = 3 * time.Second

type Kafka struct {
	w       MessageWriter
	now     func() time.Time
	timeout time.Duration
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		MaxAttempts:  3,
		WriteTimeout: time.Second,
		Async:        false,
	}
}

func NewKafka(w MessageWriter) *Kafka {
	return &Kafka{w: w, now: time.Now, timeout: DefaultPublishTimeout}
}

// OrderPlaced publishes an order.placed event keyed by order id, so every
// event of one order lands on the same partition. The publish outlives a
// cancelled request but not the timeout.
func (k *Kafka) OrderPlaced(ctx context.Context, o *domain.Order) error {
	ev := OrderEvent{
		Type:          "order.placed",
		OrderID:       o.ID.String(),
		Holder:        o.Holder,
		PaymentStatus: string(o.PaymentStatus),
		GrandTotal:    o.GrandTotal,
		OccurredAt:    k.now().UTC(),
	}
	for _, it := range o.Items {
		ei := OrderEventItem{ProductID: it.ProductID.String(), SKU: it.SKU, Quantity: it.Quantity, Amount: it.TotalAmount}
		if it.VariantID != nil {
			ei.VariantID = it.VariantID.String()
		}
		ev.Items = append(ev.Items, ei)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.timeout)
	defer cancel()
	return k.w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.OrderID), Value: b})
}

func (k *Kafka) Close() error { return k.w.Close() }
