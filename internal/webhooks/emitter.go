package webhooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/fixmarket/fixmarket/internal/idgen"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Subsystem: "webhook",
		Name:      "emit_total",
		Help:      "Total webhook emit attempts by event type.",
	}, []string{"event_type"})

	webhookEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixmarket",
		Subsystem: "webhook",
		Name:      "emit_errors_total",
		Help:      "Total webhook emit failures by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(webhookEmitTotal, webhookEmitErrors)
}

// Emitter wraps a Dispatcher to emit lifecycle events across subsystems.
// All methods are fire-and-forget: errors are logged but never returned.
type Emitter struct {
	d      *Dispatcher
	logger *slog.Logger
}

// NewEmitter creates a new webhook emitter.
func NewEmitter(d *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{d: d, logger: logger}
}

// emit delivers an event to a specific account's subscriptions.
func (e *Emitter) emit(accountID string, eventType EventType, data map[string]interface{}) {
	if e == nil || e.d == nil {
		return
	}
	webhookEmitTotal.WithLabelValues(string(eventType)).Inc()
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.d.DispatchToAccount(ctx, accountID, event); err != nil {
		webhookEmitErrors.WithLabelValues(string(eventType)).Inc()
		e.logger.Warn("webhook emit failed", "event", eventType, "account", accountID, "error", err)
	}
}

// broadcast delivers an event to every active subscription for the event type.
func (e *Emitter) broadcast(eventType EventType, data map[string]interface{}) {
	if e == nil || e.d == nil {
		return
	}
	webhookEmitTotal.WithLabelValues(string(eventType)).Inc()
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.d.Dispatch(ctx, event); err != nil {
		webhookEmitErrors.WithLabelValues(string(eventType)).Inc()
		e.logger.Warn("webhook broadcast failed", "event", eventType, "error", err)
	}
}

// --- Order events ---

// EmitOrderCreated emits an order.created event to all subscribers.
// Providers subscribe to discover new work in their categories.
func (e *Emitter) EmitOrderCreated(orderID, customerID, categoryID, city string) {
	e.broadcast(EventOrderCreated, map[string]interface{}{
		"orderId":    orderID,
		"customerId": customerID,
		"categoryId": categoryID,
		"city":       city,
	})
}

// EmitOrderMatched emits an order.matched event to the customer.
func (e *Emitter) EmitOrderMatched(customerID, orderID, providerID, bidID string) {
	e.emit(customerID, EventOrderMatched, map[string]interface{}{
		"orderId":    orderID,
		"providerId": providerID,
		"bidId":      bidID,
	})
}

// EmitOrderCompleted emits an order.completed event to the provider.
func (e *Emitter) EmitOrderCompleted(providerID, orderID, customerID string) {
	e.emit(providerID, EventOrderCompleted, map[string]interface{}{
		"orderId":    orderID,
		"customerId": customerID,
		"providerId": providerID,
	})
}

// EmitOrderCancelled emits an order.cancelled event to the assigned provider,
// if any.
func (e *Emitter) EmitOrderCancelled(providerID, orderID, customerID string) {
	if providerID == "" {
		return
	}
	e.emit(providerID, EventOrderCancelled, map[string]interface{}{
		"orderId":    orderID,
		"customerId": customerID,
	})
}

// --- Bid events ---

// EmitBidSubmitted emits a bid.submitted event to the order's customer.
func (e *Emitter) EmitBidSubmitted(customerID, orderID, bidID, providerID, amount string) {
	e.emit(customerID, EventBidSubmitted, map[string]interface{}{
		"orderId":    orderID,
		"bidId":      bidID,
		"providerId": providerID,
		"amount":     amount,
	})
}

// EmitBidAccepted emits a bid.accepted event to the winning provider.
func (e *Emitter) EmitBidAccepted(providerID, orderID, bidID, amount string) {
	e.emit(providerID, EventBidAccepted, map[string]interface{}{
		"orderId": orderID,
		"bidId":   bidID,
		"amount":  amount,
	})
}

// EmitBidRejected emits a bid.rejected event to a losing provider.
func (e *Emitter) EmitBidRejected(providerID, orderID, bidID string) {
	e.emit(providerID, EventBidRejected, map[string]interface{}{
		"orderId": orderID,
		"bidId":   bidID,
	})
}

// EmitBidWithdrawn emits a bid.withdrawn event to the order's customer.
func (e *Emitter) EmitBidWithdrawn(customerID, orderID, bidID, providerID string) {
	e.emit(customerID, EventBidWithdrawn, map[string]interface{}{
		"orderId":    orderID,
		"bidId":      bidID,
		"providerId": providerID,
	})
}

// EmitBidExpired emits a bid.expired event to the bid's provider.
func (e *Emitter) EmitBidExpired(providerID, orderID, bidID string) {
	e.emit(providerID, EventBidExpired, map[string]interface{}{
		"orderId": orderID,
		"bidId":   bidID,
	})
}

// --- Provider enforcement events ---

// EmitProviderBlocked emits a provider.blocked event to the provider.
func (e *Emitter) EmitProviderBlocked(providerID, reason string, until *time.Time) {
	data := map[string]interface{}{
		"providerId": providerID,
		"reason":     reason,
	}
	if until != nil {
		data["blockedUntil"] = until.UTC()
	} else {
		data["permanent"] = true
	}
	e.emit(providerID, EventProviderBlocked, data)
}

// EmitProviderUnblocked emits a provider.unblocked event to the provider.
func (e *Emitter) EmitProviderUnblocked(providerID, reason string) {
	e.emit(providerID, EventProviderUnblocked, map[string]interface{}{
		"providerId": providerID,
		"reason":     reason,
	})
}

// EmitProviderWarned emits a provider.warned event to the provider.
func (e *Emitter) EmitProviderWarned(providerID, reason string) {
	e.emit(providerID, EventProviderWarned, map[string]interface{}{
		"providerId": providerID,
		"reason":     reason,
	})
}
