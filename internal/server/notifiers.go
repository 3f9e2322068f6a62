package server

import (
	"time"

	"github.com/fixmarket/fixmarket/internal/matching"
	"github.com/fixmarket/fixmarket/internal/realtime"
	"github.com/fixmarket/fixmarket/internal/webhooks"
)

// matchingNotifier fans matching events out to webhook subscribers and
// connected WebSocket clients. Implements matching.Notifier.
type matchingNotifier struct {
	emitter *webhooks.Emitter
	hub     *realtime.Hub
}

func (n *matchingNotifier) push(eventType realtime.EventType, data map[string]interface{}) {
	if n.hub == nil {
		return
	}
	n.hub.Broadcast(&realtime.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (n *matchingNotifier) OrderCreated(order *matching.Order) {
	n.emitter.EmitOrderCreated(order.ID, order.CustomerID, order.CategoryID, order.City)
	if n.hub != nil {
		n.hub.BroadcastOrderCreated(map[string]interface{}{
			"orderId":    order.ID,
			"customerId": order.CustomerID,
			"categoryId": order.CategoryID,
			"city":       order.City,
			"title":      order.Title,
			"budget":     order.Budget,
		})
	}
}

func (n *matchingNotifier) OrderCompleted(order *matching.Order) {
	n.emitter.EmitOrderCompleted(order.AssignedProviderID, order.ID, order.CustomerID)
	n.push(realtime.EventOrderCompleted, map[string]interface{}{
		"orderId":    order.ID,
		"customerId": order.CustomerID,
		"providerId": order.AssignedProviderID,
	})
}

func (n *matchingNotifier) OrderCancelled(order *matching.Order, providerID string) {
	n.emitter.EmitOrderCancelled(providerID, order.ID, order.CustomerID)
	n.push(realtime.EventOrderCancelled, map[string]interface{}{
		"orderId":    order.ID,
		"customerId": order.CustomerID,
		"providerId": providerID,
	})
}

func (n *matchingNotifier) BidSubmitted(order *matching.Order, bid *matching.Bid) {
	n.emitter.EmitBidSubmitted(order.CustomerID, order.ID, bid.ID, bid.ProviderID, bid.Amount)
	n.push(realtime.EventBidSubmitted, map[string]interface{}{
		"orderId":    order.ID,
		"bidId":      bid.ID,
		"customerId": order.CustomerID,
		"providerId": bid.ProviderID,
		"categoryId": order.CategoryID,
		"city":       order.City,
		"amount":     bid.Amount,
	})
}

func (n *matchingNotifier) BidAccepted(order *matching.Order, bid *matching.Bid) {
	n.emitter.EmitOrderMatched(order.CustomerID, order.ID, bid.ProviderID, bid.ID)
	n.emitter.EmitBidAccepted(bid.ProviderID, order.ID, bid.ID, bid.Amount)
	n.push(realtime.EventOrderMatched, map[string]interface{}{
		"orderId":    order.ID,
		"bidId":      bid.ID,
		"customerId": order.CustomerID,
		"providerId": bid.ProviderID,
	})
	n.push(realtime.EventBidAccepted, map[string]interface{}{
		"orderId":    order.ID,
		"bidId":      bid.ID,
		"providerId": bid.ProviderID,
		"amount":     bid.Amount,
	})
}

func (n *matchingNotifier) BidRejected(order *matching.Order, bid *matching.Bid) {
	n.emitter.EmitBidRejected(bid.ProviderID, order.ID, bid.ID)
	n.push(realtime.EventBidRejected, map[string]interface{}{
		"orderId":    order.ID,
		"bidId":      bid.ID,
		"providerId": bid.ProviderID,
	})
}

func (n *matchingNotifier) BidWithdrawn(order *matching.Order, bid *matching.Bid) {
	n.emitter.EmitBidWithdrawn(order.CustomerID, order.ID, bid.ID, bid.ProviderID)
	n.push(realtime.EventBidWithdrawn, map[string]interface{}{
		"orderId":    order.ID,
		"bidId":      bid.ID,
		"customerId": order.CustomerID,
		"providerId": bid.ProviderID,
	})
}

func (n *matchingNotifier) BidExpired(bid *matching.Bid) {
	n.emitter.EmitBidExpired(bid.ProviderID, bid.OrderID, bid.ID)
	n.push(realtime.EventBidExpired, map[string]interface{}{
		"orderId":    bid.OrderID,
		"bidId":      bid.ID,
		"providerId": bid.ProviderID,
	})
}

// reputationNotifier forwards enforcement events to webhook subscribers.
// Implements reputation.Notifier.
type reputationNotifier struct {
	emitter *webhooks.Emitter
}

func (n *reputationNotifier) ProviderBlocked(providerID, reason string, until *time.Time) {
	n.emitter.EmitProviderBlocked(providerID, reason, until)
}

func (n *reputationNotifier) ProviderUnblocked(providerID, reason string) {
	n.emitter.EmitProviderUnblocked(providerID, reason)
}

func (n *reputationNotifier) ProviderWarned(providerID, reason string) {
	n.emitter.EmitProviderWarned(providerID, reason)
}
