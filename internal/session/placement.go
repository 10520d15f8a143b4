package session

import (
	"context"
	"errors"
	"log"

	"menuvista-session/internal/model"
)

// ConnectionErrorMessage is shown when the order could not reach the
// server or the reply was unreadable.
const ConnectionErrorMessage = "Could not connect to the server. Please try again."

// rejectedFallbackMessage is used when the server rejects without a message.
const rejectedFallbackMessage = "Failed to place order"

// PlaceOrder submits items against the negotiated session. An empty
// currency uses the session default. On success the order is prepended
// to the order list and returned. A second call while one is in flight
// fails fast with ErrPlacementInFlight.
func (s *Session) PlaceOrder(ctx context.Context, items []model.OrderLineItem, currency, notes string) (*model.OrderSummary, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNoSession
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if !s.placing.CompareAndSwap(false, true) {
		return nil, ErrPlacementInFlight
	}
	defer s.placing.Store(false)

	s.setLastError("")
	if currency == "" {
		currency = s.currency
	}

	order, err := s.api.PlaceOrder(ctx, token, model.PlaceOrderRequest{
		Items:    items,
		Currency: currency,
		Notes:    notes,
	})
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			msg := rejected.Message
			if msg == "" {
				msg = rejectedFallbackMessage
			}
			s.setLastError(msg)
		} else {
			log.Printf("menu session %s: placing order failed: %v", s.shortCode, err)
			s.setLastError(ConnectionErrorMessage)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return order, nil
	}
	s.orders = append([]model.OrderSummary{*order}, s.orders...)
	s.changedLocked()
	return order, nil
}

func (s *Session) setLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
}
