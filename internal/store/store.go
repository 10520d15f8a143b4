package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"menuvista-session/internal/model"
)

// RecentLimit caps the number of finished orders returned to a diner.
const RecentLimit = 20

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store defines the interface for all database operations of the
// session service.
type Store interface {
	Negotiate(ctx context.Context, shortCode string, token *string, deviceID string, now time.Time) (*model.MenuSession, error)
	Session(ctx context.Context, token string, now time.Time) (*model.MenuSession, error)
	SessionOrders(ctx context.Context, token string) (active, done []model.DinerOrder, err error)
	PlaceOrder(ctx context.Context, sess *model.MenuSession, req model.PlaceOrderRequest, now time.Time) (*model.DinerOrder, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus, now time.Time) (*model.DinerOrder, model.OrderStatus, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewGormStore creates a new GORM-backed store whose sessions live for ttl
// after their last negotiation.
func NewGormStore(db *gorm.DB, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &gormStore{db: db, ttl: ttl}
}

// DB returns the underlying GORM handle.
func (s *gormStore) DB() *gorm.DB { return s.db }

// Negotiate returns the canonical session for (device, menu). A valid
// client token for the same menu is honoured; otherwise the device's
// live session is reused, or a new one is issued.
func (s *gormStore) Negotiate(ctx context.Context, shortCode string, token *string, deviceID string, now time.Time) (*model.MenuSession, error) {
	var result *model.MenuSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if token != nil && *token != "" {
			var sess model.MenuSession
			err := tx.First(&sess, "token = ?", *token).Error
			switch {
			case err == nil:
				if sess.ShortCode == shortCode && !sess.Expired(now) {
					result = &sess
					return s.touch(tx, result, now)
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("failed to look up session token: %w", err)
			}
		}

		if deviceID != "" {
			var sess model.MenuSession
			err := tx.Where("short_code = ? AND device_id = ? AND expires_at > ?", shortCode, deviceID, now).
				Order("last_seen_at DESC").
				First(&sess).Error
			if err == nil {
				result = &sess
				return s.touch(tx, result, now)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up device session: %w", err)
			}
		}

		sess := model.MenuSession{
			Token:      strings.ReplaceAll(uuid.NewString(), "-", ""),
			ShortCode:  shortCode,
			DeviceID:   deviceID,
			CreatedAt:  now,
			LastSeenAt: now,
			ExpiresAt:  now.Add(s.ttl),
		}
		if err := tx.Create(&sess).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		log.Printf("Issued menu session for %s (device %q)", shortCode, deviceID)
		result = &sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *gormStore) touch(tx *gorm.DB, sess *model.MenuSession, now time.Time) error {
	sess.LastSeenAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	if err := tx.Model(&model.MenuSession{}).Where("token = ?", sess.Token).
		Updates(map[string]any{"last_seen_at": sess.LastSeenAt, "expires_at": sess.ExpiresAt}).Error; err != nil {
		return fmt.Errorf("failed to refresh session %s: %w", sess.Token, err)
	}
	return nil
}

// Session returns the live session for token.
func (s *gormStore) Session(ctx context.Context, token string, now time.Time) (*model.MenuSession, error) {
	var sess model.MenuSession
	err := s.db.WithContext(ctx).First(&sess, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	if sess.Expired(now) {
		return nil, ErrSessionExpired
	}
	return &sess, nil
}

// SessionOrders splits the session's orders into active ones and the
// most recent finished ones, both newest first.
func (s *gormStore) SessionOrders(ctx context.Context, token string) ([]model.DinerOrder, []model.DinerOrder, error) {
	active := []model.DinerOrder{}
	if err := s.db.WithContext(ctx).
		Where("session_token = ? AND status IN ?", token, activeStatuses()).
		Order("created_at DESC, id DESC").
		Find(&active).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to fetch active orders: %w", err)
	}

	done := []model.DinerOrder{}
	if err := s.db.WithContext(ctx).
		Where("session_token = ? AND status NOT IN ?", token, activeStatuses()).
		Order("created_at DESC, id DESC").
		Limit(RecentLimit).
		Find(&done).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to fetch finished orders: %w", err)
	}
	return active, done, nil
}

// PlaceOrder validates the cart, prices it and stores a pending order
// with the next order number of the menu.
func (s *gormStore) PlaceOrder(ctx context.Context, sess *model.MenuSession, req model.PlaceOrderRequest, now time.Time) (*model.DinerOrder, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	var total float64
	for _, item := range req.Items {
		if item.Quantity <= 0 || strings.TrimSpace(item.Name) == "" || item.Price < 0 {
			return nil, fmt.Errorf("%w: bad line item %d", ErrInvalidOrder, item.ID)
		}
		total += item.LineTotal()
	}
	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode items: %w", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "LKR"
	}
	var notes *string
	if n := strings.TrimSpace(req.Notes); n != "" {
		notes = &n
	}

	order := model.DinerOrder{
		SessionToken: sess.Token,
		ShortCode:    sess.ShortCode,
		Status:       model.StatusPending,
		ItemsJSON:    itemsJSON,
		Total:        total,
		Currency:     currency,
		Notes:        notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextOrderSeq(tx, sess.ShortCode)
		if err != nil {
			return err
		}
		order.OrderNumber = OrderNumber(sess.ShortCode, seq)
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus moves an order along its lifecycle and stamps the
// stage time. It returns the updated order and its previous status.
func (s *gormStore) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus, now time.Time) (*model.DinerOrder, model.OrderStatus, error) {
	var order model.DinerOrder
	var previous model.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to fetch order %d: %w", orderID, err)
		}
		previous = order.Status
		if !CanTransition(order.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
		}

		updates := map[string]any{"status": status, "updated_at": now}
		switch status {
		case model.StatusPreparing:
			order.PreparingAt = &now
			updates["preparing_at"] = now
		case model.StatusReady:
			order.ReadyAt = &now
			updates["ready_at"] = now
		case model.StatusDelivered:
			order.DeliveredAt = &now
			updates["delivered_at"] = now
		}
		order.Status = status
		order.UpdatedAt = now
		if err := tx.Model(&model.DinerOrder{}).Where("id = ?", orderID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update order %d: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, previous, err
	}
	return &order, previous, nil
}

// nextOrderSeq bumps the menu's counter and returns the new value. The
// upsert holds the counter row lock until the transaction ends, so
// concurrent placements on the same menu get distinct numbers.
func nextOrderSeq(tx *gorm.DB, shortCode string) (int64, error) {
	counter := model.MenuSequence{ShortCode: strings.ToUpper(shortCode), Seq: 1}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "short_code"}},
		DoUpdates: clause.Assignments(map[string]any{"seq": gorm.Expr("menu_sequences.seq + 1")}),
	}).Create(&counter).Error; err != nil {
		return 0, fmt.Errorf("failed to bump order sequence: %w", err)
	}
	if err := tx.First(&counter, "short_code = ?", counter.ShortCode).Error; err != nil {
		return 0, fmt.Errorf("failed to read order sequence: %w", err)
	}
	return counter.Seq, nil
}

// OrderNumber formats the human-readable number of the seq-th order of a
// menu.
func OrderNumber(shortCode string, seq int64) string {
	return fmt.Sprintf("%s-%04d", strings.ToUpper(shortCode), seq)
}

var lifecycle = map[model.OrderStatus]int{
	model.StatusPending:   0,
	model.StatusPreparing: 1,
	model.StatusReady:     2,
	model.StatusDelivered: 3,
	model.StatusCompleted: 4,
}

// CanTransition reports whether an order may move from one status to
// another: forward along pending, preparing, ready, delivered,
// completed, or to cancelled while still active.
func CanTransition(from, to model.OrderStatus) bool {
	if to == model.StatusCancelled {
		return from.IsActive()
	}
	f, okFrom := lifecycle[from]
	t, okTo := lifecycle[to]
	return okFrom && okTo && t > f
}

func activeStatuses() []string {
	return []string{string(model.StatusPending), string(model.StatusPreparing), string(model.StatusReady)}
}
