// Package session implements the diner side of the menu ordering
// protocol: session negotiation, order placement and status polling.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"menuvista-session/internal/model"
)

var (
	// ErrNoSession is returned by PlaceOrder before a token is negotiated.
	ErrNoSession = errors.New("session: no negotiated session token")
	// ErrEmptyCart is returned by PlaceOrder for an empty item list.
	ErrEmptyCart = errors.New("session: cart is empty")
	// ErrPlacementInFlight is returned when another placement is running.
	ErrPlacementInFlight = errors.New("session: an order placement is already in flight")
	// ErrClosed is returned when a result arrives after Close.
	ErrClosed = errors.New("session: closed")
)

// API is the remote menu-session service. *Client implements it.
type API interface {
	Init(ctx context.Context, shortCode string, token *string, deviceID string) (*model.InitData, error)
	Status(ctx context.Context, token string) (*model.StatusData, error)
	PlaceOrder(ctx context.Context, token string, req model.PlaceOrderRequest) (*model.OrderSummary, error)
}

// DeviceSource yields the device identifier. *identity.Resolver
// implements it.
type DeviceSource interface {
	DeviceID() string
}

// Options are the collaborators shared by every session of a diner.
type Options struct {
	API             API
	Tokens          *TokenStore
	Devices         DeviceSource
	PollInterval    time.Duration
	DefaultCurrency string
}

// Session is one diner's ordering session against a single menu.
type Session struct {
	shortCode string
	api       API
	tokens    *TokenStore
	devices   DeviceSource
	currency  string
	poller    *Poller

	ctx    context.Context
	cancel context.CancelFunc

	placing atomic.Bool

	mu      sync.Mutex
	token   string
	orders  []model.OrderSummary
	lastErr string
	closed  bool
	subs    []chan []model.OrderSummary
}

// New creates an un-negotiated session for shortCode.
func New(shortCode string, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	currency := opts.DefaultCurrency
	if currency == "" {
		currency = "LKR"
	}
	s := &Session{
		shortCode: shortCode,
		api:       opts.API,
		tokens:    opts.Tokens,
		devices:   opts.Devices,
		currency:  currency,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.poller = NewPoller(opts.PollInterval, s.refresh)
	return s
}

// ShortCode returns the menu this session is bound to.
func (s *Session) ShortCode() string { return s.shortCode }

// Token returns the negotiated token, or "" before a successful Init.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Orders returns a copy of the current order list, most recent first.
func (s *Session) Orders() []model.OrderSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.orders)
}

// LastError returns the diner-facing message of the last failed
// placement, or "".
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsPlacingOrder reports whether a placement is in flight.
func (s *Session) IsPlacingOrder() bool { return s.placing.Load() }

// Polling reports whether the status poller is running.
func (s *Session) Polling() bool { return s.poller.Running() }

// Init negotiates the session with the server. On any failure the token
// and order list are left as they were and the error is returned for
// logging; there is no retry.
func (s *Session) Init(ctx context.Context) error {
	var stored *string
	if s.tokens != nil {
		if tok := s.tokens.Get(s.shortCode); tok != "" {
			stored = &tok
		}
	}
	deviceID := ""
	if s.devices != nil {
		deviceID = s.devices.DeviceID()
	}

	data, err := s.api.Init(ctx, s.shortCode, stored, deviceID)
	if err != nil {
		log.Printf("menu session %s: init failed: %v", s.shortCode, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.tokens != nil {
		s.tokens.Set(s.shortCode, data.SessionToken)
	}
	s.token = data.SessionToken
	s.orders = concatOrders(data.ActiveOrders, data.RecentOrders)
	s.changedLocked()
	return nil
}

// Subscribe returns a channel that receives the order list after every
// change, starting with the current one. Slow readers only see the
// latest snapshot. The channel is closed by Close.
func (s *Session) Subscribe() <-chan []model.OrderSummary {
	ch := make(chan []model.OrderSummary, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	ch <- cloneOrders(s.orders)
	s.subs = append(s.subs, ch)
	return ch
}

// Close stops polling and discards the result of any request still in
// flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.poller.Stop()
	s.cancel()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

// refresh is the poll tick.
func (s *Session) refresh(ctx context.Context) {
	token := s.Token()
	if token == "" {
		return
	}
	data, err := s.api.Status(ctx, token)
	if err != nil {
		log.Printf("menu session %s: status poll skipped: %v", s.shortCode, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.token != token {
		return
	}
	s.orders = concatOrders(data.ActiveOrders, data.DoneOrders)
	s.changedLocked()
}

// changedLocked publishes the order list and re-evaluates polling.
// s.mu must be held.
func (s *Session) changedLocked() {
	snapshot := cloneOrders(s.orders)
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}

	if ShouldPoll(s.token, s.orders) {
		s.poller.Start(s.ctx)
	} else {
		s.poller.Stop()
	}
}

func concatOrders(first, second []model.OrderSummary) []model.OrderSummary {
	out := make([]model.OrderSummary, 0, len(first)+len(second))
	out = append(out, first...)
	return append(out, second...)
}

func cloneOrders(orders []model.OrderSummary) []model.OrderSummary {
	if orders == nil {
		return nil
	}
	out := make([]model.OrderSummary, len(orders))
	copy(out, orders)
	return out
}
