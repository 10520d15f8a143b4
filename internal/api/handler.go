package api

import (
	"context"
	"log"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"menuvista-session/internal/events"
	"menuvista-session/internal/model"
	"menuvista-session/internal/mw"
	"menuvista-session/internal/store"
)

// Dispatcher queues "order ready" notifications.
type Dispatcher interface {
	Dispatch(orderID int64)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	webpush *webpush.Options
	pool    Dispatcher
	events  *events.OrderEvents
	cache   *mw.ResponseCache
	now     func() time.Time
}

// NewHandler creates a new API handler. pool, ev and cache may be nil.
func NewHandler(s store.Store, webpushOptions *webpush.Options, pool Dispatcher, ev *events.OrderEvents, cache *mw.ResponseCache) *Handler {
	if ev == nil {
		ev = events.NewOrderEvents(nil, "")
	}
	return &Handler{
		store:   s,
		webpush: webpushOptions,
		pool:    pool,
		events:  ev,
		cache:   cache,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// statusPath is the request path of a session's status endpoint, which
// is also its response cache key.
func statusPath(token string) string {
	return "/api/menu-session/" + token + "/status"
}

func (h *Handler) invalidateStatus(token string) {
	if h.cache != nil {
		h.cache.Invalidate(statusPath(token))
	}
}

func (h *Handler) publishStatus(ctx context.Context, order *model.DinerOrder, from model.OrderStatus) {
	if err := h.events.StatusChanged(ctx, order, from); err != nil {
		log.Printf("Warning: %v", err)
	}
}

func ok[T any](c *gin.Context, status int, data T) {
	c.JSON(status, model.Envelope[T]{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, model.Envelope[*struct{}]{Success: false, Message: message})
}

func summaries(orders []model.DinerOrder) []model.OrderSummary {
	out := make([]model.OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Summary())
	}
	return out
}
