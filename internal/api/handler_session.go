package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"menuvista-session/internal/model"
	"menuvista-session/internal/parse"
	"menuvista-session/internal/store"
)

// InitSession handles POST /api/menu-session/{shortCode}/init.
func (h *Handler) InitSession(c *gin.Context) {
	shortCode := c.Param("key")
	if !parse.ValidShortCode(shortCode) {
		fail(c, http.StatusBadRequest, "Invalid menu code")
		return
	}

	var req model.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	sess, err := h.store.Negotiate(ctx, shortCode, req.SessionToken, req.DeviceID, h.now())
	if err != nil {
		log.Printf("Error negotiating session for %s: %v", shortCode, err)
		fail(c, http.StatusInternalServerError, "Could not start a session")
		return
	}

	active, recent, err := h.store.SessionOrders(ctx, sess.Token)
	if err != nil {
		log.Printf("Error loading orders for session %s: %v", sess.Token, err)
		fail(c, http.StatusInternalServerError, "Could not load orders")
		return
	}

	ok(c, http.StatusOK, model.InitData{
		SessionToken: sess.Token,
		ActiveOrders: summaries(active),
		RecentOrders: summaries(recent),
	})
}

// SessionStatus handles GET /api/menu-session/{token}/status.
func (h *Handler) SessionStatus(c *gin.Context) {
	token := c.Param("key")
	ctx := c.Request.Context()

	if _, err := h.store.Session(ctx, token, h.now()); err != nil {
		h.sessionError(c, err)
		return
	}

	active, done, err := h.store.SessionOrders(ctx, token)
	if err != nil {
		log.Printf("Error loading orders for session %s: %v", token, err)
		fail(c, http.StatusInternalServerError, "Could not load orders")
		return
	}

	ok(c, http.StatusOK, model.StatusData{
		ActiveOrders: summaries(active),
		DoneOrders:   summaries(done),
	})
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		fail(c, http.StatusNotFound, "Session not found")
	case errors.Is(err, store.ErrSessionExpired):
		fail(c, http.StatusGone, "Session expired")
	default:
		log.Printf("Error fetching session: %v", err)
		fail(c, http.StatusInternalServerError, "Could not load session")
	}
}
