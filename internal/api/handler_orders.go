package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"menuvista-session/internal/model"
	"menuvista-session/internal/store"
)

// PlaceOrder handles POST /api/menu-session/{token}/orders.
func (h *Handler) PlaceOrder(c *gin.Context) {
	token := c.Param("key")
	ctx := c.Request.Context()

	var req model.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := h.store.Session(ctx, token, h.now())
	if err != nil {
		h.sessionError(c, err)
		return
	}

	order, err := h.store.PlaceOrder(ctx, sess, req, h.now())
	if errors.Is(err, store.ErrInvalidOrder) {
		fail(c, http.StatusUnprocessableEntity, "Your cart contains an invalid item")
		return
	}
	if err != nil {
		log.Printf("Error placing order for session %s: %v", token, err)
		fail(c, http.StatusInternalServerError, "Could not place the order")
		return
	}

	h.invalidateStatus(token)
	h.publishStatus(ctx, order, "")
	ok(c, http.StatusCreated, order.Summary())
}

// UpdateOrderStatus handles PATCH /api/kitchen/orders/{id}/status.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		fail(c, http.StatusBadRequest, "Invalid status")
		return
	}

	ctx := c.Request.Context()
	order, previous, err := h.store.UpdateOrderStatus(ctx, orderID, req.Status, h.now())
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		fail(c, http.StatusNotFound, "Order not found")
		return
	case errors.Is(err, store.ErrInvalidTransition):
		fail(c, http.StatusConflict, "Order cannot move from "+string(previous)+" to "+string(req.Status))
		return
	case err != nil:
		log.Printf("Error updating order %d: %v", orderID, err)
		fail(c, http.StatusInternalServerError, "Could not update the order")
		return
	}

	h.invalidateStatus(order.SessionToken)
	h.publishStatus(ctx, order, previous)
	if order.Status == model.StatusReady && h.pool != nil {
		h.pool.Dispatch(order.ID)
	}
	ok(c, http.StatusOK, order.Summary())
}
