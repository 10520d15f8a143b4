package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"menuvista-session/internal/model"
)

type putPushRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutPushSubscription handles PUT /api/menu-session/{token}/push.
func (h *Handler) PutPushSubscription(c *gin.Context) {
	token := c.Param("key")
	var req putPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "endpoint, p256dh and auth are required")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.Session(ctx, token, h.now()); err != nil {
		h.sessionError(c, err)
		return
	}

	subscription := model.PushSubscription{
		Endpoint:     req.Endpoint,
		P256DH:       req.P256DH,
		Auth:         req.Auth,
		SessionToken: token,
		CreatedAt:    h.now(),
	}
	err := h.store.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "session_token"}),
	}).Create(&subscription).Error
	if err != nil {
		log.Printf("Error saving push subscription for session %s: %v", token, err)
		fail(c, http.StatusInternalServerError, "Could not save the subscription")
		return
	}

	c.Status(http.StatusCreated)
}

type deletePushRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeletePushSubscription handles DELETE /api/menu-session/{token}/push.
func (h *Handler) DeletePushSubscription(c *gin.Context) {
	var req deletePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "endpoint is required")
		return
	}

	err := h.store.DB().WithContext(c.Request.Context()).
		Where("endpoint = ? AND session_token = ?", req.Endpoint, c.Param("key")).
		Delete(&model.PushSubscription{}).Error
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not delete the subscription")
		return
	}

	c.Status(http.StatusNoContent)
}
