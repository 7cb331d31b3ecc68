package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/modules/serializer"
	"github.com/tutorhub/tutorhub/internal/modules/service"
	"github.com/tutorhub/tutorhub/internal/realtime"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	svc service.NotificationService
	hub *realtime.Hub
	log *zap.Logger
}

func NewNotificationHandler(s service.NotificationService, hub *realtime.Hub, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: s, hub: hub, log: log}
}

// ListUnread godoc
//
//	@Summary		List unread notifications
//	@Tags			notification
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Notification}
//	@Router			/notifications/unread [get]
func (h *NotificationHandler) ListUnread(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	items, err := h.svc.ListUnread(c.Request.Context(), id.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

type ListNotificationsReq struct {
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100" example:"20"`
	Cursor string `form:"cursor"`
}

// List godoc
//
//	@Summary		List notifications
//	@Description	All notifications for the calling user, newest first, cursor paginated.
//	@Tags			notification
//	@Produce		json
//	@Param			limit	query	integer	false	"Page size, max 100"
//	@Param			cursor	query	string	false	"Cursor from the previous page"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ListNotificationsOutput}
//	@Router			/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	req := ListNotificationsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.List(c.Request.Context(), service.ListNotificationsInput{
		UserID: id.ID,
		Limit:  req.Limit,
		Cursor: req.Cursor,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// MarkRead godoc
//
//	@Summary		Mark a notification read
//	@Description	Flips the read flag. Marking an already-read notification succeeds without effect.
//	@Tags			notification
//	@Produce		json
//	@Param			notification_id	path	string	true	"Notification id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/notifications/{notification_id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notifID, err := uuid.Parse(c.Param("notification_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid notification id", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	if err := h.svc.MarkRead(c.Request.Context(), id.ID, notifID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("notification not found", err))
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, serializer.Err(http.StatusForbidden, "not your notification", err))
		default:
			c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		}
		return
	}
	c.JSON(http.StatusOK, serializer.Response{})
}

// Stream godoc
//
//	@Summary		Stream notifications
//	@Description	Server-sent events stream of the calling user's notifications. The subscription lives for the duration of the request.
//	@Tags			notification
//	@Produce		text/event-stream
//	@Security		BearerAuth
//	@Router			/notifications/stream [get]
func (h *NotificationHandler) Stream(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	sub, err := h.hub.Subscribe(c.Request.Context(), realtime.NotifyChannel(id.ID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.Err(http.StatusInternalServerError, "subscribe failed", err))
		return
	}
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case payload, ok := <-sub.Events():
			if !ok {
				return false
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
			return true
		}
	})
}
