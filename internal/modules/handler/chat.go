package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/modules/serializer"
	"github.com/tutorhub/tutorhub/internal/modules/service"
	"github.com/tutorhub/tutorhub/internal/realtime"
	"go.uber.org/zap"
)

type ChatHandler struct {
	svc service.ChatService
	hub *realtime.Hub
	log *zap.Logger
}

func NewChatHandler(s service.ChatService, hub *realtime.Hub, log *zap.Logger) *ChatHandler {
	return &ChatHandler{svc: s, hub: hub, log: log}
}

type SendMessageReq struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Text        string `json:"text" binding:"required"`
}

// Send godoc
//
//	@Summary		Send a chat message
//	@Description	Append a message to the conversation between the caller and the recipient in the given space.
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			space	path	string			true	"Chat space"	Enums(private, career)
//	@Param			request	body	SendMessageReq	true	"Message"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.ChatMessage}
//	@Router			/chat/{space}/messages [post]
func (h *ChatHandler) Send(c *gin.Context) {
	req := SendMessageReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.Send(c.Request.Context(), service.SendMessageInput{
		Space:       c.Param("space"),
		SenderID:    id.ID,
		SenderName:  id.DisplayName,
		IsTeacher:   id.IsTeacher,
		RecipientID: req.RecipientID,
		Text:        req.Text,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSpace), errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		default:
			c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		}
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

type ChatHistoryReq struct {
	OtherID string `form:"other_id" binding:"required"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=100" example:"20"`
	Cursor  string `form:"cursor"`
}

// History godoc
//
//	@Summary		Conversation history
//	@Description	Messages between the caller and other_id, newest first, cursor paginated.
//	@Tags			chat
//	@Produce		json
//	@Param			space		path	string	true	"Chat space"	Enums(private, career)
//	@Param			other_id	query	string	true	"The other participant's user id"
//	@Param			limit		query	integer	false	"Page size, max 100"
//	@Param			cursor		query	string	false	"Cursor from the previous page"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ChatHistoryOutput}
//	@Router			/chat/{space}/messages [get]
func (h *ChatHandler) History(c *gin.Context) {
	req := ChatHistoryReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.History(c.Request.Context(), service.ChatHistoryInput{
		Space:   c.Param("space"),
		UserID:  id.ID,
		OtherID: req.OtherID,
		Limit:   req.Limit,
		Cursor:  req.Cursor,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidSpace) {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// Stream godoc
//
//	@Summary		Stream a conversation
//	@Description	Server-sent events stream of new messages in the conversation between the caller and other_id.
//	@Tags			chat
//	@Produce		text/event-stream
//	@Param			space		path	string	true	"Chat space"	Enums(private, career)
//	@Param			other_id	query	string	true	"The other participant's user id"
//	@Security		BearerAuth
//	@Router			/chat/{space}/stream [get]
func (h *ChatHandler) Stream(c *gin.Context) {
	space := c.Param("space")
	if !service.ValidSpace(space) {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("unknown chat space", nil))
		return
	}
	otherID := c.Query("other_id")
	if otherID == "" {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("other_id is required", nil))
		return
	}

	id := middleware.CurrentIdentity(c)
	convID := service.ConversationID(id.ID, otherID)

	sub, err := h.hub.Subscribe(c.Request.Context(), realtime.ChatChannel(space, convID))
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
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			return true
		}
	})
}
