package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/modules/serializer"
	"github.com/tutorhub/tutorhub/internal/modules/service"
)

type ChatbotHandler struct {
	svc service.ChatbotService
}

func NewChatbotHandler(s service.ChatbotService) *ChatbotHandler {
	return &ChatbotHandler{svc: s}
}

type AskReq struct {
	Question string `json:"question" binding:"required"`
}

// Ask godoc
//
//	@Summary		Ask the study assistant
//	@Description	Send a question to the study assistant. Conversation history is kept per user and trimmed to a token budget.
//	@Tags			chatbot
//	@Accept			json
//	@Produce		json
//	@Param			request	body	AskReq	true	"Question"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.AskOutput}
//	@Router			/chatbot/ask [post]
func (h *ChatbotHandler) Ask(c *gin.Context) {
	req := AskReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("question is required", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.Ask(c.Request.Context(), service.AskInput{
		UserID:   id.ID,
		Question: req.Question,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("question is required", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.Err(http.StatusInternalServerError, "assistant unavailable", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}
