package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/modules/serializer"
	"github.com/tutorhub/tutorhub/internal/modules/service"
)

type SessionHandler struct {
	svc service.SessionService
}

func NewSessionHandler(s service.SessionService) *SessionHandler {
	return &SessionHandler{svc: s}
}

type CreateSessionRequestReq struct {
	TeacherID     string    `json:"teacher_id" binding:"required"`
	TeacherName   string    `json:"teacher_name"`
	Topic         string    `json:"topic" binding:"required"`
	Description   string    `json:"description"`
	RequestedDate time.Time `json:"requested_date" binding:"required"`
}

// CreateRequest godoc
//
//	@Summary		Request a session
//	@Description	Create a pending session request addressed to a teacher. A unique meeting code is allocated immediately.
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			request	body	CreateSessionRequestReq	true	"Session request"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.SessionRequest}
//	@Router			/sessions [post]
func (h *SessionHandler) CreateRequest(c *gin.Context) {
	req := CreateSessionRequestReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.CreateRequest(c.Request.Context(), service.CreateSessionRequestInput{
		RequesterID:   id.ID,
		RequesterName: id.DisplayName,
		TeacherID:     req.TeacherID,
		TeacherName:   req.TeacherName,
		Topic:         req.Topic,
		Description:   req.Description,
		RequestedDate: req.RequestedDate,
	})
	if err != nil {
		if errors.Is(err, service.ErrCodeCollision) {
			c.JSON(http.StatusInternalServerError, serializer.Err(http.StatusInternalServerError, "could not allocate meeting code", err))
			return
		}
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// ListPending godoc
//
//	@Summary		List pending requests
//	@Description	List pending session requests addressed to the calling teacher, oldest requested date first.
//	@Tags			session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.SessionRequest}
//	@Router			/sessions/pending [get]
func (h *SessionHandler) ListPending(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	items, err := h.svc.ListPending(c.Request.Context(), id.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

type ListMySessionsReq struct {
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100" example:"20"`
	Cursor string `form:"cursor"`
}

// ListMine godoc
//
//	@Summary		List my requests
//	@Description	List the calling student's session requests, newest first, cursor paginated.
//	@Tags			session
//	@Produce		json
//	@Param			limit	query	integer	false	"Page size, max 100"
//	@Param			cursor	query	string	false	"Cursor from the previous page"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ListMySessionsOutput}
//	@Router			/sessions/mine [get]
func (h *SessionHandler) ListMine(c *gin.Context) {
	req := ListMySessionsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.ListMine(c.Request.Context(), service.ListMySessionsInput{
		RequesterID: id.ID,
		Limit:       req.Limit,
		Cursor:      req.Cursor,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// GetSession godoc
//
//	@Summary		Get a session request
//	@Tags			session
//	@Produce		json
//	@Param			session_id	path	string	true	"Session request id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.SessionRequest}
//	@Router			/sessions/{session_id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}

	out, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// Approve godoc
//
//	@Summary		Approve a request
//	@Description	Approve a pending session request. The decision commits first; the requester's notification follows asynchronously.
//	@Tags			session
//	@Produce		json
//	@Param			session_id	path	string	true	"Session request id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.SessionRequest}
//	@Router			/sessions/{session_id}/approve [post]
func (h *SessionHandler) Approve(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.Approve(c.Request.Context(), service.DecideInput{
		SessionID:   sessionID,
		TeacherID:   id.ID,
		TeacherName: id.DisplayName,
	})
	if err != nil {
		h.respondDecisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

type RejectReq struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject godoc
//
//	@Summary		Reject a request
//	@Description	Reject a pending session request with a reason.
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			session_id	path	string		true	"Session request id"
//	@Param			request		body	RejectReq	true	"Rejection reason"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.SessionRequest}
//	@Router			/sessions/{session_id}/reject [post]
func (h *SessionHandler) Reject(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}

	req := RejectReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("rejection reason is required", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.Reject(c.Request.Context(), service.DecideInput{
		SessionID: sessionID,
		TeacherID: id.ID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondDecisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *SessionHandler) respondDecisionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", err))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, serializer.Err(http.StatusForbidden, "not your session request", err))
	case errors.Is(err, service.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, serializer.ConflictErr("session request already decided", err))
	case errors.Is(err, service.ErrReasonRequired):
		c.JSON(http.StatusBadRequest, serializer.ParamErr("rejection reason is required", err))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}

// Start godoc
//
//	@Summary		Start a session
//	@Description	Notify the requester that the teacher opened the room.
//	@Tags			session
//	@Produce		json
//	@Param			session_id	path	string	true	"Session request id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/sessions/{session_id}/start [post]
func (h *SessionHandler) Start(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	if err := h.svc.Start(c.Request.Context(), sessionID, id.ID); err != nil {
		h.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{})
}

// End godoc
//
//	@Summary		End a session
//	@Description	Move an approved session to ended. Ended sessions cannot be joined again.
//	@Tags			session
//	@Produce		json
//	@Param			session_id	path	string	true	"Session request id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/sessions/{session_id}/end [post]
func (h *SessionHandler) End(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	if err := h.svc.End(c.Request.Context(), sessionID, id.ID); err != nil {
		h.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{})
}

func (h *SessionHandler) respondLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", err))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, serializer.Err(http.StatusForbidden, "not your session", err))
	case errors.Is(err, service.ErrSessionNotApproved):
		c.JSON(http.StatusConflict, serializer.ConflictErr("session is not approved", err))
	case errors.Is(err, service.ErrSessionEnded):
		c.JSON(http.StatusConflict, serializer.ConflictErr("session has already ended", err))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}

type JoinReq struct {
	MeetingCode string `json:"meeting_code" binding:"required"`
}

// Join godoc
//
//	@Summary		Join a session
//	@Description	Join an approved session by meeting code. Joining twice is a no-op.
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			request	body	JoinReq	true	"Meeting code"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.JoinOutput}
//	@Router			/sessions/join [post]
func (h *SessionHandler) Join(c *gin.Context) {
	req := JoinReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("meeting code is required", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.Join(c.Request.Context(), service.JoinInput{
		MeetingCode: req.MeetingCode,
		UserID:      id.ID,
		DisplayName: id.DisplayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidMeetingCode):
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("invalid meeting code", err))
		case errors.Is(err, service.ErrSessionEnded):
			c.JSON(http.StatusConflict, serializer.ConflictErr("session has ended", err))
		case errors.Is(err, service.ErrSessionNotApproved):
			c.JSON(http.StatusConflict, serializer.ConflictErr("session is not approved", err))
		default:
			c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		}
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// ListParticipants godoc
//
//	@Summary		List session participants
//	@Tags			session
//	@Produce		json
//	@Param			session_id	path	string	true	"Session request id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Participation}
//	@Router			/sessions/{session_id}/participants [get]
func (h *SessionHandler) ListParticipants(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}

	items, err := h.svc.ListParticipants(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

// ListMyParticipations godoc
//
//	@Summary		List my joined sessions
//	@Description	The calling user's participation history, newest first, cursor paginated.
//	@Tags			session
//	@Produce		json
//	@Param			limit	query	integer	false	"Page size, max 100"
//	@Param			cursor	query	string	false	"Cursor from the previous page"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.ListParticipationsOutput}
//	@Router			/sessions/participations [get]
func (h *SessionHandler) ListMyParticipations(c *gin.Context) {
	req := ListMySessionsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.ListMyParticipations(c.Request.Context(), service.ListParticipationsInput{
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
