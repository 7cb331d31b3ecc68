package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"github.com/tutorhub/tutorhub/internal/modules/repo"
	"github.com/tutorhub/tutorhub/internal/pkg/meetingcode"
	"github.com/tutorhub/tutorhub/internal/pkg/paging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventPublisher is the slice of the queue publisher the services need.
type EventPublisher interface {
	PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error
}

// NotificationEvent travels over the queue from the decision writer to the
// notification consumer.
type NotificationEvent struct {
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	RoomID    string     `json:"room_id,omitempty"`
}

const meetingCodeMaxRetries = 5

type SessionService interface {
	CreateRequest(ctx context.Context, in CreateSessionRequestInput) (*model.SessionRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.SessionRequest, error)
	ListPending(ctx context.Context, teacherID string) ([]*model.SessionRequest, error)
	ListMine(ctx context.Context, in ListMySessionsInput) (*ListMySessionsOutput, error)
	Approve(ctx context.Context, in DecideInput) (*model.SessionRequest, error)
	Reject(ctx context.Context, in DecideInput) (*model.SessionRequest, error)
	Start(ctx context.Context, sessionID uuid.UUID, teacherID string) error
	End(ctx context.Context, sessionID uuid.UUID, teacherID string) error
	Join(ctx context.Context, in JoinInput) (*JoinOutput, error)
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]*model.Participation, error)
	ListMyParticipations(ctx context.Context, in ListParticipationsInput) (*ListParticipationsOutput, error)
}

type sessionService struct {
	r    repo.SessionRequestRepo
	pr   repo.ParticipationRepo
	pub  EventPublisher
	cfg  *config.Config
	log  *zap.Logger
	code func(int) (string, error)
}

func NewSessionService(r repo.SessionRequestRepo, pr repo.ParticipationRepo, pub EventPublisher, cfg *config.Config, log *zap.Logger) SessionService {
	return &sessionService{
		r:    r,
		pr:   pr,
		pub:  pub,
		cfg:  cfg,
		log:  log,
		code: meetingcode.Generate,
	}
}

type CreateSessionRequestInput struct {
	RequesterID   string    `json:"requester_id"`
	RequesterName string    `json:"requester_name"`
	TeacherID     string    `json:"teacher_id"`
	TeacherName   string    `json:"teacher_name"`
	Topic         string    `json:"topic"`
	Description   string    `json:"description"`
	RequestedDate time.Time `json:"requested_date"`
}

func (s *sessionService) CreateRequest(ctx context.Context, in CreateSessionRequestInput) (*model.SessionRequest, error) {
	if in.RequesterID == "" || in.TeacherID == "" {
		return nil, errors.New("requester and teacher are required")
	}
	if in.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if in.RequestedDate.IsZero() {
		return nil, errors.New("requested date is required")
	}

	code, err := s.allocateMeetingCode(ctx)
	if err != nil {
		return nil, err
	}

	req := &model.SessionRequest{
		RequesterID:   in.RequesterID,
		RequesterName: in.RequesterName,
		TeacherID:     in.TeacherID,
		TeacherName:   in.TeacherName,
		Topic:         in.Topic,
		Description:   in.Description,
		RequestedDate: in.RequestedDate,
		Status:        model.SessionStatusPending,
		MeetingCode:   code,
		Participants:  []string{},
	}
	if err := s.r.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// allocateMeetingCode draws random codes until one is unused. The unique
// index on meeting_code still backstops the narrow window between the
// existence check and the insert.
func (s *sessionService) allocateMeetingCode(ctx context.Context) (string, error) {
	for i := 0; i < meetingCodeMaxRetries; i++ {
		code, err := s.code(meetingcode.DefaultLength)
		if err != nil {
			return "", err
		}
		exists, err := s.r.MeetingCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		s.log.Warn("meeting code collision, retrying",
			zap.String("code", code), zap.Int("attempt", i+1))
	}
	return "", ErrCodeCollision
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*model.SessionRequest, error) {
	req, err := s.r.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return req, err
}

func (s *sessionService) ListPending(ctx context.Context, teacherID string) ([]*model.SessionRequest, error) {
	return s.r.ListPendingByTeacher(ctx, teacherID)
}

type ListMySessionsInput struct {
	RequesterID string `json:"requester_id"`
	Limit       int    `json:"limit"`
	Cursor      string `json:"cursor"`
}

type ListMySessionsOutput struct {
	Items      []*model.SessionRequest `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
	HasMore    bool                    `json:"has_more"`
}

func (s *sessionService) ListMine(ctx context.Context, in ListMySessionsInput) (*ListMySessionsOutput, error) {
	if in.Limit <= 0 {
		in.Limit = 20
	}

	var afterT time.Time
	var afterID uuid.UUID
	var err error
	if in.Cursor != "" {
		afterT, afterID, err = paging.DecodeCursor(in.Cursor)
		if err != nil {
			return nil, err
		}
	}

	// Query limit+1 is used to determine has_more
	items, err := s.r.ListByRequester(ctx, in.RequesterID, afterT, afterID, in.Limit+1)
	if err != nil {
		return nil, err
	}

	out := &ListMySessionsOutput{Items: items}
	if len(items) > in.Limit {
		out.Items = items[:in.Limit]
		out.HasMore = true
		last := out.Items[len(out.Items)-1]
		out.NextCursor = paging.EncodeCursor(last.CreatedAt, last.ID)
	}
	return out, nil
}

type DecideInput struct {
	SessionID   uuid.UUID `json:"session_id"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	Reason      string    `json:"reason"`
}

// Approve decides a pending request. The decision and the notification form
// a two-step saga: the status swap commits first, the notification event is
// published second, and a publish failure never rolls the decision back. The
// reconcile sweep re-emits notifications for decided sessions that have none.
func (s *sessionService) Approve(ctx context.Context, in DecideInput) (*model.SessionRequest, error) {
	req, err := s.loadForDecision(ctx, in)
	if err != nil {
		return nil, err
	}

	roomID := fmt.Sprintf("room-%s", uuid.NewString())
	swapped, err := s.r.TransitionStatus(ctx, in.SessionID, model.SessionStatusPending, model.SessionStatusApproved, map[string]interface{}{
		"room_id":      roomID,
		"teacher_name": in.TeacherName,
	})
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrAlreadyDecided
	}
	s.log.Info("session request approved",
		zap.String("saga_step", "decision"),
		zap.String("session_id", in.SessionID.String()))

	req, err = s.r.GetByID(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	ev := NotificationEvent{
		UserID:    req.RequesterID,
		Title:     "Session approved",
		Message:   fmt.Sprintf("%s approved your session on %q", req.TeacherName, req.Topic),
		Type:      model.NotificationSessionApproved,
		SessionID: &req.ID,
		RoomID:    req.RoomID,
	}
	s.publishNotification(ctx, ev)
	return req, nil
}

func (s *sessionService) Reject(ctx context.Context, in DecideInput) (*model.SessionRequest, error) {
	if in.Reason == "" {
		return nil, ErrReasonRequired
	}
	req, err := s.loadForDecision(ctx, in)
	if err != nil {
		return nil, err
	}

	swapped, err := s.r.TransitionStatus(ctx, in.SessionID, model.SessionStatusPending, model.SessionStatusRejected, map[string]interface{}{
		"rejection_reason": in.Reason,
	})
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrAlreadyDecided
	}
	s.log.Info("session request rejected",
		zap.String("saga_step", "decision"),
		zap.String("session_id", in.SessionID.String()))

	req, err = s.r.GetByID(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	ev := NotificationEvent{
		UserID:    req.RequesterID,
		Title:     "Session rejected",
		Message:   fmt.Sprintf("Your session on %q was rejected: %s", req.Topic, req.RejectionReason),
		Type:      model.NotificationSessionRejected,
		SessionID: &req.ID,
	}
	s.publishNotification(ctx, ev)
	return req, nil
}

func (s *sessionService) loadForDecision(ctx context.Context, in DecideInput) (*model.SessionRequest, error) {
	req, err := s.r.GetByID(ctx, in.SessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if req.TeacherID != in.TeacherID {
		return nil, ErrForbidden
	}
	if !req.IsPending() {
		return nil, ErrAlreadyDecided
	}
	return req, nil
}

func (s *sessionService) publishNotification(ctx context.Context, ev NotificationEvent) {
	err := s.pub.PublishJSON(ctx,
		s.cfg.RabbitMQ.ExchangeName.Notification,
		s.cfg.RabbitMQ.RoutingKey.NotificationDeliver,
		ev)
	if err != nil {
		// No rollback: the decision stands, the sweep will re-emit.
		s.log.Error("notification publish failed",
			zap.String("saga_step", "notify"),
			zap.String("type", ev.Type),
			zap.Error(err))
	}
}

func (s *sessionService) Start(ctx context.Context, sessionID uuid.UUID, teacherID string) error {
	req, err := s.r.GetByID(ctx, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if req.TeacherID != teacherID {
		return ErrForbidden
	}
	if !req.IsApproved() {
		return ErrSessionNotApproved
	}

	s.publishNotification(ctx, NotificationEvent{
		UserID:    req.RequesterID,
		Title:     "Session started",
		Message:   fmt.Sprintf("%s started your session on %q", req.TeacherName, req.Topic),
		Type:      model.NotificationSessionStarted,
		SessionID: &req.ID,
		RoomID:    req.RoomID,
	})
	return nil
}

func (s *sessionService) End(ctx context.Context, sessionID uuid.UUID, teacherID string) error {
	req, err := s.r.GetByID(ctx, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if req.TeacherID != teacherID {
		return ErrForbidden
	}

	swapped, err := s.r.TransitionStatus(ctx, sessionID, model.SessionStatusApproved, model.SessionStatusEnded, nil)
	if err != nil {
		return err
	}
	if !swapped {
		if req.IsEnded() {
			return ErrSessionEnded
		}
		return ErrSessionNotApproved
	}

	s.publishNotification(ctx, NotificationEvent{
		UserID:    req.RequesterID,
		Title:     "Session ended",
		Message:   fmt.Sprintf("Your session on %q has ended", req.Topic),
		Type:      model.NotificationSessionEnded,
		SessionID: &req.ID,
	})
	return nil
}

type JoinInput struct {
	MeetingCode string `json:"meeting_code"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type JoinOutput struct {
	SessionID   uuid.UUID `json:"session_id"`
	RoomID      string    `json:"room_id"`
	MeetingCode string    `json:"meeting_code"`
	Topic       string    `json:"topic"`
	Participant string    `json:"participant"`
	Counterpart string    `json:"counterpart"`
}

// Join admits a caller into an approved session by meeting code. Repeat joins
// are no-ops: the participant set and the participation table both have set
// semantics.
func (s *sessionService) Join(ctx context.Context, in JoinInput) (*JoinOutput, error) {
	code := meetingcode.Normalize(in.MeetingCode)
	if code == "" {
		return nil, ErrInvalidMeetingCode
	}

	req, err := s.r.GetByMeetingCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidMeetingCode
	}
	if err != nil {
		return nil, err
	}
	if req.IsEnded() {
		return nil, ErrSessionEnded
	}
	if !req.IsApproved() {
		return nil, ErrSessionNotApproved
	}

	p := &model.Participation{
		SessionID:   req.ID,
		UserID:      in.UserID,
		DisplayName: in.DisplayName,
		Topic:       req.Topic,
		TeacherName: req.TeacherName,
	}
	if err := s.r.AppendParticipant(ctx, req.ID, p); err != nil {
		return nil, err
	}

	counterpart := req.RequesterName
	if in.UserID == req.RequesterID {
		counterpart = req.TeacherName
	}
	return &JoinOutput{
		SessionID:   req.ID,
		RoomID:      req.RoomID,
		MeetingCode: req.MeetingCode,
		Topic:       req.Topic,
		Participant: in.DisplayName,
		Counterpart: counterpart,
	}, nil
}

func (s *sessionService) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]*model.Participation, error) {
	return s.pr.ListBySession(ctx, sessionID)
}

type ListParticipationsInput struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor"`
}

type ListParticipationsOutput struct {
	Items      []*model.Participation `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
	HasMore    bool                   `json:"has_more"`
}

func (s *sessionService) ListMyParticipations(ctx context.Context, in ListParticipationsInput) (*ListParticipationsOutput, error) {
	if in.Limit <= 0 {
		in.Limit = 20
	}

	var afterT time.Time
	var afterID uuid.UUID
	var err error
	if in.Cursor != "" {
		afterT, afterID, err = paging.DecodeCursor(in.Cursor)
		if err != nil {
			return nil, err
		}
	}

	items, err := s.pr.ListByUser(ctx, in.UserID, afterT, afterID, in.Limit+1)
	if err != nil {
		return nil, err
	}

	out := &ListParticipationsOutput{Items: items}
	if len(items) > in.Limit {
		out.Items = items[:in.Limit]
		out.HasMore = true
		last := out.Items[len(out.Items)-1]
		out.NextCursor = paging.EncodeCursor(last.JoinedAt, last.ID)
	}
	return out, nil
}
