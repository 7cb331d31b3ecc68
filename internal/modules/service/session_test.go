package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"github.com/tutorhub/tutorhub/internal/pkg/meetingcode"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockSessionRequestRepo is a mock implementation of SessionRequestRepo
type MockSessionRequestRepo struct {
	mock.Mock
}

func (m *MockSessionRequestRepo) Create(ctx context.Context, s *model.SessionRequest) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSessionRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.SessionRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRequest), args.Error(1)
}

func (m *MockSessionRequestRepo) GetByMeetingCode(ctx context.Context, code string) (*model.SessionRequest, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRequest), args.Error(1)
}

func (m *MockSessionRequestRepo) MeetingCodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRequestRepo) ListPendingByTeacher(ctx context.Context, teacherID string) ([]*model.SessionRequest, error) {
	args := m.Called(ctx, teacherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SessionRequest), args.Error(1)
}

func (m *MockSessionRequestRepo) ListByRequester(ctx context.Context, requesterID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.SessionRequest, error) {
	args := m.Called(ctx, requesterID, afterCreatedAt, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SessionRequest), args.Error(1)
}

func (m *MockSessionRequestRepo) TransitionStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, updates map[string]interface{}) (bool, error) {
	args := m.Called(ctx, id, fromStatus, toStatus, updates)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRequestRepo) AppendParticipant(ctx context.Context, id uuid.UUID, p *model.Participation) error {
	args := m.Called(ctx, id, p)
	return args.Error(0)
}

// MockParticipationRepo is a mock implementation of ParticipationRepo
type MockParticipationRepo struct {
	mock.Mock
}

func (m *MockParticipationRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*model.Participation, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Participation), args.Error(1)
}

func (m *MockParticipationRepo) ListByUser(ctx context.Context, userID string, afterJoinedAt time.Time, afterID uuid.UUID, limit int) ([]*model.Participation, error) {
	args := m.Called(ctx, userID, afterJoinedAt, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Participation), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error {
	args := m.Called(ctx, exchangeName, routingKey, body)
	return args.Error(0)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.RabbitMQ.ExchangeName.Notification = "test.notification"
	cfg.RabbitMQ.RoutingKey.NotificationDeliver = "notification.deliver"
	return cfg
}

func newTestSessionService(r *MockSessionRequestRepo, pr *MockParticipationRepo, pub *MockEventPublisher) *sessionService {
	return &sessionService{
		r:    r,
		pr:   pr,
		pub:  pub,
		cfg:  testConfig(),
		log:  zap.NewNop(),
		code: meetingcode.Generate,
	}
}

func TestSessionService_CreateRequest(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		in      CreateSessionRequestInput
		setup   func(*MockSessionRequestRepo)
		wantErr bool
	}{
		{
			name: "successful create",
			in: CreateSessionRequestInput{
				RequesterID:   "student-1",
				RequesterName: "Alice",
				TeacherID:     "teacher-1",
				Topic:         "Algebra",
				RequestedDate: time.Now().Add(48 * time.Hour),
			},
			setup: func(r *MockSessionRequestRepo) {
				r.On("MeetingCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil)
				r.On("Create", ctx, mock.AnythingOfType("*model.SessionRequest")).Return(nil)
			},
		},
		{
			name: "missing topic",
			in: CreateSessionRequestInput{
				RequesterID:   "student-1",
				TeacherID:     "teacher-1",
				RequestedDate: time.Now(),
			},
			setup:   func(r *MockSessionRequestRepo) {},
			wantErr: true,
		},
		{
			name: "missing requested date",
			in: CreateSessionRequestInput{
				RequesterID: "student-1",
				TeacherID:   "teacher-1",
				Topic:       "Algebra",
			},
			setup:   func(r *MockSessionRequestRepo) {},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockSessionRequestRepo{}
			tt.setup(mockRepo)
			svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, &MockEventPublisher{})

			out, err := svc.CreateRequest(ctx, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.SessionStatusPending, out.Status)
			assert.Len(t, out.MeetingCode, meetingcode.DefaultLength)
			assert.Equal(t, "student-1", out.RequesterID)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestSessionService_CreateRequest_CodeCollisionRetries(t *testing.T) {
	ctx := context.Background()
	mockRepo := &MockSessionRequestRepo{}
	// First two draws collide, third is free.
	mockRepo.On("MeetingCodeExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Twice()
	mockRepo.On("MeetingCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.SessionRequest")).Return(nil)

	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, &MockEventPublisher{})
	out, err := svc.CreateRequest(ctx, CreateSessionRequestInput{
		RequesterID:   "student-1",
		TeacherID:     "teacher-1",
		Topic:         "Geometry",
		RequestedDate: time.Now(),
	})
	require.NoError(t, err)
	assert.Len(t, out.MeetingCode, meetingcode.DefaultLength)
	mockRepo.AssertExpectations(t)
}

func TestSessionService_CreateRequest_CodeCollisionExhausted(t *testing.T) {
	ctx := context.Background()
	mockRepo := &MockSessionRequestRepo{}
	mockRepo.On("MeetingCodeExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Times(meetingCodeMaxRetries)

	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, &MockEventPublisher{})
	_, err := svc.CreateRequest(ctx, CreateSessionRequestInput{
		RequesterID:   "student-1",
		TeacherID:     "teacher-1",
		Topic:         "Geometry",
		RequestedDate: time.Now(),
	})
	assert.ErrorIs(t, err, ErrCodeCollision)
	mockRepo.AssertExpectations(t)
}

func pendingRequest(teacherID string) *model.SessionRequest {
	return &model.SessionRequest{
		ID:            uuid.New(),
		RequesterID:   "student-1",
		RequesterName: "Alice",
		TeacherID:     teacherID,
		TeacherName:   "Mr. Brown",
		Topic:         "Algebra",
		Status:        model.SessionStatusPending,
		MeetingCode:   "XK93PQ",
	}
}

func TestSessionService_Approve(t *testing.T) {
	ctx := context.Background()
	req := pendingRequest("teacher-1")
	approved := *req
	approved.Status = model.SessionStatusApproved
	approved.RoomID = "room-abc"

	mockRepo := &MockSessionRequestRepo{}
	mockRepo.On("GetByID", ctx, req.ID).Return(req, nil).Once()
	mockRepo.On("TransitionStatus", ctx, req.ID, model.SessionStatusPending, model.SessionStatusApproved, mock.Anything).Return(true, nil)
	mockRepo.On("GetByID", ctx, req.ID).Return(&approved, nil).Once()

	pub := &MockEventPublisher{}
	pub.On("PublishJSON", ctx, "test.notification", "notification.deliver", mock.MatchedBy(func(body any) bool {
		ev, ok := body.(NotificationEvent)
		return ok && ev.Type == model.NotificationSessionApproved && ev.UserID == "student-1"
	})).Return(nil)

	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, pub)
	out, err := svc.Approve(ctx, DecideInput{SessionID: req.ID, TeacherID: "teacher-1", TeacherName: "Mr. Brown"})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusApproved, out.Status)
	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSessionService_Approve_LosesRace(t *testing.T) {
	ctx := context.Background()
	req := pendingRequest("teacher-1")

	mockRepo := &MockSessionRequestRepo{}
	mockRepo.On("GetByID", ctx, req.ID).Return(req, nil)
	// Another decider swapped the status between the read and the update.
	mockRepo.On("TransitionStatus", ctx, req.ID, model.SessionStatusPending, model.SessionStatusApproved, mock.Anything).Return(false, nil)

	pub := &MockEventPublisher{}
	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, pub)

	_, err := svc.Approve(ctx, DecideInput{SessionID: req.ID, TeacherID: "teacher-1"})
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	pub.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionService_Approve_WrongTeacher(t *testing.T) {
	ctx := context.Background()
	req := pendingRequest("teacher-1")

	mockRepo := &MockSessionRequestRepo{}
	mockRepo.On("GetByID", ctx, req.ID).Return(req, nil)

	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, &MockEventPublisher{})
	_, err := svc.Approve(ctx, DecideInput{SessionID: req.ID, TeacherID: "teacher-2"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSessionService_Approve_PublishFailureKeepsDecision(t *testing.T) {
	ctx := context.Background()
	req := pendingRequest("teacher-1")
	approved := *req
	approved.Status = model.SessionStatusApproved

	mockRepo := &MockSessionRequestRepo{}
	mockRepo.On("GetByID", ctx, req.ID).Return(req, nil).Once()
	mockRepo.On("TransitionStatus", ctx, req.ID, model.SessionStatusPending, model.SessionStatusApproved, mock.Anything).Return(true, nil)
	mockRepo.On("GetByID", ctx, req.ID).Return(&approved, nil).Once()

	pub := &MockEventPublisher{}
	pub.On("PublishJSON", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, pub)
	out, err := svc.Approve(ctx, DecideInput{SessionID: req.ID, TeacherID: "teacher-1"})

	// The decision stands even though the notification leg failed.
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusApproved, out.Status)
}

func TestSessionService_Reject(t *testing.T) {
	ctx := context.Background()
	req := pendingRequest("teacher-1")
	rejected := *req
	rejected.Status = model.SessionStatusRejected
	rejected.RejectionReason = "schedule conflict"

	tests := []struct {
		name    string
		in      DecideInput
		setup   func(*MockSessionRequestRepo, *MockEventPublisher)
		wantErr error
	}{
		{
			name: "successful reject",
			in:   DecideInput{SessionID: req.ID, TeacherID: "teacher-1", Reason: "schedule conflict"},
			setup: func(r *MockSessionRequestRepo, pub *MockEventPublisher) {
				r.On("GetByID", ctx, req.ID).Return(req, nil).Once()
				r.On("TransitionStatus", ctx, req.ID, model.SessionStatusPending, model.SessionStatusRejected, mock.Anything).Return(true, nil)
				r.On("GetByID", ctx, req.ID).Return(&rejected, nil).Once()
				pub.On("PublishJSON", ctx, mock.Anything, mock.Anything, mock.MatchedBy(func(body any) bool {
					ev, ok := body.(NotificationEvent)
					return ok && ev.Type == model.NotificationSessionRejected
				})).Return(nil)
			},
		},
		{
			name:    "missing reason",
			in:      DecideInput{SessionID: req.ID, TeacherID: "teacher-1"},
			setup:   func(r *MockSessionRequestRepo, pub *MockEventPublisher) {},
			wantErr: ErrReasonRequired,
		},
		{
			name: "not found",
			in:   DecideInput{SessionID: req.ID, TeacherID: "teacher-1", Reason: "busy"},
			setup: func(r *MockSessionRequestRepo, pub *MockEventPublisher) {
				r.On("GetByID", ctx, req.ID).Return(nil, gorm.ErrRecordNotFound)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockSessionRequestRepo{}
			pub := &MockEventPublisher{}
			tt.setup(mockRepo, pub)
			svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, pub)

			out, err := svc.Reject(ctx, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.SessionStatusRejected, out.Status)
			mockRepo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestSessionService_Join(t *testing.T) {
	ctx := context.Background()

	approved := &model.SessionRequest{
		ID:            uuid.New(),
		RequesterID:   "student-1",
		RequesterName: "Alice",
		TeacherID:     "teacher-1",
		TeacherName:   "Mr. Brown",
		Topic:         "Algebra",
		Status:        model.SessionStatusApproved,
		MeetingCode:   "XK93PQ",
		RoomID:        "room-abc",
	}

	tests := []struct {
		name        string
		in          JoinInput
		setup       func(*MockSessionRequestRepo)
		wantErr     error
		counterpart string
	}{
		{
			name: "student joins, counterpart is teacher",
			in:   JoinInput{MeetingCode: "xk93pq", UserID: "student-1", DisplayName: "Alice"},
			setup: func(r *MockSessionRequestRepo) {
				r.On("GetByMeetingCode", ctx, "XK93PQ").Return(approved, nil)
				r.On("AppendParticipant", ctx, approved.ID, mock.AnythingOfType("*model.Participation")).Return(nil)
			},
			counterpart: "Mr. Brown",
		},
		{
			name: "teacher joins, counterpart is requester",
			in:   JoinInput{MeetingCode: "XK93PQ", UserID: "teacher-1", DisplayName: "Mr. Brown"},
			setup: func(r *MockSessionRequestRepo) {
				r.On("GetByMeetingCode", ctx, "XK93PQ").Return(approved, nil)
				r.On("AppendParticipant", ctx, approved.ID, mock.AnythingOfType("*model.Participation")).Return(nil)
			},
			counterpart: "Alice",
		},
		{
			name: "unknown code",
			in:   JoinInput{MeetingCode: "ZZZZZZ", UserID: "student-1", DisplayName: "Alice"},
			setup: func(r *MockSessionRequestRepo) {
				r.On("GetByMeetingCode", ctx, "ZZZZZZ").Return(nil, gorm.ErrRecordNotFound)
			},
			wantErr: ErrInvalidMeetingCode,
		},
		{
			name:    "blank code",
			in:      JoinInput{MeetingCode: "   ", UserID: "student-1"},
			setup:   func(r *MockSessionRequestRepo) {},
			wantErr: ErrInvalidMeetingCode,
		},
		{
			name: "pending session cannot be joined",
			in:   JoinInput{MeetingCode: "XK93PQ", UserID: "student-1", DisplayName: "Alice"},
			setup: func(r *MockSessionRequestRepo) {
				pending := *approved
				pending.Status = model.SessionStatusPending
				r.On("GetByMeetingCode", ctx, "XK93PQ").Return(&pending, nil)
			},
			wantErr: ErrSessionNotApproved,
		},
		{
			name: "ended session cannot be joined",
			in:   JoinInput{MeetingCode: "XK93PQ", UserID: "student-1", DisplayName: "Alice"},
			setup: func(r *MockSessionRequestRepo) {
				ended := *approved
				ended.Status = model.SessionStatusEnded
				r.On("GetByMeetingCode", ctx, "XK93PQ").Return(&ended, nil)
			},
			wantErr: ErrSessionEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockSessionRequestRepo{}
			tt.setup(mockRepo)
			svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, &MockEventPublisher{})

			out, err := svc.Join(ctx, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, approved.ID, out.SessionID)
			assert.Equal(t, "room-abc", out.RoomID)
			assert.Equal(t, tt.counterpart, out.Counterpart)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestSessionService_End(t *testing.T) {
	ctx := context.Background()

	approved := &model.SessionRequest{
		ID:          uuid.New(),
		RequesterID: "student-1",
		TeacherID:   "teacher-1",
		Topic:       "Algebra",
		Status:      model.SessionStatusApproved,
	}

	mockRepo := &MockSessionRequestRepo{}
	mockRepo.On("GetByID", ctx, approved.ID).Return(approved, nil)
	mockRepo.On("TransitionStatus", ctx, approved.ID, model.SessionStatusApproved, model.SessionStatusEnded, mock.Anything).Return(true, nil)

	pub := &MockEventPublisher{}
	pub.On("PublishJSON", ctx, mock.Anything, mock.Anything, mock.MatchedBy(func(body any) bool {
		ev, ok := body.(NotificationEvent)
		return ok && ev.Type == model.NotificationSessionEnded
	})).Return(nil)

	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, pub)
	require.NoError(t, svc.End(ctx, approved.ID, "teacher-1"))
	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSessionService_End_AlreadyEnded(t *testing.T) {
	ctx := context.Background()

	ended := &model.SessionRequest{
		ID:        uuid.New(),
		TeacherID: "teacher-1",
		Status:    model.SessionStatusEnded,
	}

	mockRepo := &MockSessionRequestRepo{}
	mockRepo.On("GetByID", ctx, ended.ID).Return(ended, nil)
	mockRepo.On("TransitionStatus", ctx, ended.ID, model.SessionStatusApproved, model.SessionStatusEnded, mock.Anything).Return(false, nil)

	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, &MockEventPublisher{})
	assert.ErrorIs(t, svc.End(ctx, ended.ID, "teacher-1"), ErrSessionEnded)
}

func TestSessionService_ListMine_Pagination(t *testing.T) {
	ctx := context.Background()

	items := make([]*model.SessionRequest, 0, 3)
	base := time.Now()
	for i := 0; i < 3; i++ {
		items = append(items, &model.SessionRequest{
			ID:        uuid.New(),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}

	mockRepo := &MockSessionRequestRepo{}
	// Service asks for limit+1 to detect more pages.
	mockRepo.On("ListByRequester", ctx, "student-1", mock.Anything, mock.Anything, 3).Return(items, nil)

	svc := newTestSessionService(mockRepo, &MockParticipationRepo{}, &MockEventPublisher{})
	out, err := svc.ListMine(ctx, ListMySessionsInput{RequesterID: "student-1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
	assert.True(t, out.HasMore)
	assert.NotEmpty(t, out.NextCursor)
}
