package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"github.com/tutorhub/tutorhub/internal/modules/service"
)

// MockSessionService is a mock implementation of service.SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) CreateRequest(ctx context.Context, in service.CreateSessionRequestInput) (*model.SessionRequest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRequest), args.Error(1)
}

func (m *MockSessionService) Get(ctx context.Context, id uuid.UUID) (*model.SessionRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRequest), args.Error(1)
}

func (m *MockSessionService) ListPending(ctx context.Context, teacherID string) ([]*model.SessionRequest, error) {
	args := m.Called(ctx, teacherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SessionRequest), args.Error(1)
}

func (m *MockSessionService) ListMine(ctx context.Context, in service.ListMySessionsInput) (*service.ListMySessionsOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListMySessionsOutput), args.Error(1)
}

func (m *MockSessionService) Approve(ctx context.Context, in service.DecideInput) (*model.SessionRequest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRequest), args.Error(1)
}

func (m *MockSessionService) Reject(ctx context.Context, in service.DecideInput) (*model.SessionRequest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRequest), args.Error(1)
}

func (m *MockSessionService) Start(ctx context.Context, sessionID uuid.UUID, teacherID string) error {
	args := m.Called(ctx, sessionID, teacherID)
	return args.Error(0)
}

func (m *MockSessionService) End(ctx context.Context, sessionID uuid.UUID, teacherID string) error {
	args := m.Called(ctx, sessionID, teacherID)
	return args.Error(0)
}

func (m *MockSessionService) Join(ctx context.Context, in service.JoinInput) (*service.JoinOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JoinOutput), args.Error(1)
}

func (m *MockSessionService) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]*model.Participation, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Participation), args.Error(1)
}

func (m *MockSessionService) ListMyParticipations(ctx context.Context, in service.ListParticipationsInput) (*service.ListParticipationsOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListParticipationsOutput), args.Error(1)
}

func setupSessionRouter(h *SessionHandler, identity *middleware.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("identity", identity)
		c.Next()
	})
	r.POST("/sessions", h.CreateRequest)
	r.POST("/sessions/join", h.Join)
	r.POST("/sessions/:session_id/approve", h.Approve)
	r.POST("/sessions/:session_id/reject", h.Reject)
	return r
}

func TestSessionHandler_CreateRequest(t *testing.T) {
	identity := &middleware.Identity{ID: "student-1", DisplayName: "Alice"}

	tests := []struct {
		name           string
		body           map[string]interface{}
		setup          func(*MockSessionService)
		expectedStatus int
	}{
		{
			name: "successful request",
			body: map[string]interface{}{
				"teacher_id":     "teacher-1",
				"topic":          "Algebra",
				"requested_date": time.Now().Add(48 * time.Hour).Format(time.RFC3339),
			},
			setup: func(svc *MockSessionService) {
				svc.On("CreateRequest", mock.Anything, mock.MatchedBy(func(in service.CreateSessionRequestInput) bool {
					// Identity comes from the middleware, not the body.
					return in.RequesterID == "student-1" && in.RequesterName == "Alice" && in.Topic == "Algebra"
				})).Return(&model.SessionRequest{
					ID:          uuid.New(),
					Status:      model.SessionStatusPending,
					MeetingCode: "XK93PQ",
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "missing topic",
			body: map[string]interface{}{
				"teacher_id":     "teacher-1",
				"requested_date": time.Now().Format(time.RFC3339),
			},
			setup:          func(svc *MockSessionService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockSessionService{}
			tt.setup(mockService)

			router := setupSessionRouter(NewSessionHandler(mockService), identity)

			payload, _ := json.Marshal(tt.body)
			req := httptest.NewRequest("POST", "/sessions", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestSessionHandler_Approve(t *testing.T) {
	identity := &middleware.Identity{ID: "teacher-1", DisplayName: "Mr. Brown", IsTeacher: true}
	sessionID := uuid.New()

	tests := []struct {
		name           string
		setup          func(*MockSessionService)
		expectedStatus int
	}{
		{
			name: "successful approve",
			setup: func(svc *MockSessionService) {
				svc.On("Approve", mock.Anything, service.DecideInput{
					SessionID:   sessionID,
					TeacherID:   "teacher-1",
					TeacherName: "Mr. Brown",
				}).Return(&model.SessionRequest{
					ID:     sessionID,
					Status: model.SessionStatusApproved,
					RoomID: "room-abc",
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "already decided",
			setup: func(svc *MockSessionService) {
				svc.On("Approve", mock.Anything, mock.Anything).Return(nil, service.ErrAlreadyDecided)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "not found",
			setup: func(svc *MockSessionService) {
				svc.On("Approve", mock.Anything, mock.Anything).Return(nil, service.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "not the addressed teacher",
			setup: func(svc *MockSessionService) {
				svc.On("Approve", mock.Anything, mock.Anything).Return(nil, service.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockSessionService{}
			tt.setup(mockService)

			router := setupSessionRouter(NewSessionHandler(mockService), identity)

			req := httptest.NewRequest("POST", "/sessions/"+sessionID.String()+"/approve", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestSessionHandler_Reject_RequiresReason(t *testing.T) {
	identity := &middleware.Identity{ID: "teacher-1", IsTeacher: true}
	sessionID := uuid.New()

	mockService := &MockSessionService{}
	router := setupSessionRouter(NewSessionHandler(mockService), identity)

	req := httptest.NewRequest("POST", "/sessions/"+sessionID.String()+"/reject", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Reject", mock.Anything, mock.Anything)
}

func TestSessionHandler_Join(t *testing.T) {
	identity := &middleware.Identity{ID: "student-1", DisplayName: "Alice"}

	tests := []struct {
		name           string
		body           string
		setup          func(*MockSessionService)
		expectedStatus int
	}{
		{
			name: "successful join",
			body: `{"meeting_code":"XK93PQ"}`,
			setup: func(svc *MockSessionService) {
				svc.On("Join", mock.Anything, service.JoinInput{
					MeetingCode: "XK93PQ",
					UserID:      "student-1",
					DisplayName: "Alice",
				}).Return(&service.JoinOutput{
					SessionID:   uuid.New(),
					RoomID:      "room-abc",
					MeetingCode: "XK93PQ",
					Counterpart: "Mr. Brown",
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "invalid code",
			body: `{"meeting_code":"ZZZZZZ"}`,
			setup: func(svc *MockSessionService) {
				svc.On("Join", mock.Anything, mock.Anything).Return(nil, service.ErrInvalidMeetingCode)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "session ended",
			body: `{"meeting_code":"XK93PQ"}`,
			setup: func(svc *MockSessionService) {
				svc.On("Join", mock.Anything, mock.Anything).Return(nil, service.ErrSessionEnded)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "missing code",
			body:           `{}`,
			setup:          func(svc *MockSessionService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockSessionService{}
			tt.setup(mockService)

			router := setupSessionRouter(NewSessionHandler(mockService), identity)

			req := httptest.NewRequest("POST", "/sessions/join", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}
