package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"github.com/tutorhub/tutorhub/internal/pkg/paging"
	"github.com/tutorhub/tutorhub/internal/realtime"
	"go.uber.org/zap"
)

// MockChatRepo is a mock implementation of ChatRepo
type MockChatRepo struct {
	mock.Mock
}

func (m *MockChatRepo) Create(ctx context.Context, msg *model.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockChatRepo) ListByConversation(ctx context.Context, space, conversationID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int) ([]*model.ChatMessage, error) {
	args := m.Called(ctx, space, conversationID, afterCreatedAt, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ChatMessage), args.Error(1)
}

func newTestChatService(t *testing.T, r *MockChatRepo) ChatService {
	return newTestChatServiceWithCacheSize(t, r, 50)
}

func newTestChatServiceWithCacheSize(t *testing.T, r *MockChatRepo, size int) ChatService {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.Chat.HistoryCacheSize = size

	hub := realtime.NewHub(rdb, zap.NewNop())
	return NewChatService(r, rdb, hub, cfg, zap.NewNop())
}

func TestConversationID_Symmetric(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"alice", "bob", "alice_bob"},
		{"bob", "alice", "alice_bob"},
		{"u2", "u10", "u10_u2"},
		{"same", "same", "same_same"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ConversationID(tt.a, tt.b))
		assert.Equal(t, ConversationID(tt.a, tt.b), ConversationID(tt.b, tt.a))
	}
}

func TestChatService_Send(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		in      SendMessageInput
		setup   func(*MockChatRepo)
		wantErr error
	}{
		{
			name: "successful send",
			in: SendMessageInput{
				Space:       model.ChatSpacePrivate,
				SenderID:    "student-1",
				SenderName:  "Alice",
				RecipientID: "teacher-1",
				Text:        "hello",
			},
			setup: func(r *MockChatRepo) {
				r.On("Create", ctx, mock.MatchedBy(func(m *model.ChatMessage) bool {
					return m.ConversationID == "student-1_teacher-1" && m.Text == "hello"
				})).Return(nil)
			},
		},
		{
			name: "empty text",
			in: SendMessageInput{
				Space:       model.ChatSpaceCareer,
				SenderID:    "student-1",
				RecipientID: "teacher-1",
			},
			setup:   func(r *MockChatRepo) {},
			wantErr: ErrEmptyMessage,
		},
		{
			name: "unknown space",
			in: SendMessageInput{
				Space:       "group",
				SenderID:    "student-1",
				RecipientID: "teacher-1",
				Text:        "hello",
			},
			setup:   func(r *MockChatRepo) {},
			wantErr: ErrInvalidSpace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockChatRepo{}
			tt.setup(mockRepo)
			svc := newTestChatService(t, mockRepo)

			out, err := svc.Send(ctx, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ConversationID(tt.in.SenderID, tt.in.RecipientID), out.ConversationID)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestChatService_Send_BothDirectionsShareConversation(t *testing.T) {
	ctx := context.Background()
	mockRepo := &MockChatRepo{}

	var gotConvIDs []string
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.ChatMessage")).
		Run(func(args mock.Arguments) {
			gotConvIDs = append(gotConvIDs, args.Get(1).(*model.ChatMessage).ConversationID)
		}).Return(nil)

	svc := newTestChatService(t, mockRepo)

	_, err := svc.Send(ctx, SendMessageInput{
		Space: model.ChatSpacePrivate, SenderID: "student-1", RecipientID: "teacher-1", Text: "hi",
	})
	require.NoError(t, err)
	_, err = svc.Send(ctx, SendMessageInput{
		Space: model.ChatSpacePrivate, SenderID: "teacher-1", RecipientID: "student-1", Text: "hi back",
	})
	require.NoError(t, err)

	require.Len(t, gotConvIDs, 2)
	assert.Equal(t, gotConvIDs[0], gotConvIDs[1])
}

func TestChatService_History_FirstPageFromCache(t *testing.T) {
	ctx := context.Background()
	mockRepo := &MockChatRepo{}
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.ChatMessage")).Return(nil)

	svc := newTestChatService(t, mockRepo)

	for _, text := range []string{"first", "second", "third"} {
		_, err := svc.Send(ctx, SendMessageInput{
			Space: model.ChatSpacePrivate, SenderID: "student-1", RecipientID: "teacher-1", Text: text,
		})
		require.NoError(t, err)
	}

	out, err := svc.History(ctx, ChatHistoryInput{
		Space:   model.ChatSpacePrivate,
		UserID:  "teacher-1",
		OtherID: "student-1",
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "third", out.Items[0].Text)
	assert.True(t, out.HasMore)
	assert.NotEmpty(t, out.NextCursor)

	// The first page came from cache, never touching the repo.
	mockRepo.AssertNotCalled(t, "ListByConversation",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChatService_History_ShortCacheFallsThrough(t *testing.T) {
	ctx := context.Background()
	convID := ConversationID("student-1", "teacher-1")

	persisted := []*model.ChatMessage{
		{ID: uuid.New(), ConversationID: convID, Text: "third", CreatedAt: time.Now()},
		{ID: uuid.New(), ConversationID: convID, Text: "second", CreatedAt: time.Now().Add(-time.Minute)},
		{ID: uuid.New(), ConversationID: convID, Text: "first", CreatedAt: time.Now().Add(-2 * time.Minute)},
	}

	mockRepo := &MockChatRepo{}
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.ChatMessage")).Return(nil)
	mockRepo.On("ListByConversation", ctx, model.ChatSpacePrivate, convID, mock.Anything, mock.Anything, 3).
		Return(persisted, nil)

	// The cache cap equals the page size, so the cache holds exactly limit
	// entries and cannot prove the page is complete.
	svc := newTestChatServiceWithCacheSize(t, mockRepo, 2)

	for _, text := range []string{"first", "second", "third"} {
		_, err := svc.Send(ctx, SendMessageInput{
			Space: model.ChatSpacePrivate, SenderID: "student-1", RecipientID: "teacher-1", Text: text,
		})
		require.NoError(t, err)
	}

	out, err := svc.History(ctx, ChatHistoryInput{
		Space:   model.ChatSpacePrivate,
		UserID:  "teacher-1",
		OtherID: "student-1",
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.True(t, out.HasMore)
	assert.NotEmpty(t, out.NextCursor)
	mockRepo.AssertExpectations(t)
}

func TestChatService_History_CursorGoesToDatabase(t *testing.T) {
	ctx := context.Background()

	convID := ConversationID("student-1", "teacher-1")
	msgs := []*model.ChatMessage{
		{ID: uuid.New(), ConversationID: convID, Text: "older", CreatedAt: time.Now().Add(-time.Hour)},
	}

	mockRepo := &MockChatRepo{}
	mockRepo.On("ListByConversation", ctx, model.ChatSpacePrivate, convID, mock.Anything, mock.Anything, 11).
		Return(msgs, nil)

	svc := newTestChatService(t, mockRepo)

	cursorTime := time.Now()
	cursorID := uuid.New()
	out, err := svc.History(ctx, ChatHistoryInput{
		Space:   model.ChatSpacePrivate,
		UserID:  "student-1",
		OtherID: "teacher-1",
		Limit:   10,
		Cursor:  paging.EncodeCursor(cursorTime, cursorID),
	})
	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.False(t, out.HasMore)
	mockRepo.AssertExpectations(t)
}

func TestChatService_History_InvalidSpace(t *testing.T) {
	svc := newTestChatService(t, &MockChatRepo{})
	_, err := svc.History(context.Background(), ChatHistoryInput{
		Space: "group", UserID: "a", OtherID: "b",
	})
	assert.ErrorIs(t, err, ErrInvalidSpace)
}
