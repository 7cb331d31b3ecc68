package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/modules/model"
	"github.com/tutorhub/tutorhub/internal/modules/repo"
	"github.com/tutorhub/tutorhub/internal/pkg/paging"
	"github.com/tutorhub/tutorhub/internal/realtime"
	"go.uber.org/zap"
)

// ConversationID derives the shared conversation key for two user ids. It is
// symmetric: both sides compute the same id regardless of argument order.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// ValidSpace reports whether space names one of the two conversation spaces.
func ValidSpace(space string) bool {
	return space == model.ChatSpacePrivate || space == model.ChatSpaceCareer
}

type ChatService interface {
	Send(ctx context.Context, in SendMessageInput) (*model.ChatMessage, error)
	History(ctx context.Context, in ChatHistoryInput) (*ChatHistoryOutput, error)
}

type chatService struct {
	r   repo.ChatRepo
	rdb *redis.Client
	hub *realtime.Hub
	cfg *config.Config
	log *zap.Logger
}

func NewChatService(r repo.ChatRepo, rdb *redis.Client, hub *realtime.Hub, cfg *config.Config, log *zap.Logger) ChatService {
	return &chatService{r: r, rdb: rdb, hub: hub, cfg: cfg, log: log}
}

func historyCacheKey(space, conversationID string) string {
	return fmt.Sprintf("chat:history:%s:%s", space, conversationID)
}

type SendMessageInput struct {
	Space       string `json:"space"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	IsTeacher   bool   `json:"is_teacher"`
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

// Send persists a message, refreshes the conversation's hot cache and fans
// it out to the conversation's realtime channel. The database row is the
// source of truth; cache and fan-out failures only degrade freshness.
func (s *chatService) Send(ctx context.Context, in SendMessageInput) (*model.ChatMessage, error) {
	if !ValidSpace(in.Space) {
		return nil, ErrInvalidSpace
	}
	if in.Text == "" {
		return nil, ErrEmptyMessage
	}
	if in.SenderID == "" || in.RecipientID == "" {
		return nil, fmt.Errorf("sender and recipient are required")
	}

	convID := ConversationID(in.SenderID, in.RecipientID)
	msg := &model.ChatMessage{
		Space:          in.Space,
		ConversationID: convID,
		SenderID:       in.SenderID,
		SenderName:     in.SenderName,
		IsTeacher:      in.IsTeacher,
		Text:           in.Text,
	}
	if err := s.r.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.cacheMessage(ctx, msg)

	if err := s.hub.Publish(ctx, realtime.ChatChannel(in.Space, convID), msg); err != nil {
		s.log.Warn("chat fan-out failed",
			zap.String("conversation_id", convID), zap.Error(err))
	}
	return msg, nil
}

func (s *chatService) cacheMessage(ctx context.Context, msg *model.ChatMessage) {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	key := historyCacheKey(msg.Space, msg.ConversationID)
	size := int64(s.cfg.Chat.HistoryCacheSize)

	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, size-1)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("chat history cache update failed",
			zap.String("conversation_id", msg.ConversationID), zap.Error(err))
	}
}

type ChatHistoryInput struct {
	Space   string `json:"space"`
	UserID  string `json:"user_id"`
	OtherID string `json:"other_id"`
	Limit   int    `json:"limit"`
	Cursor  string `json:"cursor"`
}

type ChatHistoryOutput struct {
	ConversationID string               `json:"conversation_id"`
	Items          []*model.ChatMessage `json:"items"`
	NextCursor     string               `json:"next_cursor,omitempty"`
	HasMore        bool                 `json:"has_more"`
}

// History returns messages newest first. The first page is served from the
// Redis hot cache when the cache holds more entries than the page needs;
// anything else goes to the database.
func (s *chatService) History(ctx context.Context, in ChatHistoryInput) (*ChatHistoryOutput, error) {
	if !ValidSpace(in.Space) {
		return nil, ErrInvalidSpace
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}
	convID := ConversationID(in.UserID, in.OtherID)

	if in.Cursor == "" && in.Limit <= s.cfg.Chat.HistoryCacheSize {
		if out, ok := s.historyFromCache(ctx, in.Space, convID, in.Limit); ok {
			return out, nil
		}
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

	items, err := s.r.ListByConversation(ctx, in.Space, convID, afterT, afterID, in.Limit+1)
	if err != nil {
		return nil, err
	}

	out := &ChatHistoryOutput{ConversationID: convID, Items: items}
	if len(items) > in.Limit {
		out.Items = items[:in.Limit]
		out.HasMore = true
		last := out.Items[len(out.Items)-1]
		out.NextCursor = paging.EncodeCursor(last.CreatedAt, last.ID)
	}
	return out, nil
}

func (s *chatService) historyFromCache(ctx context.Context, space, convID string, limit int) (*ChatHistoryOutput, bool) {
	key := historyCacheKey(space, convID)
	raw, err := s.rdb.LRange(ctx, key, 0, int64(limit)).Result()
	// The cache cannot distinguish a short conversation from trimmed or
	// expired entries, so it only serves pages it can overfill. Everything
	// else falls through to the database.
	if err != nil || len(raw) <= limit {
		return nil, false
	}

	items := make([]*model.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m model.ChatMessage
		if err := sonic.Unmarshal([]byte(r), &m); err != nil {
			return nil, false
		}
		items = append(items, &m)
	}

	out := &ChatHistoryOutput{
		ConversationID: convID,
		Items:          items[:limit],
		HasMore:        true,
	}
	last := out.Items[len(out.Items)-1]
	out.NextCursor = paging.EncodeCursor(last.CreatedAt, last.ID)
	return out, true
}
