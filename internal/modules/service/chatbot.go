package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/bytedance/sonic"
	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"
	"github.com/redis/go-redis/v9"
	"github.com/tutorhub/tutorhub/internal/config"
	"github.com/tutorhub/tutorhub/internal/pkg/tokenizer"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const chatbotSystemPrompt = "You are a friendly study assistant for a tutoring app. " +
	"Answer student questions clearly and concisely, and encourage them to book a session " +
	"with a teacher for topics that need deeper guidance."

type ChatbotService interface {
	Ask(ctx context.Context, in AskInput) (*AskOutput, error)
}

type chatbotService struct {
	rdb *redis.Client
	cfg *config.Config
	log *zap.Logger

	openaiClient    openai.Client
	anthropicClient anthropic.Client
}

func NewChatbotService(rdb *redis.Client, cfg *config.Config, log *zap.Logger) ChatbotService {
	return &chatbotService{
		rdb:             rdb,
		cfg:             cfg,
		log:             log,
		openaiClient:    openai.NewClient(openaioption.WithAPIKey(cfg.Chatbot.OpenAIAPIKey)),
		anthropicClient: anthropic.NewClient(anthropicoption.WithAPIKey(cfg.Chatbot.AnthropicAPIKey)),
	}
}

type AskInput struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

type AskOutput struct {
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
}

type chatbotTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func chatbotHistoryKey(userID string) string { return "chatbot:history:" + userID }

func (s *chatbotService) Ask(ctx context.Context, in AskInput) (*AskOutput, error) {
	if in.Question == "" {
		return nil, ErrEmptyMessage
	}

	history, err := s.loadHistory(ctx, in.UserID)
	if err != nil {
		s.log.Warn("chatbot history load failed", zap.Error(err))
		history = nil
	}

	provider := s.cfg.Chatbot.Provider
	var answer string
	switch provider {
	case "anthropic":
		answer, err = s.askAnthropic(ctx, history, in.Question)
	case "gemini":
		answer, err = s.askGemini(ctx, history, in.Question)
	default:
		provider = "openai"
		answer, err = s.askOpenAI(ctx, history, in.Question)
	}
	if err != nil {
		return nil, fmt.Errorf("chatbot %s: %w", provider, err)
	}

	s.appendHistory(ctx, in.UserID,
		chatbotTurn{Role: "user", Text: in.Question},
		chatbotTurn{Role: "assistant", Text: answer})

	return &AskOutput{Answer: answer, Provider: provider}, nil
}

// loadHistory returns the most recent turns, oldest first, trimmed so the
// prompt stays under the configured token budget.
func (s *chatbotService) loadHistory(ctx context.Context, userID string) ([]chatbotTurn, error) {
	raw, err := s.rdb.LRange(ctx, chatbotHistoryKey(userID), 0, 49).Result()
	if err != nil {
		return nil, err
	}

	// Stored newest first; walk forward and stop at the token budget.
	budget := s.cfg.Chatbot.MaxPromptTokens
	used := 0
	turns := make([]chatbotTurn, 0, len(raw))
	for _, r := range raw {
		var t chatbotTurn
		if err := sonic.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		n, err := tokenizer.CountTokens(t.Text)
		if err != nil {
			n = len(t.Text) / 4
		}
		if used+n > budget {
			break
		}
		used += n
		turns = append(turns, t)
	}

	// Reverse to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *chatbotService) appendHistory(ctx context.Context, userID string, turns ...chatbotTurn) {
	key := chatbotHistoryKey(userID)
	pipe := s.rdb.Pipeline()
	// LPush in reverse so the newest turn ends up at the head.
	for i := len(turns) - 1; i >= 0; i-- {
		payload, err := sonic.Marshal(turns[i])
		if err != nil {
			continue
		}
		pipe.LPush(ctx, key, payload)
	}
	pipe.LTrim(ctx, key, 0, 99)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("chatbot history append failed", zap.Error(err))
	}
}

func (s *chatbotService) askOpenAI(ctx context.Context, history []chatbotTurn, question string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(chatbotSystemPrompt),
	}
	for _, t := range history {
		if t.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(t.Text))
		} else {
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}
	messages = append(messages, openai.UserMessage(question))

	resp, err := s.openaiClient.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.cfg.Chatbot.OpenAIModel),
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *chatbotService) askAnthropic(ctx context.Context, history []chatbotTurn, question string) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		if t.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(question)))

	resp, err := s.anthropicClient.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.cfg.Chatbot.AnthropicModel),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: chatbotSystemPrompt}},
		Messages:  messages,
	})
	if err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("empty completion")
}

func (s *chatbotService) askGemini(ctx context.Context, history []chatbotTurn, question string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.cfg.Chatbot.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, s.cfg.Chatbot.GeminiModel, geminiContents(history, question), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(chatbotSystemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

// geminiContents converts stored turns to the SDK's content format, mapping
// assistant turns to the model role.
func geminiContents(history []chatbotTurn, question string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		var role genai.Role = genai.RoleUser
		if t.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return append(contents, genai.NewContentFromText(question, genai.RoleUser))
}
