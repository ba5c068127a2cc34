package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/config"
	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
)

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Options tunes how the conversation is presented to the model.
type Options struct {
	// SystemPrompt is prepended when non-empty.
	SystemPrompt string
	// HistoryLimit keeps only the most recent turns; zero keeps everything.
	HistoryLimit int
}

// Service produces assistant replies for a conversation.
type Service struct {
	chatModel model.BaseChatModel
	opts      Options
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the configured chat model and wraps it.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, Options{
		SystemPrompt: cfg.SystemPrompt,
		HistoryLimit: cfg.HistoryLimit,
	})
}

// NewServiceWithModel wraps an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, opts Options) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system", true),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		opts:      opts,
		chain:     runnable,
	}, nil
}

// ChatModel returns the underlying model so other services can share it.
func (s *Service) ChatModel() model.BaseChatModel {
	return s.chatModel
}

// Reply answers userMessage given the prior history.
func (s *Service) Reply(ctx context.Context, history []chat.Message, userMessage string) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(history, userMessage))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", ErrEmptyReply
	}

	log.Info().Int("history", len(history)).Int("length", len(content)).Msg("assistant reply generated")
	return response.Content, nil
}

// StreamReply is Reply with incremental delivery: onDelta sees each non-empty
// chunk as it arrives. An error from onDelta aborts the stream.
func (s *Service) StreamReply(ctx context.Context, history []chat.Message, userMessage string, onDelta func(string) error) (string, error) {
	stream, err := s.chain.Stream(ctx, s.buildChainInput(history, userMessage))
	if err != nil {
		return "", fmt.Errorf("failed to start AI stream: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("AI stream failed: %w", recvErr)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}
	if len(chunks) == 0 {
		return "", ErrEmptyReply
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("failed to merge AI stream: %w", err)
	}
	if strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyReply
	}

	log.Info().Int("history", len(history)).Int("chunks", len(chunks)).Msg("assistant reply streamed")
	return response.Content, nil
}

func (s *Service) buildChainInput(history []chat.Message, userMessage string) map[string]any {
	var system []*schema.Message
	if prompt := strings.TrimSpace(s.opts.SystemPrompt); prompt != "" {
		system = append(system, schema.SystemMessage(prompt))
	}
	return map[string]any{
		"system":  system,
		"history": s.buildHistoryMessages(history),
		"query":   userMessage,
	}
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if limit := s.opts.HistoryLimit; limit > 0 && len(messages) > limit {
		startIdx = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch chat.ParseRole(string(msg.Role)) {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		case chat.RoleSystem:
			history = append(history, schema.SystemMessage(msg.Content))
		}
	}

	return history
}
