package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	fileanalysis "github.com/Alex12012019/DeepSeekAPI/internal/analysis/file"
)

// Content encodings accepted by DecodeContent.
const (
	EncodingText   = "text"
	EncodingBase64 = "base64"
)

var (
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
	ErrBinaryContent       = errors.New("file content is not valid UTF-8 text")
)

// Config 控制文件分析服务的行为。
type Config struct {
	Enabled bool
	// MaxChars caps how much of the file is sent to the model.
	MaxChars int
}

// Service 使用大模型分析上传的文件，并在失败时回退到启发式规则。
type Service struct {
	enabled  bool
	analyzer compose.Runnable[map[string]any, *schema.Message]
	fallback func(filename, content string) fileanalysis.Report
	maxChars int
}

// NewService creates the analysis service. chatModel may be nil, in which
// case only the heuristic analyzer is used.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg Config) (*Service, error) {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 20000
	}

	svc := &Service{
		enabled:  cfg.Enabled && chatModel != nil,
		fallback: fileanalysis.Analyze,
		maxChars: maxChars,
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(analysisSystemPrompt),
		schema.UserMessage(analysisUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile file analysis chain: %w", err)
	}

	svc.analyzer = runnable
	return svc, nil
}

// Enabled reports whether the model-backed analyzer is active.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.analyzer != nil
}

// Analyze describes the file. Model failures fall back to the heuristic report;
// only context cancellation is returned as an error.
func (s *Service) Analyze(ctx context.Context, filename, content string) (string, error) {
	report := s.fallback(filename, content)
	if !s.Enabled() {
		return report.Summary(), nil
	}

	excerpt, truncated := truncate(content, s.maxChars)
	input := map[string]any{
		"filename":  filename,
		"kind":      string(report.Kind),
		"stats":     fmt.Sprintf("%d lines, %d words, %d characters", report.Lines, report.Words, report.Chars),
		"truncated": truncatedNote(truncated),
		"content":   excerpt,
	}

	msg, err := s.analyzer.Invoke(ctx, input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.Warn().Err(err).Str("file", filename).Msg("file analysis model failed, use fallback")
		return report.Summary(), nil
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return report.Summary(), nil
	}
	return strings.TrimSpace(msg.Content), nil
}

// DecodeContent turns the wire payload into text.
func DecodeContent(encoding, content string) (string, error) {
	var raw []byte
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingText:
		raw = []byte(content)
	case EncodingBase64:
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(content))
		if err != nil {
			return "", fmt.Errorf("decode base64 content: %w", err)
		}
		raw = decoded
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}

	if !utf8.Valid(raw) {
		return "", ErrBinaryContent
	}
	return string(raw), nil
}

func truncate(content string, limit int) (string, bool) {
	if utf8.RuneCountInString(content) <= limit {
		return content, false
	}
	return string([]rune(content)[:limit]), true
}

func truncatedNote(truncated bool) string {
	if truncated {
		return "The content below was truncated."
	}
	return "The content below is complete."
}

const analysisSystemPrompt = "You are a careful assistant that analyses files uploaded into a chat. Summarise what the file is, its structure, and anything notable (errors, risks, key values). Answer in the language the file is written in when it is natural text, otherwise in English. Be concise."

const analysisUserPrompt = "File name: {filename}\nDetected kind: {kind}\nStatistics: {stats}\n{truncated}\n\n{content}"
