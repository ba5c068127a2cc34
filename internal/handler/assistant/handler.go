package assistant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	analysisService "github.com/Alex12012019/DeepSeekAPI/internal/service/analysis"
	"github.com/Alex12012019/DeepSeekAPI/pkg/utils"
)

// Replier produces the assistant's next turn.
type Replier interface {
	Reply(ctx context.Context, history []chat.Message, userMessage string) (string, error)
}

// Analyzer describes an uploaded file.
type Analyzer interface {
	Analyze(ctx context.Context, filename, content string) (string, error)
}

// Handler serves the model-backed endpoints.
type Handler struct {
	replier  Replier
	analyzer Analyzer
}

// New creates the handler. A nil replier makes send_message report 503.
func New(replier Replier, analyzer Analyzer) *Handler {
	return &Handler{replier: replier, analyzer: analyzer}
}

// RegisterRoutes 注册模型相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/send_message", h.handleSendMessage)
	r.Post("/analyze_file", h.handleAnalyzeFile)
}

type sendMessageRequest struct {
	Message  string         `json:"message"`
	Messages []chat.Message `json:"messages"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload sendMessageRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Messages == nil {
		payload.Messages = []chat.Message{}
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Empty message")
		return
	}
	if h.replier == nil {
		utils.RespondStatus(w, http.StatusServiceUnavailable, map[string]any{
			"error":    "assistant unavailable",
			"messages": payload.Messages,
		})
		return
	}

	reply, err := h.replier.Reply(r.Context(), payload.Messages, payload.Message)
	if err != nil {
		log.Error().Err(err).Int("history", len(payload.Messages)).Msg("send_message failed")
		utils.RespondStatus(w, http.StatusInternalServerError, map[string]any{
			"error":    err.Error(),
			"messages": payload.Messages,
		})
		return
	}

	messages := append(payload.Messages,
		chat.NewMessage(chat.RoleUser, payload.Message),
		chat.NewMessage(chat.RoleAssistant, reply),
	)
	utils.RespondStatus(w, http.StatusOK, map[string]any{
		"assistant_reply": reply,
		"messages":        messages,
	})
}

type analyzeFileRequest struct {
	Filename string `json:"filename"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

func (h *Handler) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	var payload analyzeFileRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Filename) == "" {
		utils.RespondError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if h.analyzer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "file analysis unavailable")
		return
	}

	content, err := analysisService.DecodeContent(payload.Encoding, payload.Content)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), payload.Filename, content)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Str("file", payload.Filename).Msg("analyze_file failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}
