package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	"github.com/Alex12012019/DeepSeekAPI/pkg/utils"
)

// Replier produces a reply incrementally.
type Replier interface {
	StreamReply(ctx context.Context, history []chat.Message, userMessage string, onDelta func(string) error) (string, error)
}

// Handler streams assistant replies via Server-Sent Events.
type Handler struct {
	replier Replier
}

// New creates a new stream handler
func New(replier Replier) *Handler {
	return &Handler{replier: replier}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/send_message/stream", h.handleStream)
}

type streamRequest struct {
	Message  string         `json:"message"`
	Messages []chat.Message `json:"messages"`
}

// Event payloads, in order: start, zero or more delta, then end or error.
type startEvent struct {
	History int `json:"history"`
}

type deltaEvent struct {
	Content string `json:"content"`
}

type endEvent struct {
	AssistantReply string         `json:"assistant_reply"`
	Messages       []chat.Message `json:"messages"`
}

type errorEvent struct {
	Error string `json:"error"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	var payload streamRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Empty message")
		return
	}
	if h.replier == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "assistant unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if payload.Messages == nil {
		payload.Messages = []chat.Message{}
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "start", startEvent{History: len(payload.Messages)}); err != nil {
		return
	}

	reply, err := h.replier.StreamReply(r.Context(), payload.Messages, payload.Message, func(delta string) error {
		return utils.SendSSEEvent(w, flusher, "delta", deltaEvent{Content: delta})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Int("history", len(payload.Messages)).Msg("stream reply failed")
		_ = utils.SendSSEEvent(w, flusher, "error", errorEvent{Error: err.Error()})
		return
	}

	messages := append(payload.Messages,
		chat.NewMessage(chat.RoleUser, payload.Message),
		chat.NewMessage(chat.RoleAssistant, reply),
	)
	_ = utils.SendSSEEvent(w, flusher, "end", endEvent{AssistantReply: reply, Messages: messages})
}
