package conversation

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	conversationService "github.com/Alex12012019/DeepSeekAPI/internal/service/conversation"
	"github.com/Alex12012019/DeepSeekAPI/internal/store"
	"github.com/Alex12012019/DeepSeekAPI/pkg/utils"
)

// Handler 会话存储的HTTP处理器
type Handler struct {
	svc *conversationService.Service
}

// New 创建会话处理器
func New(svc *conversationService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/get_conversations", h.handleList)
	r.Get("/load_conversation/{id}", h.handleLoad)
	r.Post("/save_conversation", h.handleSave)
	r.Post("/delete_chat/{id}", h.handleDelete)
	r.Post("/rename_chat/{id}", h.handleRename)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list conversations failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Load(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, loadResponse{
		ID:           rec.ID,
		Name:         rec.Name,
		Filename:     rec.Filename,
		Created:      rec.Created,
		Updated:      rec.Updated,
		Messages:     rec.Messages,
		FileAnalysis: rec.FileAnalysis,
	})
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload chat.Record
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.svc.Save(r.Context(), payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondStatus(w, http.StatusOK, map[string]any{
		"id":       saved.ID,
		"name":     saved.Name,
		"filename": saved.Filename,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondStatus(w, http.StatusOK, nil)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	var payload struct {
		NewName string `json:"new_name"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Rename(r.Context(), id, payload.NewName); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondStatus(w, http.StatusOK, nil)
}

type loadResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Filename     string              `json:"filename"`
	Created      chat.Timestamp      `json:"created"`
	Updated      chat.Timestamp      `json:"updated"`
	Messages     []chat.Message      `json:"messages"`
	FileAnalysis []chat.FileAnalysis `json:"fileAnalysis"`
}

// conversationID 读取并解码路径中的会话ID，旧版会话以文件名作为ID。
func conversationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil || id == "" {
		utils.RespondError(w, http.StatusBadRequest, "invalid conversation id")
		return "", false
	}
	return id, true
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, conversationService.ErrEmptyConversation):
		utils.RespondError(w, http.StatusBadRequest, "Empty conversation")
	case errors.Is(err, conversationService.ErrNameRequired):
		utils.RespondError(w, http.StatusBadRequest, "No new name provided")
	default:
		log.Error().Err(err).Msg("conversation request failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
