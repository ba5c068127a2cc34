package assistant

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	analysisService "github.com/Alex12012019/DeepSeekAPI/internal/service/analysis"
)

type stubReplier struct {
	reply   string
	err     error
	history []chat.Message
}

func (s *stubReplier) Reply(_ context.Context, history []chat.Message, _ string) (string, error) {
	s.history = history
	return s.reply, s.err
}

func setupRouter(t *testing.T, replier Replier) *chi.Mux {
	t.Helper()
	analyzer, err := analysisService.NewService(context.Background(), nil, analysisService.Config{})
	if err != nil {
		t.Fatalf("analysis service: %v", err)
	}
	r := chi.NewRouter()
	New(replier, analyzer).RegisterRoutes(r)
	return r
}

func post(r http.Handler, target string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

type sendMessageResponse struct {
	Status         string         `json:"status"`
	AssistantReply string         `json:"assistant_reply"`
	Error          string         `json:"error"`
	Messages       []chat.Message `json:"messages"`
}

func TestSendMessage(t *testing.T) {
	replier := &stubReplier{reply: "Hi!"}
	r := setupRouter(t, replier)

	history := []chat.Message{chat.NewMessage(chat.RoleUser, "earlier"), chat.NewMessage(chat.RoleAssistant, "ok")}
	resp := post(r, "/send_message", map[string]any{"message": "hello", "messages": history})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body sendMessageResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "success" || body.AssistantReply != "Hi!" {
		t.Fatalf("unexpected body %+v", body)
	}
	if len(body.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(body.Messages))
	}
	if body.Messages[2].Role != chat.RoleUser || body.Messages[3].Content != "Hi!" {
		t.Fatalf("unexpected tail %+v", body.Messages[2:])
	}
	if len(replier.history) != 2 {
		t.Fatalf("expected prior history to be forwarded, got %d", len(replier.history))
	}
}

func TestSendMessageEmpty(t *testing.T) {
	r := setupRouter(t, &stubReplier{})

	resp := post(r, "/send_message", map[string]any{"message": "  "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessageUpstreamError(t *testing.T) {
	r := setupRouter(t, &stubReplier{err: errors.New("rate limited")})

	resp := post(r, "/send_message", map[string]any{"message": "hello"})
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body sendMessageResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || body.Error != "rate limited" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSendMessageWithoutModel(t *testing.T) {
	r := setupRouter(t, nil)

	resp := post(r, "/send_message", map[string]any{"message": "hello"})
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestAnalyzeFile(t *testing.T) {
	r := setupRouter(t, nil)

	resp := post(r, "/analyze_file", map[string]string{
		"filename": "main.go",
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte("package main\n\nfunc main() {}\n")),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["analysis"] == "" {
		t.Fatal("expected analysis text")
	}
}

func TestAnalyzeFileRejectsBadInput(t *testing.T) {
	r := setupRouter(t, nil)

	if resp := post(r, "/analyze_file", map[string]string{"content": "x"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without filename, got %d", resp.Code)
	}
	if resp := post(r, "/analyze_file", map[string]string{"filename": "a", "encoding": "hex", "content": "00"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown encoding, got %d", resp.Code)
	}
}
