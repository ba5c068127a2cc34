package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	conversationService "github.com/Alex12012019/DeepSeekAPI/internal/service/conversation"
	"github.com/Alex12012019/DeepSeekAPI/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	handler := New(conversationService.NewService(st))

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, st
}

func doJSON(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return out
}

func saveGreeting(t *testing.T, r http.Handler) map[string]string {
	t.Helper()
	rec := chat.Record{
		Messages: []chat.Message{chat.NewMessage(chat.RoleUser, "hello there")},
	}
	resp := doJSON(t, r, http.MethodPost, "/save_conversation", rec)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	return decode[map[string]string](t, resp)
}

func TestSaveConversationCreates(t *testing.T) {
	r, _ := setupRouter(t)

	saved := saveGreeting(t, r)
	if saved["status"] != "success" {
		t.Fatalf("unexpected status %q", saved["status"])
	}
	if saved["id"] == "" || saved["filename"] == "" {
		t.Fatalf("expected id and filename, got %+v", saved)
	}
	if saved["name"] != "hello there" {
		t.Fatalf("expected derived name, got %q", saved["name"])
	}
}

func TestSaveConversationEmpty(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/save_conversation", chat.Record{Name: "x"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	body := decode[map[string]string](t, resp)
	if body["error"] != "Empty conversation" {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestSaveConversationInvalidBody(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/save_conversation", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestListAndLoad(t *testing.T) {
	r, _ := setupRouter(t)
	saved := saveGreeting(t, r)

	resp := doJSON(t, r, http.MethodGet, "/get_conversations", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	list := decode[[]chat.Summary](t, resp)
	if len(list) != 1 || list[0].ID != saved["id"] {
		t.Fatalf("unexpected list %+v", list)
	}

	resp = doJSON(t, r, http.MethodGet, "/load_conversation/"+saved["id"], nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	loaded := decode[chat.Record](t, resp)
	if len(loaded.Messages) != 1 || loaded.Messages[0].Content != "hello there" {
		t.Fatalf("unexpected messages %+v", loaded.Messages)
	}
	if loaded.Created.IsZero() {
		t.Fatal("expected created timestamp")
	}
}

func TestLoadMissing(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doJSON(t, r, http.MethodGet, "/load_conversation/nope", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestLoadLegacyFilenameID(t *testing.T) {
	r, st := setupRouter(t)
	legacy := store.Conversation{
		ID:       "conv_20240309_143015_Old chat.json",
		Name:     "Old chat",
		Filename: "conv_20240309_143015_Old chat.json",
		Messages: []chat.Message{chat.NewMessage(chat.RoleUser, "hi")},
	}
	if err := st.Put(testContext(t), legacy); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp := doJSON(t, r, http.MethodGet, "/load_conversation/"+url.PathEscape(legacy.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRenameChat(t *testing.T) {
	r, st := setupRouter(t)
	saved := saveGreeting(t, r)

	resp := doJSON(t, r, http.MethodPost, "/rename_chat/"+saved["id"], map[string]string{"new_name": ""})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", resp.Code)
	}

	resp = doJSON(t, r, http.MethodPost, "/rename_chat/missing", map[string]string{"new_name": "x"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing chat, got %d", resp.Code)
	}

	resp = doJSON(t, r, http.MethodPost, "/rename_chat/"+saved["id"], map[string]string{"new_name": "Greeting"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	conv, err := st.Get(testContext(t), saved["id"])
	if err != nil || conv.Name != "Greeting" {
		t.Fatalf("rename not persisted: %+v %v", conv, err)
	}
}

func TestDeleteChat(t *testing.T) {
	r, st := setupRouter(t)
	saved := saveGreeting(t, r)

	resp := doJSON(t, r, http.MethodPost, "/delete_chat/"+saved["id"], nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if _, err := st.Get(testContext(t), saved["id"]); err == nil {
		t.Fatal("expected conversation to be gone")
	}

	resp = doJSON(t, r, http.MethodPost, "/delete_chat/"+saved["id"], nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("deleting a missing chat should succeed, got %d", resp.Code)
	}
}

// testContext stands in for t.Context (Go 1.24+): a context cancelled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
