package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alex12012019/DeepSeekAPI/internal/handler"
	"github.com/Alex12012019/DeepSeekAPI/internal/handler/events"
	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	"github.com/Alex12012019/DeepSeekAPI/internal/model/event"
	analysisService "github.com/Alex12012019/DeepSeekAPI/internal/service/analysis"
	conversationService "github.com/Alex12012019/DeepSeekAPI/internal/service/conversation"
	"github.com/Alex12012019/DeepSeekAPI/internal/store"
)

type echoReplier struct{}

func (echoReplier) Reply(_ context.Context, history []chat.Message, msg string) (string, error) {
	if msg == "fail" {
		return "", errors.New("model exploded")
	}
	return "echo: " + msg, nil
}

func startServer(t *testing.T) (*Client, *events.Hub) {
	t.Helper()
	hub := events.NewHub()
	analyzer, err := analysisService.NewService(context.Background(), nil, analysisService.Config{})
	require.NoError(t, err)

	router := handler.NewRouter(handler.Services{
		Conversations: conversationService.NewService(store.NewMemoryStore(), conversationService.WithPublisher(hub)),
		Replier:       echoReplier{},
		Analyzer:      analyzer,
		Events:        hub,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return New(srv.URL+"/", WithTimeout(5*time.Second)), hub
}

func TestConversationLifecycle(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()

	rec := chat.Record{Messages: []chat.Message{chat.NewMessage(chat.RoleUser, "hello world")}}
	saved, err := c.Save(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "hello world", saved.Name)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	require.NoError(t, c.Rename(ctx, saved.ID, "Greeting"))

	loaded, err := c.Load(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Greeting", loaded.Name)
	assert.Len(t, loaded.Messages, 1)

	require.NoError(t, c.Delete(ctx, saved.ID))
	_, err = c.Load(ctx, saved.ID)
	assert.True(t, IsNotFound(err), "expected 404, got %v", err)
}

func TestSaveEmptyReturnsStatusError(t *testing.T) {
	c, _ := startServer(t)

	_, err := c.Save(context.Background(), chat.Record{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "Empty conversation", se.Message)
}

func TestSendMessage(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()

	reply, err := c.SendMessage(ctx, nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", reply)

	_, err = c.SendMessage(ctx, nil, "fail")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "model exploded", se.Message)
}

func TestAnalyzeFile(t *testing.T) {
	c, _ := startServer(t)

	analysis, err := c.AnalyzeFile(context.Background(), "app.log", []byte("ERROR boom\nWARN retry\n"))
	require.NoError(t, err)
	assert.Contains(t, analysis, "log file")
}

func TestSubscribeReceivesEvents(t *testing.T) {
	c, hub := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan event.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, func(ev event.Event) { received <- ev })
	}()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err := c.Save(context.Background(), chat.Record{Messages: []chat.Message{chat.NewMessage(chat.RoleUser, "hi")}})
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, event.ConversationSaved, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}

func TestStatusErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain failure", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL).Delete(context.Background(), "x")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "plain failure", se.Message)
}
