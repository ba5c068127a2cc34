// Package client talks to the conversation store over HTTP and subscribes to
// its change events over a websocket.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	"github.com/Alex12012019/DeepSeekAPI/internal/model/event"
)

// StatusError is a non-success response from the store.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the store.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for the store at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the stored conversations, most recent first.
func (c *Client) List(ctx context.Context) ([]chat.Summary, error) {
	var out []chat.Summary
	if err := c.do(ctx, http.MethodGet, "/api/get_conversations", nil, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// Load fetches one conversation with its history.
func (c *Client) Load(ctx context.Context, id string) (chat.Record, error) {
	var out chat.Record
	if err := c.do(ctx, http.MethodGet, "/api/load_conversation/"+url.PathEscape(id), nil, &out); err != nil {
		return chat.Record{}, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return out, nil
}

// Save creates (empty filename) or overwrites a conversation.
func (c *Client) Save(ctx context.Context, rec chat.Record) (chat.Saved, error) {
	var out chat.Saved
	if err := c.do(ctx, http.MethodPost, "/api/save_conversation", rec, &out); err != nil {
		return chat.Saved{}, fmt.Errorf("save conversation: %w", err)
	}
	if out.ID == "" {
		return chat.Saved{}, errors.New("save conversation: server returned no id")
	}
	return out, nil
}

// Delete removes a conversation; unknown ids succeed.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/api/delete_chat/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// Rename changes a stored conversation's name.
func (c *Client) Rename(ctx context.Context, id, name string) error {
	body := map[string]string{"new_name": name}
	if err := c.do(ctx, http.MethodPost, "/api/rename_chat/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("rename conversation %s: %w", id, err)
	}
	return nil
}

// SendMessage asks the assistant to answer message given history.
func (c *Client) SendMessage(ctx context.Context, history []chat.Message, message string) (string, error) {
	if history == nil {
		history = []chat.Message{}
	}
	body := map[string]any{"message": message, "messages": history}

	var out struct {
		AssistantReply string `json:"assistant_reply"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/send_message", body, &out); err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return out.AssistantReply, nil
}

// AnalyzeFile uploads content for analysis.
func (c *Client) AnalyzeFile(ctx context.Context, filename string, content []byte) (string, error) {
	body := map[string]string{
		"filename": filename,
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString(content),
	}

	var out struct {
		Analysis string `json:"analysis"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/analyze_file", body, &out); err != nil {
		return "", fmt.Errorf("analyze file %s: %w", filename, err)
	}
	return out.Analysis, nil
}

// Subscribe streams store events to fn until ctx is done or the connection drops.
func (c *Client) Subscribe(ctx context.Context, fn func(event.Event)) error {
	wsURL, err := c.eventsURL()
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("subscribe: %w", &StatusError{Code: resp.StatusCode})
		}
		return fmt.Errorf("subscribe: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		var ev event.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("subscribe: %w", err)
		}
		fn(ev)
	}
}

func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/api/events")
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("store request done")
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(code int, data []byte) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(data, &payload) == nil {
		msg = payload.Error
		if msg == "" {
			msg = payload.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	return &StatusError{Code: code, Message: msg}
}
