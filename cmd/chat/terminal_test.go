package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	chatService "github.com/Alex12012019/DeepSeekAPI/internal/service/chat"
)

func newTestTerminal(input string) (*terminal, *bytes.Buffer) {
	var out bytes.Buffer
	return newTerminal(&out, newLineSource(strings.NewReader(input))), &out
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		name string
		arg  string
	}{
		{"hello there", "", ""},
		{"/new", "new", ""},
		{"  /Open 3 ", "open", "3"},
		{"/upload notes/today.txt", "upload", "notes/today.txt"},
		{"/rename   two words", "rename", "two words"},
	}
	for _, tt := range tests {
		name, arg := parseCommand(tt.line)
		assert.Equal(t, tt.name, name, tt.line)
		assert.Equal(t, tt.arg, arg, tt.line)
	}
}

func TestTerminalConfirm(t *testing.T) {
	term, out := newTestTerminal("y\nno\n")
	ctx := context.Background()

	assert.True(t, term.Confirm(ctx, "Delete?"))
	assert.False(t, term.Confirm(ctx, "Delete?"))
	// Input exhausted.
	assert.False(t, term.Confirm(ctx, "Delete?"))
	assert.Contains(t, out.String(), "Delete? [y/N]")
}

func TestTerminalPromptDefault(t *testing.T) {
	term, _ := newTestTerminal("\nFresh name\n\n")
	ctx := context.Background()

	name, ok := term.Prompt(ctx, "Name:", "Old")
	require.True(t, ok)
	assert.Equal(t, "Old", name)

	name, ok = term.Prompt(ctx, "Name:", "Old")
	require.True(t, ok)
	assert.Equal(t, "Fresh name", name)

	_, ok = term.Prompt(ctx, "Name:", "")
	assert.False(t, ok)
}

func TestTerminalPromptCancelled(t *testing.T) {
	term, _ := newTestTerminal("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := term.Prompt(ctx, "Name:", "x")
	assert.False(t, ok)
}

func TestTerminalResolve(t *testing.T) {
	term, out := newTestTerminal("")
	term.RenderChatList([]chatService.ListItem{
		{ID: "a1", Name: "First"},
		{ID: "b2", Name: "Second"},
	}, "b2")

	item, ok := term.resolve("2")
	require.True(t, ok)
	assert.Equal(t, "b2", item.ID)

	item, ok = term.resolve("a1")
	require.True(t, ok)
	assert.Equal(t, "First", item.Name)

	_, ok = term.resolve("3")
	assert.False(t, ok)
	_, ok = term.resolve("zz")
	assert.False(t, ok)

	term.printList()
	assert.Contains(t, out.String(), "First")
	assert.Contains(t, out.String(), "Second")
}

func TestTerminalMessages(t *testing.T) {
	term, out := newTestTerminal("")
	term.RenderMessages([]chat.Message{
		{Role: chat.RoleUser, Content: "Hello"},
		{Role: chat.RoleAssistant, Content: "Hi there"},
	})
	term.Alert("Save failed")

	text := out.String()
	assert.Contains(t, text, "2 messages")
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "Hi there")
	assert.Contains(t, text, "Save failed")
}
