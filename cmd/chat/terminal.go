package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	chatService "github.com/Alex12012019/DeepSeekAPI/internal/service/chat"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	indexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("135"))

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	activeMarker = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("*")
)

// lineSource reads stdin on its own goroutine so reads can be abandoned when
// the context ends.
type lineSource struct {
	lines chan string
}

func newLineSource(r io.Reader) *lineSource {
	src := &lineSource{lines: make(chan string)}
	go func() {
		defer close(src.lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			src.lines <- scanner.Text()
		}
	}()
	return src
}

// next returns the next line; ok is false on EOF or cancellation.
func (s *lineSource) next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-s.lines:
		return line, ok
	}
}

// terminal renders the session to a writer and answers dialogs from the same
// line source the REPL reads.
type terminal struct {
	mu       sync.Mutex
	out      io.Writer
	in       *lineSource
	items    []chatService.ListItem
	activeID string
	sending  bool
}

func newTerminal(out io.Writer, in *lineSource) *terminal {
	return &terminal{out: out, in: in}
}

func (t *terminal) RenderChatList(items []chatService.ListItem, activeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = items
	t.activeID = activeID
}

func (t *terminal) RenderMessages(messages []chat.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out, dimStyle.Render(fmt.Sprintf("--- %d messages ---", len(messages))))
	for _, msg := range messages {
		t.writeMessageLocked(msg)
	}
}

func (t *terminal) AppendMessage(msg chat.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeMessageLocked(msg)
}

func (t *terminal) ClearMessages() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, dimStyle.Render("--- new chat ---"))
}

func (t *terminal) SetSending(sending bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sending && !t.sending {
		fmt.Fprintln(t.out, dimStyle.Render("thinking..."))
	}
	t.sending = sending
}

func (t *terminal) Notice(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, dimStyle.Render(text))
}

func (t *terminal) Alert(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, alertStyle.Render("! "+text))
}

// Confirm 读取 y/yes 作为确认，其余输入均视为取消。
func (t *terminal) Confirm(ctx context.Context, question string) bool {
	t.ask(question + " [y/N]")
	line, ok := t.in.next(ctx)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Prompt returns initial when the user just presses enter.
func (t *terminal) Prompt(ctx context.Context, question, initial string) (string, bool) {
	if initial != "" {
		question = fmt.Sprintf("%s [%s]", question, initial)
	}
	t.ask(question)
	line, ok := t.in.next(ctx)
	if !ok {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return initial, initial != ""
	}
	return line, true
}

// printList writes the last rendered conversation list with 1-based indexes.
func (t *terminal) printList() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.items) == 0 {
		fmt.Fprintln(t.out, dimStyle.Render("No conversations yet."))
		return
	}
	for i, item := range t.items {
		marker := " "
		if item.ID == t.activeID {
			marker = activeMarker
		}
		updated := ""
		if !item.Updated.IsZero() {
			updated = item.Updated.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(t.out, "%s %s %s %s\n",
			marker,
			indexStyle.Render(fmt.Sprintf("%2d.", i+1)),
			titleStyle.Render(item.Name),
			dimStyle.Render(updated))
	}
}

// resolve maps a list index or a chat id to an entry of the last list.
func (t *terminal) resolve(ref string) (chatService.ListItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(t.items) {
			return t.items[n-1], true
		}
		return chatService.ListItem{}, false
	}
	for _, item := range t.items {
		if item.ID == ref {
			return item, true
		}
	}
	return chatService.ListItem{}, false
}

func (t *terminal) ask(question string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, titleStyle.Render(question)+" ")
}

func (t *terminal) writeMessageLocked(msg chat.Message) {
	switch msg.Role {
	case chat.RoleUser:
		fmt.Fprintf(t.out, "%s %s\n", userStyle.Render("you:"), msg.Content)
	case chat.RoleAssistant:
		fmt.Fprintf(t.out, "%s %s\n", assistantStyle.Render("assistant:"), msg.Content)
	default:
		fmt.Fprintln(t.out, dimStyle.Render(msg.Content))
	}
}
