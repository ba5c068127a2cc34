package session

import (
	"context"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	chatService "github.com/Alex12012019/DeepSeekAPI/internal/service/chat"
)

// Remote is the conversation store and assistant as seen by the controller.
type Remote interface {
	List(ctx context.Context) ([]chat.Summary, error)
	Load(ctx context.Context, id string) (chat.Record, error)
	Save(ctx context.Context, rec chat.Record) (chat.Saved, error)
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, name string) error
	SendMessage(ctx context.Context, history []chat.Message, message string) (string, error)
	AnalyzeFile(ctx context.Context, filename string, content []byte) (string, error)
}

// View renders controller state. Implementations must be safe to call from
// any goroutine; the autosave loop calls them too.
type View interface {
	RenderChatList(items []chatService.ListItem, activeID string)
	RenderMessages(messages []chat.Message)
	AppendMessage(msg chat.Message)
	ClearMessages()
	SetSending(sending bool)
	// Notice shows a transient status line.
	Notice(text string)
	// Alert reports a failure the user should acknowledge.
	Alert(text string)
}

// Dialogs asks the user for decisions. Both calls block until answered.
type Dialogs interface {
	Confirm(ctx context.Context, question string) bool
	Prompt(ctx context.Context, question, initial string) (string, bool)
}
