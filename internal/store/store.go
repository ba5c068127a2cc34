package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
)

var (
	// ErrNotFound is returned when no conversation has the requested id.
	ErrNotFound = errors.New("conversation not found")
	// ErrFilenameTaken is returned by Put when another conversation already
	// uses the filename.
	ErrFilenameTaken = errors.New("conversation filename taken")
)

// Conversation is a persisted chat.
type Conversation struct {
	ID           string
	Name         string
	Filename     string
	Created      time.Time
	Updated      time.Time
	Messages     []chat.Message
	FileAnalysis []chat.FileAnalysis
}

// Record converts the conversation to its wire form.
func (c Conversation) Record() chat.Record {
	return chat.Record{
		ID:           c.ID,
		Name:         c.Name,
		Filename:     c.Filename,
		Created:      chat.At(c.Created),
		Updated:      chat.At(c.Updated),
		Messages:     append([]chat.Message{}, c.Messages...),
		FileAnalysis: append([]chat.FileAnalysis(nil), c.FileAnalysis...),
	}
}

// Summary converts the conversation to a listing entry.
func (c Conversation) Summary() chat.Summary {
	return chat.Summary{
		ID:       c.ID,
		Name:     c.Name,
		Filename: c.Filename,
		Created:  chat.At(c.Created),
		Updated:  chat.At(c.Updated),
	}
}

// Store persists conversations.
type Store interface {
	// List returns every conversation, most recently updated first.
	List(ctx context.Context) ([]Conversation, error)
	Get(ctx context.Context, id string) (Conversation, error)
	// Put creates or replaces the conversation with the same id. It never
	// overwrites a conversation with a different id that holds the same
	// filename; that returns ErrFilenameTaken.
	Put(ctx context.Context, conv Conversation) error
	Delete(ctx context.Context, id string) error
	Close() error
}

func sortByUpdated(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].Updated.After(convs[j].Updated)
	})
}

func clone(c Conversation) Conversation {
	c.Messages = append([]chat.Message(nil), c.Messages...)
	c.FileAnalysis = append([]chat.FileAnalysis(nil), c.FileAnalysis...)
	return c
}

func filenameTaken(conv Conversation) error {
	return fmt.Errorf("%w: %s", ErrFilenameTaken, conv.Filename)
}
