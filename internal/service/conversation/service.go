package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
	"github.com/Alex12012019/DeepSeekAPI/internal/model/event"
	"github.com/Alex12012019/DeepSeekAPI/internal/store"
)

var (
	ErrEmptyConversation = errors.New("empty conversation")
	ErrNameRequired      = errors.New("no new name provided")
)

// Service applies the save, rename and delete rules on top of a store.
type Service struct {
	store     store.Store
	publisher event.Publisher
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher announces every change to p.
func WithPublisher(p event.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wraps st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: event.Discard,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns summaries, most recently updated first.
func (s *Service) List(ctx context.Context) ([]chat.Summary, error) {
	convs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]chat.Summary, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conv.Summary())
	}
	return out, nil
}

// Load returns the full conversation.
func (s *Service) Load(ctx context.Context, id string) (chat.Record, error) {
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return chat.Record{}, err
	}
	return conv.Record(), nil
}

// Save persists rec. A record without a filename, or whose id is unknown,
// becomes a new conversation with a store-assigned id; otherwise the stored
// conversation is overwritten and keeps its id, filename and creation time.
func (s *Service) Save(ctx context.Context, rec chat.Record) (chat.Saved, error) {
	if len(rec.Messages) == 0 {
		return chat.Saved{}, ErrEmptyConversation
	}

	name := chat.SanitizeName(rec.Name)
	if name == "" {
		name = chat.DeriveName(rec.Messages)
	}
	now := s.now()

	conv, err := s.existing(ctx, rec)
	if err != nil {
		return chat.Saved{}, err
	}
	created := conv.ID == ""
	if created {
		conv = store.Conversation{
			ID:       uuid.NewString(),
			Filename: newFilename(now, name, ""),
			Created:  rec.Created.Time,
		}
		if conv.Created.IsZero() || conv.Created.After(now) {
			conv.Created = now
		}
	}
	conv.Name = name
	conv.Updated = now
	conv.Messages = rec.Messages
	conv.FileAnalysis = rec.FileAnalysis

	err = s.store.Put(ctx, conv)
	if created && errors.Is(err, store.ErrFilenameTaken) {
		// Same name within the same second; disambiguate with the id.
		conv.Filename = newFilename(now, name, conv.ID[:8])
		err = s.store.Put(ctx, conv)
	}
	if err != nil {
		return chat.Saved{}, fmt.Errorf("save conversation: %w", err)
	}

	log.Info().Str("id", conv.ID).Str("file", conv.Filename).Int("messages", len(conv.Messages)).Msg("conversation saved")
	s.publisher.Publish(event.Event{Type: event.ConversationSaved, ID: conv.ID, Name: conv.Name, At: now})

	return chat.Saved{ID: conv.ID, Name: conv.Name, Filename: conv.Filename}, nil
}

// Rename changes the stored name.
func (s *Service) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}

	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	conv.Name = name
	conv.Updated = now
	if err := s.store.Put(ctx, conv); err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}

	s.publisher.Publish(event.Event{Type: event.ConversationRenamed, ID: id, Name: name, At: now})
	return nil
}

// Delete removes the conversation. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.publisher.Publish(event.Event{Type: event.ConversationDeleted, ID: id, At: s.now()})
	return nil
}

func (s *Service) existing(ctx context.Context, rec chat.Record) (store.Conversation, error) {
	if rec.Filename == "" || rec.ID == "" {
		return store.Conversation{}, nil
	}
	conv, err := s.store.Get(ctx, rec.ID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Conversation{}, nil
	}
	if err != nil {
		return store.Conversation{}, fmt.Errorf("look up conversation: %w", err)
	}
	return conv, nil
}

func newFilename(at time.Time, name, suffix string) string {
	if suffix != "" {
		name += "_" + suffix
	}
	return fmt.Sprintf("conv_%s_%s.json", at.Format("20060102_150405"), name)
}
