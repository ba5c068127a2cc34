// Package session drives a chat session: it turns user intents into chat
// manager mutations and remote store calls, and keeps the view in step.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/event"
	chatService "github.com/Alex12012019/DeepSeekAPI/internal/service/chat"
)

// DefaultAutosaveInterval is used when no interval is configured.
const DefaultAutosaveInterval = 30 * time.Second

// CommandKind selects a per-chat action from the conversation list.
type CommandKind int

const (
	CommandOpen CommandKind = iota
	CommandRename
	CommandDelete
)

func (k CommandKind) String() string {
	switch k {
	case CommandOpen:
		return "open"
	case CommandRename:
		return "rename"
	case CommandDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Command is a list action aimed at one chat.
type Command struct {
	Kind CommandKind
	ID   string
	// Name is the displayed name, used as the rename prompt's default.
	Name string
}

// Option customises a Controller.
type Option func(*Controller)

// WithAutosaveInterval sets the autosave period; zero disables autosave.
func WithAutosaveInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.autosaveInterval = d
		}
	}
}

// Controller owns the active chat, the autosave loop and upload cancellation.
type Controller struct {
	chats   *chatService.Manager
	remote  Remote
	view    View
	dialogs Dialogs

	autosaveInterval time.Duration

	// Single-slot tokens: a second request of the same class is refused
	// while the first is outstanding.
	sendSlot   *semaphore.Weighted
	saveSlot   *semaphore.Weighted
	deleteSlot *semaphore.Weighted
	refresh    singleflight.Group

	uploadMu     sync.Mutex
	uploadSeq    uint64
	uploadCancel context.CancelFunc

	ctx       context.Context
	stop      context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// New wires a controller. Call Start to load the list and begin autosaving.
func New(chats *chatService.Manager, remote Remote, view View, dialogs Dialogs, opts ...Option) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		chats:            chats,
		remote:           remote,
		view:             view,
		dialogs:          dialogs,
		autosaveInterval: DefaultAutosaveInterval,
		sendSlot:         semaphore.NewWeighted(1),
		saveSlot:         semaphore.NewWeighted(1),
		deleteSlot:       semaphore.NewWeighted(1),
		ctx:              ctx,
		stop:             stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chats exposes the manager for read access.
func (c *Controller) Chats() *chatService.Manager {
	return c.chats
}

// Start loads the conversation list and starts the autosave loop. A failed
// list load is returned but does not prevent autosaving.
func (c *Controller) Start(ctx context.Context) error {
	err := c.RefreshList(ctx)
	c.startOnce.Do(func() {
		if c.autosaveInterval <= 0 {
			return
		}
		c.wg.Add(1)
		go c.autosaveLoop()
	})
	return err
}

// Shutdown stops autosaving, cancels any upload and saves the active chat
// one last time. Later calls return the first result.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.stop()
		c.wg.Wait()
		c.cancelUpload()

		err := c.autosave(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("final save failed")
		}
		c.closeErr = err
	})
	return c.closeErr
}

// Dispatch runs a list command.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandOpen:
		return c.OpenChat(ctx, cmd.ID)
	case CommandRename:
		return c.RenameChat(ctx, cmd.ID, cmd.Name)
	case CommandDelete:
		return c.DeleteChat(ctx, cmd.ID)
	default:
		return ErrUnknownCommand
	}
}

// RefreshList reloads summaries from the store. Concurrent refreshes share
// one remote call.
func (c *Controller) RefreshList(ctx context.Context) error {
	_, err, _ := c.refresh.Do("list", func() (any, error) {
		sums, err := c.remote.List(ctx)
		if err != nil {
			return nil, err
		}
		c.chats.SyncSummaries(sums)
		return nil, nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("conversation list refresh failed")
		c.view.Notice("Could not load conversations")
	}
	c.renderList()
	return err
}

// HandleRemoteEvent reacts to a change pushed by the store.
func (c *Controller) HandleRemoteEvent(ctx context.Context, ev event.Event) {
	log.Debug().Str("type", string(ev.Type)).Str("id", ev.ID).Msg("remote change")
	_ = c.RefreshList(ctx)
}

func (c *Controller) autosaveLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.autosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.autosave(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("autosave failed")
			}
		}
	}
}

// autosave silently saves the active chat when it has messages.
func (c *Controller) autosave(ctx context.Context) error {
	cur, ok := c.chats.Current()
	if !ok || cur.Len() == 0 {
		return nil
	}
	err := c.save(ctx, cur.ID(), true)
	if errors.Is(err, ErrSaveInFlight) {
		return nil
	}
	return err
}

func (c *Controller) renderList() {
	c.view.RenderChatList(c.chats.GetChatList(), c.chats.CurrentID())
}
